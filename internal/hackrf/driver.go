package hackrf

// Transfer is one USB bulk transfer handed to a callback. For RX, ValidLength bytes of
// Buffer hold samples. For TX, the callback fills Buffer and sets ValidLength.
type Transfer struct {
	Buffer       []byte
	BufferLength int
	ValidLength  int
}

// SampleBlockFunc is invoked on the driver's transfer goroutine. A non-zero return stops
// streaming; for TX it means there is no more data.
type SampleBlockFunc func(t *Transfer) int

// FlushFunc is invoked once the driver has flushed the last TX transfer
type FlushFunc func(success int)

// BlockCompleteFunc is invoked after each TX transfer has been sent
type BlockCompleteFunc func(t *Transfer, success int)

// Driver is the library level entry point
type Driver interface {
	// Init prepares the library; it must succeed before Open
	Init() error
	// Open opens the device behind an already-granted USB file descriptor
	Open(fd int) (Device, error)
	// Exit releases library resources
	Exit() error
}

// Device is an open HackRF. Setter calls are synchronous. Callbacks run on a goroutine
// owned by the device and must not block indefinitely.
type Device interface {
	Close() error

	StartRx(cb SampleBlockFunc) error
	StopRx() error

	// EnableTxFlush and SetTxBlockCompleteCallback accept nil to unregister
	EnableTxFlush(cb FlushFunc) error
	SetTxBlockCompleteCallback(cb BlockCompleteFunc) error
	StartTx(cb SampleBlockFunc) error
	StopTx() error

	IsStreaming() bool

	SetFreq(hz uint64) error
	SetSampleRate(hz uint32) error
	SetLNAGain(gain uint32) error
	SetVGAGain(gain uint32) error
	SetTxVGAGain(gain uint32) error
	SetAmpEnable(enable bool) error
	SetAntennaEnable(enable bool) error
}
