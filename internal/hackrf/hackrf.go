// Package hackrf defines the boundary to a HackRF driver: status codes, hardware limits,
// transfer callbacks and the Driver/Device interfaces the transfer session programs against.
//
// The USB transport itself lives behind Device. The sim subpackage provides a software
// implementation used by the CLI and tests.
package hackrf

// Hardware limits and defaults
const (
	FrequencyMinHz     uint64 = 1_000_000
	FrequencyMaxHz     uint64 = 6_000_000_000
	DefaultFrequencyHz uint64 = 900_000_000

	SampleRateMinHz     uint32 = 2_000_000
	SampleRateMaxHz     uint32 = 20_000_000
	DefaultSampleRateHz uint32 = 10_000_000

	LNAGainMax     uint32 = 40
	LNAGainStep    uint32 = 8
	DefaultLNAGain uint32 = 8

	VGAGainMax     uint32 = 62
	VGAGainStep    uint32 = 2
	DefaultVGAGain uint32 = 20

	TxVGAGainMax     uint32 = 47
	TxVGAGainStep    uint32 = 1
	DefaultTxVGAGain uint32 = 0

	// TransferBufferSize is the byte size of one USB bulk transfer
	TransferBufferSize = 262144
)

// TransceiverMode mirrors the firmware transceiver modes
type TransceiverMode int

const (
	ModeOff TransceiverMode = iota
	ModeReceive
	ModeTransmit
	ModeSS
	ModeCPLDUpdate
	ModeRxSweep
)

func (m TransceiverMode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeReceive:
		return "receive"
	case ModeTransmit:
		return "transmit"
	case ModeSS:
		return "ss"
	case ModeCPLDUpdate:
		return "cpld_update"
	case ModeRxSweep:
		return "rx_sweep"
	default:
		return "unknown"
	}
}

// FrequencyInRange reports whether hz is tunable
func FrequencyInRange(hz uint64) bool {
	return hz >= FrequencyMinHz && hz <= FrequencyMaxHz
}

// SampleRateInRange reports whether hz is a supported sample rate
func SampleRateInRange(hz uint32) bool {
	return hz >= SampleRateMinHz && hz <= SampleRateMaxHz
}
