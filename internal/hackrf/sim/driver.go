package sim

import (
	"sync"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// Operation names accepted by FailNext
const (
	OpInit               = "init"
	OpOpen               = "open"
	OpExit               = "exit"
	OpClose              = "close"
	OpStartRx            = "start_rx"
	OpStopRx             = "stop_rx"
	OpStartTx            = "start_tx"
	OpStopTx             = "stop_tx"
	OpEnableTxFlush      = "enable_tx_flush"
	OpSetTxBlockComplete = "set_tx_block_complete"
	OpSetFreq            = "set_freq"
	OpSetSampleRate      = "set_sample_rate"
	OpSetLNAGain         = "set_lna_gain"
	OpSetVGAGain         = "set_vga_gain"
	OpSetTxVGAGain       = "set_txvga_gain"
	OpSetAmpEnable       = "set_amp_enable"
	OpSetAntennaEnable   = "set_antenna_enable"
)

// Driver is a software hackrf.Driver serving a single device at a time
type Driver struct {
	cfg Config

	mu          sync.Mutex
	initialized bool
	device      *Device
	faults      map[string]hackrf.Error
}

var _ hackrf.Driver = (*Driver)(nil)

// NewDriver creates a driver whose devices use cfg
func NewDriver(cfg Config) *Driver {
	return &Driver{
		cfg:    cfg.withDefaults(),
		faults: make(map[string]hackrf.Error),
	}
}

// FailNext makes the next call of op return code instead of running
func (d *Driver) FailNext(op string, code hackrf.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = code
}

// fault consumes a pending injected failure for op
func (d *Driver) fault(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	code, ok := d.faults[op]
	if !ok {
		return nil
	}
	delete(d.faults, op)
	GetLogger().Debug("injected driver failure",
		logger.String("operation", op),
		logger.String("status", code.Name()))
	return code
}

// Init prepares the simulated library
func (d *Driver) Init() error {
	if err := d.fault(OpInit); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	return nil
}

// Open returns the simulated device. Negative descriptors model a missing device.
func (d *Driver) Open(fd int) (hackrf.Device, error) {
	if err := d.fault(OpOpen); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case !d.initialized:
		return nil, hackrf.ErrorLibUSB
	case fd < 0:
		return nil, hackrf.ErrorNotFound
	case d.device != nil:
		return nil, hackrf.ErrorBusy
	}

	d.device = newDevice(d, fd)
	GetLogger().Info("simulated device opened",
		logger.Int("fd", fd),
		logger.String("signal", string(d.cfg.Signal)),
		logger.Bool("paced", d.cfg.Paced))
	return d.device, nil
}

// Exit releases the library. It fails while a device is still open.
func (d *Driver) Exit() error {
	if err := d.fault(OpExit); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return hackrf.ErrorNotLastDevice
	}
	d.initialized = false
	return nil
}

// Device returns the currently open device, or nil
func (d *Driver) Device() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device
}

func (d *Driver) detach(dev *Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == dev {
		d.device = nil
	}
}
