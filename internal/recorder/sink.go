package recorder

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
)

// Format selects the on-disk layout of a recording
type Format string

const (
	// FormatRaw is the interleaved signed 8-bit IQ stream, no header
	FormatRaw Format = "raw"
	// FormatWAV is 2-channel 16-bit PCM with I on the left and Q on the right.
	// A RIFF file holds at most 4 GiB, 4 bytes per complex sample, so a WAV
	// recording ends with ErrSizeLimit after about 107 s at 10 MS/s.
	FormatWAV Format = "wav"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatRaw, FormatWAV:
		return f, nil
	default:
		return "", errors.New(ErrUnknownFormat).
			Component(componentRecorder).
			Category(errors.CategoryValidation).
			Context("format", name).
			Build()
	}
}

const (
	sinkBufferSize  = 256 * 1024
	dirPermissions  = 0o755
	filePermissions = 0o644
)

type sink interface {
	io.Writer
	Close() error
}

// openSink creates the file at path. sampleRate is read when the first samples
// arrive, so a rate applied after the recording started is honoured.
func openSink(fs afero.Fs, path string, format Format, sampleRate func() uint32) (sink, error) {
	if format != FormatRaw && format != FormatWAV {
		return nil, ErrUnknownFormat
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, dirPermissions); err != nil {
			return nil, err
		}
	}
	file, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return nil, err
	}

	if format == FormatWAV {
		return newWAVSink(file, sampleRate, maxWAVBytes), nil
	}
	return &rawSink{file: file, w: bufio.NewWriterSize(file, sinkBufferSize)}, nil
}

// rawSink writes samples exactly as they arrive
type rawSink struct {
	file afero.File
	w    *bufio.Writer
}

func (s *rawSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *rawSink) Close() error {
	return errors.Join(s.w.Flush(), s.file.Close())
}

// wavSink widens each signed 8-bit I/Q pair to a 16-bit stereo frame. The
// encoder is created on the first write; go-audio writes the header then.
type wavSink struct {
	file       afero.File
	sampleRate func() uint32
	enc        *wav.Encoder
	format     *audio.Format
	carry      byte // I of a pair split across writes
	hasCarry   bool
	frames     []int
	encoded    uint64 // header and sample bytes handed to the encoder
	limit      uint64
}

const (
	wavBitDepth    = 16
	wavChannels    = 2
	wavPCMFormat   = 1
	wavFrameBytes  = wavChannels * wavBitDepth / 8
	wavHeaderBytes = 44
	int8ToInt16Shl = 8

	// maxWAVBytes keeps the RIFF and data chunk sizes within their uint32 fields
	maxWAVBytes = math.MaxUint32
)

func newWAVSink(file afero.File, sampleRate func() uint32, limit uint64) *wavSink {
	return &wavSink{
		file:       file,
		sampleRate: sampleRate,
		encoded:    wavHeaderBytes,
		limit:      limit,
	}
}

func (s *wavSink) encoder() *wav.Encoder {
	if s.enc == nil {
		var rate uint32
		if s.sampleRate != nil {
			rate = s.sampleRate()
		}
		if rate == 0 {
			rate = hackrf.DefaultSampleRateHz
		}
		s.enc = wav.NewEncoder(s.file, int(rate), wavBitDepth, wavChannels, wavPCMFormat)
		s.format = &audio.Format{SampleRate: int(rate), NumChannels: wavChannels}
	}
	return s.enc
}

func widen(b byte) int {
	return int(int8(b)) << int8ToInt16Shl
}

// Write accepts all of p or nothing. It fails with ErrSizeLimit when the
// samples would push the file past the RIFF size limit.
func (s *wavSink) Write(p []byte) (int, error) {
	pending := len(p)
	if s.hasCarry {
		pending++
	}
	size := uint64(pending/2) * wavFrameBytes //nolint:gosec // pending is non-negative
	if s.encoded+size > s.limit {
		return 0, ErrSizeLimit
	}

	s.frames = s.frames[:0]
	data := p
	if s.hasCarry && len(data) > 0 {
		s.frames = append(s.frames, widen(s.carry), widen(data[0]))
		data = data[1:]
		s.hasCarry = false
	}
	whole := len(data) &^ 1
	for _, b := range data[:whole] {
		s.frames = append(s.frames, widen(b))
	}
	if whole < len(data) {
		s.carry, s.hasCarry = data[whole], true
	}
	if len(s.frames) == 0 {
		return len(p), nil
	}

	enc := s.encoder()
	buf := &audio.IntBuffer{Data: s.frames, Format: s.format, SourceBitDepth: wavBitDepth}
	if err := enc.Write(buf); err != nil {
		return 0, err
	}
	s.encoded += size
	return len(p), nil
}

// Close finalises the header. A recording without samples still gets one.
func (s *wavSink) Close() error {
	var err error
	if s.enc == nil {
		enc := s.encoder()
		err = enc.Write(&audio.IntBuffer{Format: s.format, SourceBitDepth: wavBitDepth})
	}
	return errors.Join(err, s.enc.Close(), s.file.Close())
}
