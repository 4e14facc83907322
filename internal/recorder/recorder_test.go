package recorder

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/iqstream"
	"github.com/tphakala/hackrf-stream/internal/testutil"
)

type fakeSource struct {
	open   atomic.Bool
	stream *iqstream.Stream
	rate   atomic.Uint32
}

func newFakeSource(open bool) *fakeSource {
	src := &fakeSource{
		stream: iqstream.NewStream("rx", 16, iqstream.NewPool()),
	}
	src.open.Store(open)
	src.rate.Store(2_000_000)
	return src
}

func (f *fakeSource) IsOpen() bool                { return f.open.Load() }
func (f *fakeSource) RxStream() *iqstream.Stream { return f.stream }
func (f *fakeSource) SampleRate() uint32         { return f.rate.Load() }

func (f *fakeSource) push(t *testing.T, p []byte) {
	t.Helper()
	b := f.stream.Pool().Acquire(len(p))
	_, err := b.Write(p)
	require.NoError(t, err)
	b.Flip()
	require.NoError(t, f.stream.Append(t.Context(), b))
}

func waitWritten(t *testing.T, rec *Recording, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.BytesWritten() >= n }, 2*time.Second, time.Millisecond)
}

func TestStart_NoDevice(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	r := New(fs)

	rec, err := r.Start(t.Context(), newFakeSource(false), "capture.iq")
	require.ErrorIs(t, err, ErrNoDevice)
	assert.True(t, errors.IsNotFound(err))
	assert.Nil(t, rec)
	assert.False(t, r.IsRecording())

	exists, err := afero.Exists(fs, "capture.iq")
	require.NoError(t, err)
	assert.False(t, exists, "no sink opened")

	_, err = r.Start(t.Context(), nil, "capture.iq")
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestRecording_RawDump(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	src := newFakeSource(true)
	r := New(fs, WithDrainInterval(10*time.Millisecond), WithBackoff(time.Millisecond))

	first := bytes.Repeat([]byte{1, 2, 3, 4}, 64)
	src.push(t, first)

	rec, err := r.Start(t.Context(), src, "captures/one.iq")
	require.NoError(t, err)
	assert.True(t, r.IsRecording())
	assert.Same(t, rec, r.Current())
	assert.NotEmpty(t, rec.ID())

	second := bytes.Repeat([]byte{9, 8}, 100)
	src.push(t, second)
	waitWritten(t, rec, uint64(len(first)+len(second)))

	require.NoError(t, r.Stop())
	assert.False(t, rec.Running())
	assert.False(t, src.stream.HasData(), "written bytes are discarded from the stream")

	got, err := afero.ReadFile(fs, "captures/one.iq")
	require.NoError(t, err)
	assert.Equal(t, append(first, second...), got)
}

func TestRecording_WakesOnAppend(t *testing.T) {
	t.Parallel()

	src := newFakeSource(true)
	r := New(afero.NewMemMapFs(), WithDrainInterval(time.Hour), WithBackoff(0))

	rec, err := r.Start(t.Context(), src, "wake.iq")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	src.push(t, []byte("samples"))
	waitWritten(t, rec, 7)

	rec.Stop()
	require.NoError(t, rec.Wait())
}

func TestRecording_DataWakeSkipsBackoff(t *testing.T) {
	t.Parallel()

	src := newFakeSource(true)
	r := New(afero.NewMemMapFs(), WithDrainInterval(time.Hour), WithBackoff(time.Hour))

	rec, err := r.Start(t.Context(), src, "nobackoff.iq")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	src.push(t, []byte("first"))
	waitWritten(t, rec, 5)
	src.push(t, []byte("second"))
	waitWritten(t, rec, 11)

	require.NoError(t, r.Stop())
}

func TestStart_AlreadyRecording(t *testing.T) {
	t.Parallel()

	src := newFakeSource(true)
	r := New(afero.NewMemMapFs())

	rec, err := r.Start(t.Context(), src, "a.iq")
	require.NoError(t, err)

	_, err = r.Start(t.Context(), src, "b.iq")
	require.ErrorIs(t, err, ErrAlreadyRecording)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	rec.Stop()
	<-rec.Done()

	next, err := r.Start(t.Context(), src, "b.iq")
	require.NoError(t, err)
	require.NoError(t, r.Stop())
	assert.NotEqual(t, rec.ID(), next.ID())
}

func TestStart_SinkOpenFailure(t *testing.T) {
	t.Parallel()

	r := New(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	rec, err := r.Start(t.Context(), newFakeSource(true), "denied.iq")
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.False(t, r.IsRecording())
}

func TestStart_UnknownFormat(t *testing.T) {
	t.Parallel()

	r := New(afero.NewMemMapFs(), WithFormat("flac"))
	_, err := r.Start(t.Context(), newFakeSource(true), "x.flac")
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ParseFormat("flac")
	require.ErrorIs(t, err, ErrUnknownFormat)
	f, err := ParseFormat("wav")
	require.NoError(t, err)
	assert.Equal(t, FormatWAV, f)
}

// limitedFs hands out files that accept at most limit bytes in total
type limitedFs struct {
	afero.Fs
	limit int
}

func (l limitedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := l.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: f, remaining: l.limit}, nil
}

type limitedFile struct {
	afero.File
	remaining int
}

func (f *limitedFile) Write(p []byte) (int, error) {
	n := min(len(p), f.remaining)
	f.remaining -= n
	if n > 0 {
		if _, err := f.File.Write(p[:n]); err != nil {
			return 0, err
		}
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func TestRecording_ShortWriteIsFatal(t *testing.T) {
	t.Parallel()

	src := newFakeSource(true)
	fs := limitedFs{Fs: afero.NewMemMapFs(), limit: 1024}
	r := New(fs, WithBackoff(0))

	rec, err := r.Start(t.Context(), src, "short.iq")
	require.NoError(t, err)

	// larger than the sink buffer so the short write surfaces
	src.push(t, make([]byte, sinkBufferSize+4096))

	testutil.WaitForChannel(t, rec.Done(), testutil.DefaultTestTimeout, "recording did not stop on short write")
	err = rec.Wait()
	require.ErrorIs(t, err, io.ErrShortWrite)
	assert.True(t, errors.IsCategory(err, errors.CategoryRecording))
	assert.False(t, r.IsRecording())
}

func TestRecording_ContextCancelEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	r := New(afero.NewMemMapFs())
	rec, err := r.Start(ctx, newFakeSource(true), "ctx.iq")
	require.NoError(t, err)

	cancel()
	testutil.WaitForChannel(t, rec.Done(), testutil.DefaultTestTimeout, "recording ignored cancellation")
	require.NoError(t, rec.Wait())
}

func TestRecording_WAV(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	src := newFakeSource(true)
	r := New(fs, WithFormat(FormatWAV), WithBackoff(0))

	rec, err := r.Start(t.Context(), src, "iq.wav")
	require.NoError(t, err)

	// the split pair checks the carry across writes
	src.push(t, []byte{0x01, 0xFF, 0x7F})
	src.push(t, []byte{0x80})
	waitWritten(t, rec, 4)
	require.NoError(t, r.Stop())

	f, err := fs.Open("iq.wav")
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(2_000_000), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{1 << 8, -1 << 8, 127 << 8, -128 << 8}, buf.Data)
}

func TestRecorder_StopWithoutRecording(t *testing.T) {
	t.Parallel()

	r := New(afero.NewMemMapFs())
	require.NoError(t, r.Stop())
	assert.Nil(t, r.Current())
}
