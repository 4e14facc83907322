package transfer

import (
	"bytes"
	"context"
)

// WriteTx queues a copy of p on the tx stream, waiting while the stream is full
func (s *Session) WriteTx(ctx context.Context, p []byte) error {
	return s.Write(ctx, DirectionTx, p)
}

// ReadRx consumes up to len(p) bytes from the rx stream into p
func (s *Session) ReadRx(p []byte) int {
	return s.Read(DirectionRx, p)
}

// Write queues a copy of p on the stream for dir
func (s *Session) Write(ctx context.Context, dir Direction, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	buf := s.pool.Acquire(len(p))
	_, _ = buf.Write(p)
	buf.Flip()
	if err := s.Stream(dir).Append(ctx, buf); err != nil {
		s.pool.Release(buf)
		return err
	}
	return nil
}

// Read copies up to len(p) bytes from the stream for dir into p and consumes them
func (s *Session) Read(dir Direction, p []byte) int {
	if len(p) == 0 {
		return 0
	}
	stream := s.Stream(dir)
	dst := s.pool.Acquire(len(p))
	defer s.pool.Release(dst)

	stream.Get(dst)
	dst.Flip()
	n := stream.Discard(dst.Remaining())
	return copy(p, dst.Bytes()[:n])
}

// NextChunk returns a copy of the unread bytes of the head buffer for dir without
// consuming them, or nil when the stream is empty.
func (s *Session) NextChunk(dir Direction) []byte {
	stream := s.Stream(dir)
	size := int(stream.NextBufferSize())
	if size == 0 {
		return nil
	}
	dst := s.pool.Acquire(size)
	defer s.pool.Release(dst)

	stream.Get(dst)
	dst.Flip()
	return bytes.Clone(dst.Bytes())
}
