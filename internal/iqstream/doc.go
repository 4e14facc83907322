// Package iqstream moves IQ sample bytes between the radio's transfer goroutine and
// consumers through pooled buffers and a bounded FIFO.
//
// # Buffers
//
// A Buffer is a fixed-capacity byte container with a position and a limit, used in two
// modes. In write mode (after Clear) Write appends at position; Flip switches to read mode
// where the bytes between position and limit are readable.
//
//	buf := pool.Acquire(len(samples)) // cleared, write mode
//	_, _ = buf.Write(samples)
//	buf.Flip()                         // read mode
//	stream.TryAppend(buf)              // ownership moves to the stream
//
// # Ownership
//
// Each Buffer tracks who owns it: the pool (idle), one caller (held) or one stream
// (queued). Acquire hands out held buffers, Append and TryAppend accept only held buffers,
// and a stream releases its buffers to the pool once they are fully discarded. A buffer
// can therefore never be queued twice or released while still queued by accident; the
// violation is reported as ErrBufferNotOwned or counted as a double release.
//
// # Streams
//
// Stream is a bounded queue of buffers with byte-granular consumption. Get copies from
// the head without consuming (peek) and Discard commits consumption, so a caller can copy
// first and decide later how much it really used:
//
//	dst := pool.Acquire(want)
//	stream.Get(dst)
//	dst.Flip()
//	stream.Discard(dst.Remaining())
//
// Append blocks while the stream is full; TryAppend never blocks and counts a drop
// instead, which is what the hardware callback uses. Every blocking call takes a context.
//
// # Concurrency
//
// Pool and Stream are safe for concurrent use. A Buffer is not: only its current owner
// may touch it. Buffers returned by First and Last remain owned by the stream and must
// only be read, and only until they are discarded.
package iqstream
