package iqstream

// Observer receives stream activity. Calls are made outside the stream lock
// and must not block.
type Observer interface {
	BufferAppended(stream string, bytes int)
	BufferDropped(stream string, bytes int)
	BytesDiscarded(stream string, bytes int)
	QueueDepth(stream string, buffers, bytes int)
}

type nopObserver struct{}

func (nopObserver) BufferAppended(string, int)   {}
func (nopObserver) BufferDropped(string, int)    {}
func (nopObserver) BytesDiscarded(string, int)   {}
func (nopObserver) QueueDepth(string, int, int) {}
