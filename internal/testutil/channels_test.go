package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForChannel_Closed(t *testing.T) {
	t.Parallel()

	ch := make(chan struct{})
	close(ch)
	WaitForChannel(t, ch, ShortTestTimeout, "closed channel must not block")
}

func TestReceiveWithin(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 1)
	ch <- 42
	assert.Equal(t, 42, ReceiveWithin(t, ch, ShortTestTimeout, "buffered value must be received"))
}
