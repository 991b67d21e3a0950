package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInFlight_TakeClearsMark(t *testing.T) {
	clock := newTestClock()
	f := NewInFlight(time.Minute, clock.Now)

	f.Mark([]byte("event"))
	assert.True(t, f.Take([]byte("event")))
	assert.False(t, f.Take([]byte("event")))
	assert.False(t, f.Take([]byte("other")))
}

func TestInFlight_Expires(t *testing.T) {
	clock := newTestClock()
	f := NewInFlight(time.Minute, clock.Now)

	f.Mark([]byte("old"))
	clock.Advance(2 * time.Minute)
	assert.False(t, f.Take([]byte("old")))

	f.Mark([]byte("a"))
	clock.Advance(2 * time.Minute)
	f.Mark([]byte("b"))
	assert.Equal(t, 1, f.Len())
}
