package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanplexian/vigilo/internal/logging"
	"github.com/oceanplexian/vigilo/internal/objects"
)

func TestEmissionOrder(t *testing.T) {
	s := NewSignals(logging.Discard())

	var order []int
	s.NextCheckUpdated.Connect(func(*objects.Checkable) { order = append(order, 1) })
	s.NextCheckUpdated.Connect(func(*objects.Checkable) { order = append(order, 2) })
	s.NextCheckUpdated.Connect(func(*objects.Checkable) { order = append(order, 3) })

	s.NextCheckUpdated.Emit(objects.NewHost("web1"))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDisconnect(t *testing.T) {
	s := NewSignals(logging.Discard())

	calls := 0
	dispose := s.NextCheckUpdated.Connect(func(*objects.Checkable) { calls++ })
	h := objects.NewHost("web1")

	s.NextCheckUpdated.Emit(h)
	dispose()
	s.NextCheckUpdated.Emit(h)

	assert.Equal(t, 1, calls)
}

func TestDisconnectDuringEmission(t *testing.T) {
	s := NewSignals(logging.Discard())

	var dispose2 func()
	var seen []string
	s.NextCheckUpdated.Connect(func(*objects.Checkable) {
		seen = append(seen, "first")
		dispose2()
	})
	dispose2 = s.NextCheckUpdated.Connect(func(*objects.Checkable) {
		seen = append(seen, "second")
	})

	// The emission iterates a copy: the second subscriber still runs for
	// this emission, then is gone for the next.
	h := objects.NewHost("web1")
	s.NextCheckUpdated.Emit(h)
	require.Equal(t, []string{"first", "second"}, seen)

	s.NextCheckUpdated.Emit(h)
	assert.Equal(t, []string{"first", "second", "first"}, seen)
}

func TestPanicDoesNotUnwind(t *testing.T) {
	s := NewSignals(logging.Discard())

	reached := false
	s.NextCheckUpdated.Connect(func(*objects.Checkable) { panic("subscriber bug") })
	s.NextCheckUpdated.Connect(func(*objects.Checkable) { reached = true })

	require.NotPanics(t, func() {
		s.NextCheckUpdated.Emit(objects.NewHost("web1"))
	})
	assert.True(t, reached, "subscriber after the panicking one must still run")
}
