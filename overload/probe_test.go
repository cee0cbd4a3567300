package overload

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/fake"
)

func TestPacketRateProbe(t *testing.T) {
	var counter atomic.Uint64
	clock := fake.NewClock(time.Unix(0, 0))
	p, err := NewPacketRateProbe(counter.Load, clock)
	require.NoError(t, err)

	m, err := p.Sample()
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Load(), "first sample primes the probe")

	counter.Add(1000)
	clock.Advance(2 * time.Second)
	m, err = p.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 500.0, m.Load(), 1e-9)
	assert.Equal(t, KindPacketRate, m.Kind())

	// No time passed: the previous rate is repeated.
	m, err = p.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 500.0, m.Load(), 1e-9)

	counter.Store(10)
	clock.Advance(time.Second)
	m, err = p.Sample()
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Load(), "counter reset")
}

func TestPacketRateProbe_Validation(t *testing.T) {
	_, err := NewPacketRateProbe(nil, fake.NewClock(time.Unix(0, 0)))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestCPUProbe_Usage(t *testing.T) {
	var used time.Duration
	clock := fake.NewClock(time.Unix(0, 0))
	p, err := newCPUProbe(clock, func() (time.Duration, error) { return used, nil })
	require.NoError(t, err)

	used = 1500 * time.Millisecond
	clock.Advance(time.Second)
	m, err := p.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, m.Load(), 1e-9)
	assert.Equal(t, KindCPU, m.Kind())
}

func TestCPUProbe_SourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := newCPUProbe(fake.NewClock(time.Unix(0, 0)), func() (time.Duration, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCPUProbe_System(t *testing.T) {
	p, err := NewCPUProbe(SystemClock{})
	if errors.Is(err, api.ErrNotSupported) {
		t.Skip("process cpu time not available on this platform")
	}
	require.NoError(t, err)

	spin := 0
	for deadline := time.Now().Add(20 * time.Millisecond); time.Now().Before(deadline); {
		spin++
	}
	assert.Positive(t, spin)
	m, err := p.Sample()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Load(), 0.0)
}
