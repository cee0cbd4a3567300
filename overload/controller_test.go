package overload

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/fake"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, reducer api.LoadReducer, clock api.Clock, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	c, err := New(PacketRateMeasurement(10), PacketRateMeasurement(7), reducer, clock, opts...)
	require.NoError(t, err)
	return c
}

func TestController_Scenario(t *testing.T) {
	clock := fake.NewClock(time.Unix(1_700_000_000, 0))
	reducer := fake.NewReducer(10 * time.Second)
	c := newTestController(t, reducer, clock)

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(9)))
	assert.Equal(t, 0, reducer.ReduceCalls(), "below the overload threshold")

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.Equal(t, 1, reducer.ReduceCalls())
	assert.Equal(t, Reducing, c.State())

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.Equal(t, 1, reducer.ReduceCalls(), "cooldown has not elapsed")

	clock.Advance(time.Minute)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.Equal(t, 2, reducer.ReduceCalls())

	clock.Advance(time.Minute)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(9)))
	assert.Equal(t, 2, reducer.ReduceCalls(), "dead zone")
	assert.Equal(t, 0, reducer.RecoverCalls(), "dead zone")

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(2)))
	assert.Equal(t, 1, reducer.RecoverCalls())
	assert.Equal(t, Reducing, c.State(), "one reduction is still outstanding")
}

func TestController_RecoverWaitsForCooldown(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(10 * time.Second)
	c := newTestController(t, reducer, clock)

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	require.Equal(t, 1, reducer.ReduceCalls())

	clock.Advance(5 * time.Second)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(2)))
	assert.Equal(t, 0, reducer.RecoverCalls())

	clock.Advance(5 * time.Second)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(2)))
	assert.Equal(t, 1, reducer.RecoverCalls())
	assert.Equal(t, Nominal, c.State())

	clock.Advance(time.Minute)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(2)))
	assert.Equal(t, 1, reducer.RecoverCalls(), "nothing left to recover")
}

func TestController_RecoverAtExactRatio(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(time.Second)
	c := newTestController(t, reducer, clock)

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(12)))
	clock.Advance(time.Second)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(7)))
	assert.Equal(t, 1, reducer.RecoverCalls())
}

func TestController_NoRecoverWithoutReduction(t *testing.T) {
	reducer := fake.NewReducer(time.Second)
	c := newTestController(t, reducer, fake.NewClock(time.Unix(0, 0)))

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(1)))
	assert.Equal(t, 0, reducer.RecoverCalls())
	assert.Equal(t, Nominal, c.State())
}

func TestController_ImpactTimeQueriedEachTime(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(time.Hour)
	c := newTestController(t, reducer, clock)

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	clock.Advance(time.Minute)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.Equal(t, 1, reducer.ReduceCalls())

	reducer.SetImpactTime(30 * time.Second)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.Equal(t, 2, reducer.ReduceCalls())
}

func TestController_FailedReduceDoesNotStartCooldown(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(10 * time.Second)
	c := newTestController(t, reducer, clock)

	boom := errors.New("boom")
	reducer.FailReduce(boom)
	err := c.LoadUpdate(PacketRateMeasurement(10))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Nominal, c.State())

	reducer.FailReduce(nil)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.Equal(t, 2, reducer.ReduceCalls(), "retried on the very next update")
	assert.Equal(t, Reducing, c.State())
}

func TestController_FailedRecoverKeepsReducing(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(time.Second)
	c := newTestController(t, reducer, clock)

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	clock.Advance(time.Second)

	boom := errors.New("boom")
	reducer.FailRecover(boom)
	require.ErrorIs(t, c.LoadUpdate(PacketRateMeasurement(1)), boom)
	assert.Equal(t, Reducing, c.State())

	reducer.FailRecover(nil)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(1)))
	assert.Equal(t, 2, reducer.RecoverCalls())
	assert.Equal(t, Nominal, c.State())
}

func TestController_StressLevel(t *testing.T) {
	c := newTestController(t, fake.NewReducer(time.Minute), fake.NewClock(time.Unix(0, 0)))
	assert.Equal(t, 0.0, c.CurrentStressLevel())

	for _, tc := range []struct {
		load   float64
		stress float64
	}{
		{1, 0.1},
		{3, 0.3},
		{11, 1.1},
	} {
		require.NoError(t, c.LoadUpdate(PacketRateMeasurement(tc.load)))
		assert.InDelta(t, tc.stress, c.CurrentStressLevel(), 1e-9)
	}
}

func TestController_ReducerDisabled(t *testing.T) {
	reducer := fake.NewReducer(time.Second)
	c := newTestController(t, reducer, fake.NewClock(time.Unix(0, 0)), WithReducerEnabled(false))

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(50)))
	assert.InDelta(t, 5.0, c.CurrentStressLevel(), 1e-9)
	assert.Equal(t, 0, reducer.ReduceCalls())
	assert.Equal(t, Nominal, c.State())
	assert.False(t, c.ReducerEnabled())
}

func TestController_ReducerDisabledLogsOncePerImpactTime(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(time.Minute)
	c := newTestController(t, reducer, clock, WithReducerEnabled(false), WithLogger(logger))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.LoadUpdate(PacketRateMeasurement(50)))
		clock.Advance(time.Second)
	}
	assert.Equal(t, 1, strings.Count(out.String(), "level=INFO"))
	assert.Equal(t, 2, strings.Count(out.String(), "level=DEBUG"))

	clock.Advance(time.Minute)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(50)))
	assert.Equal(t, 2, strings.Count(out.String(), "level=INFO"))
	assert.Equal(t, 0, reducer.ReduceCalls())
}

func TestController_MultipleSources(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	reducer := fake.NewReducer(time.Second)
	c, err := New(PacketRateMeasurement(100), PacketRateMeasurement(70), reducer, clock,
		WithLogger(discardLogger()),
		WithSource(CPUMeasurement(2), CPUMeasurement(1)))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.RecoveryRatio(), 1e-9)

	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(60)))
	assert.InDelta(t, 0.6, c.CurrentStressLevel(), 1e-9)
	assert.Equal(t, 0, reducer.ReduceCalls())

	require.NoError(t, c.LoadUpdate(CPUMeasurement(1)))
	assert.InDelta(t, 1.1, c.CurrentStressLevel(), 1e-9)
	assert.Equal(t, 1, reducer.ReduceCalls())

	clock.Advance(time.Second)
	require.NoError(t, c.LoadUpdate(PacketRateMeasurement(10)))
	assert.InDelta(t, 0.6, c.CurrentStressLevel(), 1e-9)
	assert.Equal(t, 0, reducer.RecoverCalls(), "0.6 is above the tightest recovery ratio")

	require.NoError(t, c.LoadUpdate(CPUMeasurement(0.2)))
	assert.Equal(t, 1, reducer.RecoverCalls())
}

func TestController_UnknownKind(t *testing.T) {
	c := newTestController(t, fake.NewReducer(time.Second), fake.NewClock(time.Unix(0, 0)))
	err := c.LoadUpdate(CPUMeasurement(1))
	assert.ErrorIs(t, err, api.ErrMeasurementMismatch)
	assert.ErrorIs(t, c.LoadUpdate(nil), api.ErrInvalidArgument)
}

func TestNew_Validation(t *testing.T) {
	reducer := fake.NewReducer(time.Second)
	clock := fake.NewClock(time.Unix(0, 0))

	tests := []struct {
		name     string
		overload api.LoadMeasurement
		recovery api.LoadMeasurement
		reducer  api.LoadReducer
		opts     []Option
		want     error
	}{
		{"recovery equals overload", PacketRateMeasurement(10), PacketRateMeasurement(10), reducer, nil, api.ErrInvalidArgument},
		{"recovery above overload", PacketRateMeasurement(10), PacketRateMeasurement(11), reducer, nil, api.ErrInvalidArgument},
		{"kind mismatch", PacketRateMeasurement(10), CPUMeasurement(0.5), reducer, nil, api.ErrMeasurementMismatch},
		{"zero overload", PacketRateMeasurement(0), PacketRateMeasurement(0), reducer, nil, api.ErrInvalidArgument},
		{"nil reducer", PacketRateMeasurement(10), PacketRateMeasurement(7), nil, nil, api.ErrInvalidArgument},
		{"duplicate source", PacketRateMeasurement(10), PacketRateMeasurement(7), reducer,
			[]Option{WithSource(PacketRateMeasurement(20), PacketRateMeasurement(5))}, api.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.overload, tt.recovery, tt.reducer, clock, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "nominal", Nominal.String())
	assert.Equal(t, "reducing", Reducing.String())
	assert.Equal(t, "State(7)", State(7).String())
}
