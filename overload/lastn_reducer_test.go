package overload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sfu/api"
)

type lastNTarget struct {
	limit   int
	maxConf int
}

func (t *lastNTarget) LastNLimit() int        { return t.limit }
func (t *lastNTarget) SetLastNLimit(n int)    { t.limit = n }
func (t *lastNTarget) MaxConferenceSize() int { return t.maxConf }

func newTestLastNReducer(t *testing.T, target LastNTarget) *LastNReducer {
	t.Helper()
	r, err := NewLastNReducer(target, DefaultLastNConfig(), discardLogger())
	require.NoError(t, err)
	return r
}

func TestLastNReducer_Reduce(t *testing.T) {
	target := &lastNTarget{limit: -1, maxConf: 20}
	r := newTestLastNReducer(t, target)

	require.NoError(t, r.ReduceLoad())
	assert.Equal(t, 14, target.limit, "starts from the receivers of the largest conference")

	require.NoError(t, r.ReduceLoad())
	assert.Equal(t, 10, target.limit)

	for i := 0; i < 20; i++ {
		require.NoError(t, r.ReduceLoad())
	}
	assert.Equal(t, 1, target.limit, "never below the minimum")
	assert.Equal(t, time.Minute, r.ImpactTime())
}

func TestLastNReducer_Recover(t *testing.T) {
	target := &lastNTarget{limit: 4, maxConf: 10}
	r := newTestLastNReducer(t, target)

	require.NoError(t, r.Recover())
	assert.Equal(t, 5, target.limit)
	require.NoError(t, r.Recover())
	assert.Equal(t, 7, target.limit)
	require.NoError(t, r.Recover())
	assert.Equal(t, -1, target.limit, "lifted once it covers every receiver")

	require.NoError(t, r.Recover())
	assert.Equal(t, -1, target.limit)
}

func TestLastNReducer_FirstReductionCapsReceivers(t *testing.T) {
	target := &lastNTarget{limit: -1, maxConf: 3}
	r := newTestLastNReducer(t, target)

	require.NoError(t, r.ReduceLoad())
	assert.Equal(t, 1, target.limit, "two receivers cut to one")

	require.NoError(t, r.Recover())
	assert.Equal(t, -1, target.limit)
}

func TestLastNReducer_RecoverFromZero(t *testing.T) {
	target := &lastNTarget{limit: 0, maxConf: 5}
	r := newTestLastNReducer(t, target)
	require.NoError(t, r.Recover())
	assert.Equal(t, 1, target.limit)
}

func TestLastNConfig_Validate(t *testing.T) {
	base := DefaultLastNConfig()
	require.NoError(t, base.Validate())

	for name, mutate := range map[string]func(*LastNConfig){
		"reduction scale one": func(c *LastNConfig) { c.ReductionScale = 1 },
		"reduction scale zero": func(c *LastNConfig) { c.ReductionScale = 0 },
		"recover scale one":    func(c *LastNConfig) { c.RecoverScale = 1 },
		"negative min":         func(c *LastNConfig) { c.MinLastN = -1 },
		"zero impact":          func(c *LastNConfig) { c.ImpactTime = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), api.ErrInvalidArgument)
		})
	}
	_, err := NewLastNReducer(nil, base, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
