package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() []*Parameter {
	return []*Parameter{
		mustParam(NewInteger("units", 8, 128)),
		mustParam(NewReal("dropout", 0, 0.5)),
		mustParam(NewCategorical("act", []any{"relu", "tanh"})),
	}
}

func TestNewSearchSpace(t *testing.T) {
	s, err := New(testParams(), []any{32, 0.2, "relu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"units", "dropout", "act"}, s.Names())
	assert.Equal(t, []any{32, 0.2, "relu"}, s.X0())

	p, ok := s.Lookup("dropout")
	require.True(t, ok)
	assert.Equal(t, KindContinuous, p.Kind())
}

func TestNewSearchSpaceRejects(t *testing.T) {
	params := testParams()
	_, err := New(append(params, mustParam(NewReal("units", 0, 1))), nil)
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = New(params, []any{32, 0.2})
	assert.ErrorIs(t, err, ErrDefaultLength)

	_, err = New(params, []any{32, 0.9, "relu"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPointAndCoerce(t *testing.T) {
	s := MustNew(testParams(), nil)
	a, err := s.Point([]any{float64(16), 0.1, "tanh"})
	require.NoError(t, err)
	assert.Equal(t, Assignment{"units": 16, "dropout": 0.1, "act": "tanh"}, a)

	_, err = s.Coerce(Assignment{"units": 16, "dropout": 0.1})
	assert.Error(t, err)
	_, err = s.Coerce(Assignment{"units": 16, "dropout": 0.1, "act": "relu", "extra": 1})
	assert.Error(t, err)
}

func TestConcatAndSpecs(t *testing.T) {
	a := MustNew(testParams()[:1], []any{32})
	b := MustNew(testParams()[1:], []any{0.1, "relu"})
	c, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, []any{32, 0.1, "relu"}, c.X0())

	back, err := FromSpecs(c.Specs(), c.X0())
	require.NoError(t, err)
	assert.Equal(t, c.Names(), back.Names())
	for i, p := range c.Parameters() {
		assert.True(t, p.Equal(back.Parameters()[i]))
	}
}

func TestStaticExtendAppendsDefaults(t *testing.T) {
	st := DefaultStatic(StaticOptions{Lookback: true, BatchSize: true, LearningRate: true})
	require.True(t, st.Enabled())

	variant := MustNew(testParams(), []any{32, 0.2, "relu"})
	full, err := st.Extend(variant, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"units", "dropout", "act", "lookback", "batch_size", "lr"}, full.Names())
	assert.Equal(t, []any{32, 0.2, "relu", DefaultLookback, DefaultBatchSize, DefaultLearningRate}, full.X0())

	full, err = st.Extend(variant, Assignment{"batch_size": 8})
	require.NoError(t, err)
	assert.Equal(t, 8, full.X0()[4])
}

func TestStaticPartial(t *testing.T) {
	st := DefaultStatic(StaticOptions{LearningRate: true})
	variant := MustNew(testParams()[:1], []any{16})
	full, err := st.Extend(variant, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{16, DefaultLearningRate}, full.X0())

	assert.False(t, DefaultStatic(StaticOptions{}).Enabled())
}

func TestStaticExtendWithoutDefaultPoint(t *testing.T) {
	st := DefaultStatic(StaticOptions{Lookback: true, LearningRate: true})
	variant := MustNew(testParams(), nil)

	full, err := st.Extend(variant, Assignment{"lr": 0.01})
	require.NoError(t, err)
	assert.Equal(t, []string{"units", "dropout", "act", "lookback", "lr"}, full.Names())
	assert.False(t, full.HasX0())
	assert.Nil(t, full.X0())
}
