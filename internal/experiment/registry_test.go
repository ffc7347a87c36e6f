package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
)

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "LSTM", CanonicalName("model_LSTM"))
	assert.Equal(t, "LSTM", CanonicalName("LSTM"))
	assert.Equal(t, "my_model_x", CanonicalName("my_model_x"))
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("model_A", offsetBuilder(0, 1, 0.5, nil)))
	require.NoError(t, r.Register("B", offsetBuilder(0, 1, 0.5, nil)))

	err := r.Register("A", offsetBuilder(0, 1, 0.5, nil))
	assert.ErrorIs(t, err, ErrDuplicateVariant)
	assert.Error(t, r.Register("C", nil))
	assert.Error(t, r.Register("model_", offsetBuilder(0, 1, 0.5, nil)))

	assert.Equal(t, []string{"A", "B"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegistryCases(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("A", offsetBuilder(0, 1, 0.5, nil)))
	require.NoError(t, r.Register("B", offsetBuilder(0, 1, 0.5, nil)))
	require.NoError(t, r.AddCase("C", trial.Config{"units": 32}, nil))
	require.NoError(t, r.AddCase("model_A", trial.Config{"offset": 0.1}, nil))

	assert.Equal(t, []string{"A", "B", "C"}, r.Names())
	assert.Equal(t, map[string]trial.Config{
		"A": {"offset": 0.1},
		"C": {"units": 32.0},
	}, r.Cases())

	// a case takes precedence over the builder and merges suggestions
	v, ok := r.get("A")
	require.True(t, ok)
	_, cfg, err := v.build(space.Assignment{"lr": 0.01})
	require.NoError(t, err)
	assert.Equal(t, trial.Config{"offset": 0.1, "lr": 0.01}, cfg)

	// a builder registered after its case keeps the case configuration
	require.NoError(t, r.Register("C", offsetBuilder(0, 1, 0.5, nil)))
	v, _ = r.get("C")
	_, cfg, err = v.build(nil)
	require.NoError(t, err)
	assert.Equal(t, trial.Config{"units": 32.0}, cfg)

	assert.Error(t, r.AddCase("D", trial.Config{"fn": func() {}}, nil))
}

func TestRegistryResolve(t *testing.T) {
	r := testRegistry(t, nil)

	names, err := r.Resolve(nil, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, names)

	names, err = r.Resolve([]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names, "empty include selects every variant")

	names, err = r.Resolve([]string{"C", "model_A"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, names)

	names, err = r.Resolve([]string{"A"}, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = r.Resolve(nil, []string{"D"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "exclude", cfgErr.Field)
	assert.Equal(t, "D", cfgErr.Name)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestFitOptionsDefaults(t *testing.T) {
	o := FitOptions{}.withDefaults()
	assert.Equal(t, RunDryRun, o.RunType)
	assert.Equal(t, DefaultNumIterations, o.NumIterations)
	assert.Equal(t, PostEvalBest, o.PostOptimize)
	assert.NoError(t, o.Validate())

	o.Workers = -1
	assert.Error(t, o.Validate())
}
