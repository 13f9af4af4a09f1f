package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
)

func TestDefaultIsValid(t *testing.T) {
	c := config.Default()
	assert.NoError(t, c.Validate())
	assert.Equal(t, 20, c.Simulation.MaxCars)
	assert.Equal(t, int32(20), c.Simulation.SpawnRate)
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
simulation:
  spawn_rate: 3
  cars_per_spawn: 2
  light:
    mode: manual
    cycle_ticks: 15
    min_dwell_ticks: 5
env:
  contextual: true
agent:
  alpha: 0.5
`)
	c, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, int32(3), c.Simulation.SpawnRate)
	assert.Equal(t, 2, c.Simulation.CarsPerSpawn)
	assert.Equal(t, "manual", c.Simulation.Light.Mode)
	assert.True(t, c.Env.Contextual)
	assert.Equal(t, 0.5, c.Agent.Alpha)
	// 未覆盖的字段保持默认值
	assert.Equal(t, 20, c.Simulation.GridSize)
	assert.Equal(t, 0.9, c.Agent.Gamma)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := config.Parse([]byte("simulation:\n  no_such_field: 1\n"))
	assert.Error(t, err)
}

func TestValidateFailsFast(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"zero tick rate":       func(c *config.Config) { c.Simulation.TickRate = 0 },
		"negative spawn rate":  func(c *config.Config) { c.Simulation.SpawnRate = -1 },
		"bad spawn mode":       func(c *config.Config) { c.Simulation.SpawnMode = "poisson" },
		"bad light mode":       func(c *config.Config) { c.Simulation.Light.Mode = "yellow" },
		"zero epsilon floor":   func(c *config.Config) { c.Agent.EpsilonMin = 0 },
		"decreasing buckets":   func(c *config.Config) { c.Env.QueueThresholds = []int32{3, 1} },
		"single level bound":   func(c *config.Config) { c.Env.TrafficLevelThresholds = []int{4} },
		"zero episode ticks":   func(c *config.Config) { c.Env.EpisodeTicks = 0 },
		"zero training spawn":  func(c *config.Config) { c.Train.SpawnRates = []int32{1, 0} },
		"alpha larger than 1":  func(c *config.Config) { c.Agent.Alpha = 1.5 },
		"negative restart lag": func(c *config.Config) { c.Simulation.RestartDelay = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := config.Default()
			mutate(&c)
			err := c.Validate()
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestExampleMatchesDefault(t *testing.T) {
	data, err := os.ReadFile("../../config.example.yaml")
	require.NoError(t, err)
	c, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}
