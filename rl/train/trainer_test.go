package train_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/train"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

func shortConfig(t *testing.T) config.Config {
	c := config.Default()
	c.Simulation.SpawnRate = 3
	c.Env.EpisodeTicks = 150
	c.Train.Episodes = 4
	c.Train.LogInterval = 2
	c.Train.Output = filepath.Join(t.TempDir(), "q.msgpack")
	return c
}

func TestTrainPlain(t *testing.T) {
	c := shortConfig(t)
	a, s, err := train.Run(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Episodes)
	assert.Len(t, s.History, 4)
	assert.Equal(t, a.Len(), s.States)
	assert.Positive(t, a.Len())
	assert.InDelta(t, 0.1*math.Pow(0.995, 4), a.Epsilon(), 1e-12)
	for _, ep := range s.History {
		assert.LessOrEqual(t, ep.Reward, 0.0)
		assert.Equal(t, int32(3), ep.SpawnRate)
		assert.Equal(t, int32(150), ep.Ticks)
	}
	assert.NotEmpty(t, s.RewardByLevel)

	loaded, err := agent.New(config.Agent{
		Alpha: 0.1, Gamma: 0.9, Epsilon: 0, EpsilonMin: 0.01, EpsilonDecay: 1,
		ModelPath: c.Train.Output,
	}, env.EncodingPlain, randengine.New(1))
	require.NoError(t, err)
	assert.Equal(t, a.Len(), loaded.Len())
	assert.Equal(t, 4, loaded.Episodes())
}

func TestTrainContextualCurriculum(t *testing.T) {
	c := shortConfig(t)
	c.Train.Episodes = 5
	c.Train.SpawnRates = []int32{1, 10}
	a, s, err := train.Run(context.Background(), c, true)
	require.NoError(t, err)
	assert.Equal(t, env.EncodingContextual, a.Encoding())
	rates := make([]int32, 0)
	for _, ep := range s.History {
		rates = append(rates, ep.SpawnRate)
	}
	assert.Equal(t, []int32{1, 10, 1, 10, 1}, rates)

	_, err = agent.New(config.Agent{
		Alpha: 0.1, Gamma: 0.9, Epsilon: 0, EpsilonMin: 0.01, EpsilonDecay: 1,
		ModelPath: c.Train.Output,
	}, env.EncodingPlain, randengine.New(1))
	assert.ErrorIs(t, err, agent.ErrEncodingMismatch)
}

func TestTrainIsDeterministic(t *testing.T) {
	c := shortConfig(t)
	c.Train.Output = ""
	_, s1, err := train.Run(context.Background(), c, false)
	require.NoError(t, err)
	_, s2, err := train.Run(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestTrainCancelled(t *testing.T) {
	c := shortConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a, s, err := train.Run(ctx, c, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, a)
	assert.Equal(t, 0, s.Episodes)
	// 取消时仍然保存已有的Q表
	assert.FileExists(t, c.Train.Output)
}

func TestTrainRejectsBadConfig(t *testing.T) {
	c := shortConfig(t)
	c.Agent.EpsilonMin = 0
	_, _, err := train.Run(context.Background(), c, false)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
