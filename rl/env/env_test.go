package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

func newEnv(t *testing.T, modify func(c *config.Config), seed uint64) *env.Env {
	c := config.Default()
	c.Simulation.SpawnRate = 2
	if modify != nil {
		modify(&c)
	}
	e, err := env.New(c, randengine.New(seed))
	require.NoError(t, err)
	return e
}

func TestBucketAndLevel(t *testing.T) {
	th := []int32{0, 3}
	assert.Equal(t, 0, env.Bucket(0, th))
	assert.Equal(t, 1, env.Bucket(1, th))
	assert.Equal(t, 1, env.Bucket(3, th))
	assert.Equal(t, 2, env.Bucket(4, th))
	assert.Equal(t, 2, env.Bucket(100, th))

	lv := []int{6, 13}
	assert.Equal(t, entity.Low, env.Level(0, lv))
	assert.Equal(t, entity.Low, env.Level(6, lv))
	assert.Equal(t, entity.Medium, env.Level(7, lv))
	assert.Equal(t, entity.Medium, env.Level(13, lv))
	assert.Equal(t, entity.High, env.Level(14, lv))
}

func TestStateKey(t *testing.T) {
	s := env.State{Encoding: env.EncodingPlain, Queues: [4]int{0, 1, 2, 0}, Phase: entity.HorizontalGreen, Level: entity.High}
	assert.Equal(t, "0,1,2,0|1", s.Key())
	s.Encoding = env.EncodingContextual
	assert.Equal(t, "0,1,2,0|1|2", s.Key())

	e, err := env.ParseEncoding("contextual")
	require.NoError(t, err)
	assert.Equal(t, env.EncodingContextual, e)
	_, err = env.ParseEncoding("mixed")
	assert.Error(t, err)
}

func TestResetStates(t *testing.T) {
	e := newEnv(t, func(c *config.Config) { c.Env.Contextual = true }, 1)
	states := e.Reset()
	require.Len(t, states, 2)
	for _, s := range states {
		assert.Equal(t, env.EncodingContextual, s.Encoding)
		assert.Equal(t, "0,0,0,0|0|0", s.Key())
	}
	for _, j := range e.Engine().Junctions() {
		assert.Equal(t, entity.AgentControlled, j.TrafficLight().Mode())
	}
}

func TestRewardIsNonPositive(t *testing.T) {
	e := newEnv(t, nil, 3)
	e.Reset()
	rng := randengine.New(99)
	sawNegative, sawZero := false, false
	for i := 0; i < 1000; i++ {
		res, err := e.Step([]env.Action{env.Action(rng.Intn(2)), env.Action(rng.Intn(2))})
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Reward, 0.0)

		waiting, queued := 0, 0
		for _, j := range e.Engine().Junctions() {
			waiting += e.Engine().JunctionWait(j.ID())
			q := e.Engine().Queues(j.ID())
			queued += q[0] + q[1] + q[2] + q[3]
		}
		assert.Equal(t, -float64(waiting+queued), res.Reward)
		assert.Equal(t, waiting == 0, res.Reward == 0)
		if res.Reward < 0 {
			sawNegative = true
		} else {
			sawZero = true
		}
		if res.Done {
			break
		}
	}
	assert.True(t, sawNegative)
	assert.True(t, sawZero)
}

func TestInvalidAction(t *testing.T) {
	e := newEnv(t, nil, 1)
	e.Reset()
	_, err := e.Step([]env.Action{0})
	assert.ErrorIs(t, err, env.ErrInvalidAction)
	_, err = e.Step([]env.Action{0, 2})
	assert.ErrorIs(t, err, env.ErrInvalidAction)
	_, err = e.Step([]env.Action{-1, 0})
	assert.ErrorIs(t, err, env.ErrInvalidAction)
	// 非法动作不推进模拟
	assert.Equal(t, int32(0), e.Engine().Tick())
}

func TestDeterministicEpisodes(t *testing.T) {
	run := func() ([]float64, []string) {
		e := newEnv(t, func(c *config.Config) {
			c.Env.EpisodeTicks = 300
			c.Env.SaturationTicks = 0
		}, 11)
		e.Reset()
		rewards := make([]float64, 0)
		keys := make([]string, 0)
		for i := 0; ; i++ {
			res, err := e.Step([]env.Action{env.Action((i / 40) % 2), env.Action((i / 70) % 2)})
			require.NoError(t, err)
			rewards = append(rewards, res.Reward)
			for _, s := range res.States {
				keys = append(keys, s.Key())
			}
			if res.Done {
				break
			}
		}
		return rewards, keys
	}
	r1, k1 := run()
	r2, k2 := run()
	assert.Len(t, r1, 300)
	assert.Equal(t, r1, r2)
	assert.Equal(t, k1, k2)
}

func TestMinDwellGuardInEnv(t *testing.T) {
	e := newEnv(t, func(c *config.Config) { c.Env.MinDwellTicks = 10 }, 1)
	e.Reset()
	for i := 0; i < 9; i++ {
		res, err := e.StepAll(env.ActionHorizontalGreen)
		require.NoError(t, err)
		assert.Equal(t, entity.VerticalGreen, res.States[0].Phase)
	}
	res, err := e.StepAll(env.ActionHorizontalGreen)
	require.NoError(t, err)
	assert.Equal(t, entity.HorizontalGreen, res.States[0].Phase)
	assert.Equal(t, entity.HorizontalGreen, res.States[1].Phase)
}

func TestGridlockEndsEpisode(t *testing.T) {
	e := newEnv(t, func(c *config.Config) {
		c.Simulation.SpawnRate = 1
		c.Simulation.MaxCars = 4
		c.Env.SaturationTicks = 20
	}, 1)
	e.Reset()
	var res env.Result
	var err error
	for i := 0; i < 2000; i++ {
		// 东西向一直红灯，东西向车辆只进不出
		res, err = e.StepAll(env.ActionVerticalGreen)
		require.NoError(t, err)
		if res.Done {
			break
		}
	}
	assert.True(t, res.Done)
	assert.True(t, res.Info.Gridlock)
	assert.Less(t, res.Info.Tick, int32(2000))
	assert.Greater(t, res.Info.SaturatedTicks, int32(20))
}

func TestEpisodeBudget(t *testing.T) {
	e := newEnv(t, func(c *config.Config) {
		c.Env.EpisodeTicks = 25
		c.Env.SaturationTicks = 0
	}, 1)
	e.Reset()
	for i := 1; i <= 25; i++ {
		res, err := e.StepAll(env.ActionVerticalGreen)
		require.NoError(t, err)
		assert.Equal(t, i == 25, res.Done)
	}
}
