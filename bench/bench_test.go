package bench_test

import (
	"bytes"
	"encoding/csv"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/bench"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

func TestDescribe(t *testing.T) {
	m := bench.Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, m.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), m.Std, 1e-12)
	assert.Equal(t, 2.0, m.Min)
	assert.Equal(t, 9.0, m.Max)
	assert.InDelta(t, 1.96*math.Sqrt(32.0/7.0)/math.Sqrt(8), m.CI95, 1e-12)

	single := bench.Describe([]float64{3})
	assert.Equal(t, bench.Metric{Mean: 3, Min: 3, Max: 3}, single)
	assert.Equal(t, bench.Metric{}, bench.Describe(nil))
}

func smallConfig() config.Config {
	c := config.Default()
	c.Bench.Runs = 3
	c.Bench.Duration = 200
	c.Bench.Seed = 7
	return c
}

func untrained(t *testing.T, encoding env.Encoding) *agent.Agent {
	a, err := agent.New(config.Default().Agent, encoding, randengine.New(1))
	require.NoError(t, err)
	return a
}

func TestFixedIsDeterministic(t *testing.T) {
	r := bench.NewRunner(smallConfig(), nil, nil)
	s := bench.Scenario{Name: "Medium", SpawnRate: 5}
	a1, err := r.Run(bench.MethodFixed, s)
	require.NoError(t, err)
	a2, err := r.Run(bench.MethodFixed, s)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, 3, a1.Runs)
	assert.Positive(t, a1.Spawned.Mean)
	assert.GreaterOrEqual(t, a1.Wait.Min, 0.0)
	assert.LessOrEqual(t, a1.Wait.Min, a1.Wait.Mean)
	assert.LessOrEqual(t, a1.Wait.Mean, a1.Wait.Max)
}

func TestAgentMethods(t *testing.T) {
	plain := untrained(t, env.EncodingPlain)
	ctx := untrained(t, env.EncodingContextual)
	r := bench.NewRunner(smallConfig(), plain, ctx)
	assert.Equal(t, bench.Methods, r.Available())

	s := bench.DefaultScenarios()[4]
	for _, m := range []bench.Method{bench.MethodQLearning, bench.MethodContextual} {
		a1, err := r.Run(m, s)
		require.NoError(t, err)
		a2, err := r.Run(m, s)
		require.NoError(t, err)
		assert.Equal(t, a1, a2, "method %v", m)
	}
	// 基准运行不修改原智能体
	assert.Equal(t, 0, plain.Len())
	assert.Equal(t, 0.1, plain.Epsilon())
}

func TestMissingAgent(t *testing.T) {
	r := bench.NewRunner(smallConfig(), nil, nil)
	assert.Equal(t, []bench.Method{bench.MethodFixed}, r.Available())
	_, err := r.Run(bench.MethodQLearning, bench.Scenario{Name: "Low", SpawnRate: 10})
	assert.ErrorIs(t, err, bench.ErrNoAgent)
	_, err = r.Run(bench.Method("RANDOM"), bench.Scenario{Name: "Low", SpawnRate: 10})
	assert.ErrorIs(t, err, bench.ErrUnknownMethod)
}

func TestRunAllAndCSV(t *testing.T) {
	c := smallConfig()
	c.Bench.Runs = 2
	r := bench.NewRunner(c, untrained(t, env.EncodingPlain), nil)
	aggs, err := r.RunAll(bench.DefaultScenarios()[:2])
	require.NoError(t, err)
	require.Len(t, aggs, 4)
	assert.Equal(t, bench.MethodFixed, aggs[0].Method)
	assert.Equal(t, "High", aggs[0].Scenario)
	assert.Equal(t, bench.MethodQLearning, aggs[3].Method)
	assert.Equal(t, "Medium-High", aggs[3].Scenario)

	var buf bytes.Buffer
	require.NoError(t, bench.WriteCSV(&buf, aggs))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "method", rows[0][0])
	assert.Equal(t, []string{"FIXED", "High", "1", "2"}, rows[1][:4])
	for _, row := range rows {
		assert.Len(t, row, len(rows[0]))
	}
	assert.Contains(t, rows[0], "avg_queue_ci95")

	buf.Reset()
	require.NoError(t, bench.WriteReport(&buf, aggs))
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))

	path := filepath.Join(t.TempDir(), "bench.csv")
	require.NoError(t, bench.SaveCSV(path, aggs))
	assert.FileExists(t, path)
}

func TestLoadAgentsSkipsMissing(t *testing.T) {
	c := smallConfig()
	dir := t.TempDir()
	c.Bench.Model = filepath.Join(dir, "q.msgpack")
	c.Bench.ContextualModel = filepath.Join(dir, "missing.msgpack")
	require.NoError(t, untrained(t, env.EncodingPlain).Save(c.Bench.Model))

	plain, ctx, err := bench.LoadAgents(c)
	require.NoError(t, err)
	assert.NotNil(t, plain)
	assert.Nil(t, ctx)

	// 编码不符的模型文件直接报错
	c.Bench.ContextualModel = c.Bench.Model
	_, _, err = bench.LoadAgents(c)
	assert.ErrorIs(t, err, agent.ErrEncodingMismatch)
}

func TestSummarize(t *testing.T) {
	aggs := []bench.Aggregate{
		{Method: bench.MethodFixed, Scenario: "High", Runs: 3, Wait: bench.Metric{Mean: 10}, Queue: bench.Metric{Mean: 4}},
		{Method: bench.MethodQLearning, Scenario: "High", Runs: 3, Wait: bench.Metric{Mean: 6}, Queue: bench.Metric{Mean: 2}},
		{Method: bench.MethodFixed, Scenario: "Low", Runs: 3, Wait: bench.Metric{Mean: 2}, Queue: bench.Metric{Mean: 1}},
		{Method: bench.MethodQLearning, Scenario: "Low", Runs: 3, Wait: bench.Metric{Mean: 4}, Queue: bench.Metric{Mean: 1}},
	}
	summaries, best := bench.Summarize(aggs)
	require.Len(t, summaries, 2)
	assert.Equal(t, bench.MethodSummary{Method: bench.MethodFixed, Scenarios: 2, Runs: 6, Wait: 6, Queue: 2.5}, summaries[0])
	assert.Equal(t, bench.MethodSummary{Method: bench.MethodQLearning, Scenarios: 2, Runs: 6, Wait: 5, Queue: 1.5}, summaries[1])
	assert.Equal(t, bench.MethodQLearning, best)

	// 相同时取靠前的方法
	aggs[1].Wait.Mean = 8
	_, best = bench.Summarize(aggs)
	assert.Equal(t, bench.MethodFixed, best)

	var buf bytes.Buffer
	require.NoError(t, bench.WriteSummary(&buf, aggs))
	assert.Contains(t, buf.String(), "best performer (lowest avg wait): FIXED")

	summaries, best = bench.Summarize(nil)
	assert.Empty(t, summaries)
	assert.Equal(t, bench.Method(""), best)
}

func TestScenarioRateLabel(t *testing.T) {
	scenarios := bench.DefaultScenarios()
	assert.Equal(t, "1", scenarios[0].RateLabel())
	assert.Equal(t, "10", scenarios[3].RateLabel())
	assert.Equal(t, "fluctuating", scenarios[4].RateLabel())
}
