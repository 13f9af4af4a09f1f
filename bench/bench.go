// 信号控制方法对比基准：定时控制、Q学习与上下文Q学习在多种交通量下的独立重复运行
package bench

import (
	"errors"
	"fmt"
	"strconv"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/task"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

var (
	ErrNoAgent       = errors.New("no trained agent for method")
	ErrUnknownMethod = errors.New("unknown benchmark method")
)

// Method 信号控制方法
type Method string

const (
	MethodFixed      Method = "FIXED"      // 定时切换
	MethodQLearning  Method = "QLEARNING"  // Q学习
	MethodContextual Method = "CONTEXTUAL" // 上下文Q学习
)

// Methods 所有方法
var Methods = []Method{MethodFixed, MethodQLearning, MethodContextual}

// Scenario 交通量场景
// 说明：Schedule非空时每Period步按顺序切换生成间隔，循环使用
type Scenario struct {
	Name      string
	SpawnRate int32
	Schedule  []int32
	Period    int32
}

// DefaultScenarios 默认场景：四种固定交通量与一种波动交通量
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "High", SpawnRate: 1},
		{Name: "Medium-High", SpawnRate: 2},
		{Name: "Medium", SpawnRate: 5},
		{Name: "Low", SpawnRate: 10},
		{Name: "Fluctuating", SpawnRate: 1, Schedule: []int32{1, 2, 3, 5, 8, 10, 5, 3, 2, 1}, Period: 300},
	}
}

// RateLabel 生成间隔的文字表示，波动场景为fluctuating
func (s Scenario) RateLabel() string {
	if len(s.Schedule) > 0 {
		return "fluctuating"
	}
	return strconv.Itoa(int(s.SpawnRate))
}

// spawnRateAt 第tick步之前应使用的生成间隔
func (s Scenario) spawnRateAt(tick int32) int32 {
	if len(s.Schedule) == 0 || s.Period <= 0 {
		return s.SpawnRate
	}
	return s.Schedule[int(tick/s.Period)%len(s.Schedule)]
}

// RunResult 单次运行的结果
type RunResult struct {
	Seed           uint64
	AvgWaitSeconds float64
	MaxWaitSeconds float64
	AvgQueue       float64
	MaxQueue       int
	Spawned        int
	Exited         int
}

// Aggregate 同一方法同一场景下多次运行的统计
type Aggregate struct {
	Method    Method
	Scenario  string
	SpawnRate string // 见Scenario.RateLabel
	Runs      int
	Wait      Metric
	MaxWait   Metric
	Queue     Metric
	MaxQueue  Metric
	Spawned   Metric
	Exited    Metric
}

// Runner 基准测试执行器
type Runner struct {
	cfg    config.Config
	agents map[Method]*agent.Agent
}

// NewRunner 创建基准测试执行器
// 参数：cfg-完整配置，plain/contextual-训练好的智能体，为nil时对应方法不可用
func NewRunner(cfg config.Config, plain, contextual *agent.Agent) *Runner {
	r := &Runner{cfg: cfg, agents: make(map[Method]*agent.Agent)}
	if plain != nil {
		r.agents[MethodQLearning] = plain
	}
	if contextual != nil {
		r.agents[MethodContextual] = contextual
	}
	return r
}

// Available 可以运行的方法
func (r *Runner) Available() []Method {
	return lo.Filter(Methods, func(m Method, _ int) bool {
		return m == MethodFixed || r.agents[m] != nil
	})
}

type runOutput struct {
	result RunResult
	err    error
}

// Run 对一个方法与场景执行bench.runs次独立运行并汇总
// 说明：第i次运行使用种子bench.seed+i，各次运行互不共享状态，并行执行
func (r *Runner) Run(method Method, scenario Scenario) (Aggregate, error) {
	switch method {
	case MethodFixed:
	case MethodQLearning, MethodContextual:
		if r.agents[method] == nil {
			return Aggregate{}, fmt.Errorf("%w %v", ErrNoAgent, method)
		}
	default:
		return Aggregate{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	seeds := lo.Map(lo.Range(r.cfg.Bench.Runs), func(i int, _ int) uint64 {
		return r.cfg.Bench.Seed + uint64(i)
	})
	outputs := parallel.GoMap(seeds, func(seed uint64) runOutput {
		res, err := r.runOnce(method, scenario, seed)
		return runOutput{result: res, err: err}
	})
	results := make([]RunResult, 0, len(outputs))
	for _, o := range outputs {
		if o.err != nil {
			return Aggregate{}, o.err
		}
		results = append(results, o.result)
	}
	agg := aggregate(method, scenario, results)
	log.Infof("%v/%v: avg wait %.2fs ± %.2f over %d runs", method, scenario.Name, agg.Wait.Mean, agg.Wait.Std, agg.Runs)
	return agg, nil
}

// RunAll 对所有可用方法与给定场景运行基准测试
func (r *Runner) RunAll(scenarios []Scenario) ([]Aggregate, error) {
	out := make([]Aggregate, 0)
	for _, s := range scenarios {
		for _, m := range r.Available() {
			agg, err := r.Run(m, s)
			if err != nil {
				return nil, err
			}
			out = append(out, agg)
		}
	}
	return out, nil
}

func (r *Runner) runOnce(method Method, scenario Scenario, seed uint64) (RunResult, error) {
	cfg := r.cfg
	cfg.Simulation.SpawnRate = scenario.spawnRateAt(0)
	if method == MethodFixed {
		cfg.Simulation.Light.Mode = "auto_timer"
	}
	t, err := task.NewContext(cfg, r.agents[method], randengine.New(seed))
	if err != nil {
		return RunResult{}, err
	}
	t.DisableHeartbeat()
	engine := t.Engine()
	for tick := int32(0); tick < cfg.Bench.Duration; tick++ {
		if err := engine.SetSpawnRate(scenario.spawnRateAt(tick)); err != nil {
			return RunResult{}, err
		}
		if err := t.Step(); err != nil {
			return RunResult{}, err
		}
	}
	st := engine.Stats()
	return RunResult{
		Seed:           seed,
		AvgWaitSeconds: st.AvgWaitSeconds,
		MaxWaitSeconds: st.MaxWaitSeconds,
		AvgQueue:       st.AvgQueue,
		MaxQueue:       st.MaxQueue,
		Spawned:        st.Spawned,
		Exited:         st.Exited,
	}, nil
}

func aggregate(method Method, scenario Scenario, results []RunResult) Aggregate {
	col := func(f func(r RunResult) float64) Metric {
		return Describe(lo.Map(results, func(r RunResult, _ int) float64 { return f(r) }))
	}
	return Aggregate{
		Method:    method,
		Scenario:  scenario.Name,
		SpawnRate: scenario.RateLabel(),
		Runs:      len(results),
		Wait:      col(func(r RunResult) float64 { return r.AvgWaitSeconds }),
		MaxWait:   col(func(r RunResult) float64 { return r.MaxWaitSeconds }),
		Queue:     col(func(r RunResult) float64 { return r.AvgQueue }),
		MaxQueue:  col(func(r RunResult) float64 { return float64(r.MaxQueue) }),
		Spawned:   col(func(r RunResult) float64 { return float64(r.Spawned) }),
		Exited:    col(func(r RunResult) float64 { return float64(r.Exited) }),
	}
}
