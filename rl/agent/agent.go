// 表格型Q学习智能体
package agent

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

var (
	ErrEncodingMismatch = errors.New("state encoding does not match the q-table")
	ErrBadModel         = errors.New("bad q-table model")
)

// Values 一个状态下各动作的价值
type Values [env.NumActions]float64

// Agent Q学习智能体
// 功能：维护状态->动作价值表，按ε-greedy选择动作并用Bellman方程更新
// 说明：Q表按需增长；普通编码与上下文编码的Q表互不兼容
type Agent struct {
	alpha        float64
	gamma        float64
	epsilon      float64
	epsilonMin   float64
	epsilonDecay float64

	encoding env.Encoding
	table    map[string]Values
	episodes int // 已训练的episode数

	rng *randengine.Engine
}

// New 创建智能体
// 功能：按配置初始化学习参数；配置了model_path时立即加载，加载失败直接返回错误
// 参数：cfg-智能体配置，encoding-状态编码方式，rng-随机数引擎（探索策略只从该引擎取随机数）
// 返回：智能体与错误信息
func New(cfg config.Agent, encoding env.Encoding, rng *randengine.Engine) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		alpha:        cfg.Alpha,
		gamma:        cfg.Gamma,
		epsilon:      cfg.Epsilon,
		epsilonMin:   cfg.EpsilonMin,
		epsilonDecay: cfg.EpsilonDecay,
		encoding:     encoding,
		table:        make(map[string]Values),
		rng:          rng,
	}
	if cfg.ModelPath != "" {
		if err := a.Load(cfg.ModelPath); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Clone 复制智能体，新副本使用独立的随机数引擎
func (a *Agent) Clone(rng *randengine.Engine) *Agent {
	c := *a
	c.table = make(map[string]Values, len(a.table))
	for k, v := range a.table {
		c.table[k] = v
	}
	c.rng = rng
	return &c
}

func (a *Agent) check(s env.State) error {
	if s.Encoding != a.encoding {
		return fmt.Errorf("%w: got %v state for %v agent", ErrEncodingMismatch, s.Encoding, a.encoding)
	}
	return nil
}

// SelectAction 选择动作
// 功能：以概率ε均匀随机选择动作，否则选择价值最大的动作
// 参数：s-当前状态
// 返回：动作与错误信息（状态编码不匹配时返回ErrEncodingMismatch）
// 说明：价值相同时选择下标最小的动作
func (a *Agent) SelectAction(s env.State) (env.Action, error) {
	if err := a.check(s); err != nil {
		return 0, err
	}
	if a.rng.Float64() < a.epsilon {
		return env.Action(a.rng.Intn(env.NumActions)), nil
	}
	return argmax(a.table[s.Key()]), nil
}

func argmax(v Values) env.Action {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return env.Action(best)
}

// Update Bellman更新
// 功能：Q[s][a] += α·(r + γ·max(Q[s']) − Q[s][a])
// 参数：s-状态，action-动作，reward-奖励，next-下一状态
// 返回：状态编码不匹配或动作非法时返回错误
func (a *Agent) Update(s env.State, action env.Action, reward float64, next env.State) error {
	if err := a.check(s); err != nil {
		return err
	}
	if err := a.check(next); err != nil {
		return err
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %d", env.ErrInvalidAction, int(action))
	}
	nextKey := next.Key()
	nextValues := a.table[nextKey]
	a.table[nextKey] = nextValues
	maxNext := lo.Max(nextValues[:])

	key := s.Key()
	q := a.table[key]
	q[action] += a.alpha * (reward + a.gamma*maxNext - q[action])
	a.table[key] = q
	return nil
}

// DecayEpsilon 衰减探索率，每个episode结束时调用一次
// 说明：探索率不低于下限
func (a *Agent) DecayEpsilon() {
	a.epsilon = max(a.epsilonMin, a.epsilon*a.epsilonDecay)
	a.episodes++
}

// SetEpsilon 设置探索率，评估时设为0
func (a *Agent) SetEpsilon(epsilon float64) error {
	if epsilon < 0 || epsilon > 1 {
		return fmt.Errorf("epsilon must be in [0, 1], got %v", epsilon)
	}
	a.epsilon = epsilon
	return nil
}

// Epsilon 当前探索率
func (a *Agent) Epsilon() float64 {
	return a.epsilon
}

// Encoding 状态编码方式
func (a *Agent) Encoding() env.Encoding {
	return a.encoding
}

// Episodes 已训练的episode数
func (a *Agent) Episodes() int {
	return a.episodes
}

// Len Q表中的状态数
func (a *Agent) Len() int {
	return len(a.table)
}

// Values 状态下各动作的价值（副本），未出现过的状态返回全0
func (a *Agent) Values(s env.State) Values {
	return a.table[s.Key()]
}
