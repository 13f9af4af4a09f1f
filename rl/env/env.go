// 强化学习环境：将模拟引擎包装为reset/step/reward接口
package env

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/simulation"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

var (
	ErrInvalidAction = errors.New("invalid action")
)

// Action 智能体动作，0请求南北向绿灯，1请求东西向绿灯
type Action int

const (
	ActionVerticalGreen   Action = Action(entity.VerticalGreen)
	ActionHorizontalGreen Action = Action(entity.HorizontalGreen)

	NumActions = 2
)

// Valid 是否为合法动作
func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

// Info 附加信息
type Info struct {
	Tick           int32               `json:"tick"`
	Live           int                 `json:"live"`
	Level          entity.TrafficLevel `json:"level"`
	Gridlock       bool                `json:"gridlock"`       // 因车辆数持续饱和而终止
	SaturatedTicks int32               `json:"saturatedTicks"` // 车辆数连续达到上限的步数
	Stats          simulation.Stats    `json:"stats"`
}

// Result Step的返回结果
type Result struct {
	States []State
	Reward float64
	Done   bool
	Info   Info
}

// Env 强化学习环境
// 功能：所有信号灯交给智能体控制，每步接收每个路口一个动作
// 说明：奖励为受控路口本步新增等待步数与排队长度之和的相反数，恒不大于0
type Env struct {
	cfg      config.Env
	engine   *simulation.Engine
	encoding Encoding

	saturated int32
}

// New 创建环境
// 参数：cfg-完整配置（使用其中的simulation与env部分），rng-随机数引擎
// 返回：环境与错误信息
func New(cfg config.Config, rng *randengine.Engine) (*Env, error) {
	if err := cfg.Env.Validate(); err != nil {
		return nil, err
	}
	engine, err := simulation.New(cfg.Simulation, rng)
	if err != nil {
		return nil, err
	}
	engine.SetLightMode(entity.AgentControlled, cfg.Env.MinDwellTicks)
	e := &Env{
		cfg:      cfg.Env,
		engine:   engine,
		encoding: EncodingPlain,
	}
	if cfg.Env.Contextual {
		e.encoding = EncodingContextual
	}
	return e, nil
}

// Reset 开始新的episode
// 返回：每个路口的初始状态
func (e *Env) Reset() []State {
	e.engine.Reset()
	e.saturated = 0
	return e.States()
}

// Step 执行一步
// 功能：将动作写入各路口信号灯，推进模拟一步，计算奖励与终止条件
// 参数：actions-每个路口一个动作，按路口ID顺序
// 返回：新状态、奖励、是否终止与附加信息；动作数量或取值非法时返回ErrInvalidAction且不推进模拟
// 说明：动作与当前相位相同等价于不切换；最短保持时间未满足时切换请求被忽略
func (e *Env) Step(actions []Action) (Result, error) {
	junctions := e.engine.Junctions()
	if len(actions) != len(junctions) {
		return Result{}, fmt.Errorf("%w: got %d actions for %d junctions", ErrInvalidAction, len(actions), len(junctions))
	}
	for i, a := range actions {
		if !a.Valid() {
			return Result{}, fmt.Errorf("%w: %d for junction %d", ErrInvalidAction, int(a), i)
		}
	}
	for i, j := range junctions {
		if err := j.TrafficLight().Request(entity.Phase(actions[i])); err != nil {
			return Result{}, err
		}
	}
	e.engine.Step()

	reward := 0.0
	for _, j := range junctions {
		q := e.engine.Queues(j.ID())
		reward -= float64(e.engine.JunctionWait(j.ID()) + lo.Sum(q[:]))
	}

	if e.engine.Live() >= e.engine.MaxCars() {
		e.saturated++
	} else {
		e.saturated = 0
	}
	gridlock := e.cfg.SaturationTicks > 0 && e.saturated > e.cfg.SaturationTicks
	done := e.engine.Tick() >= e.cfg.EpisodeTicks || gridlock
	if gridlock {
		log.Debugf("gridlock at tick %d: %d vehicles for %d ticks", e.engine.Tick(), e.engine.Live(), e.saturated)
	}

	return Result{
		States: e.States(),
		Reward: reward,
		Done:   done,
		Info: Info{
			Tick:           e.engine.Tick(),
			Live:           e.engine.Live(),
			Level:          e.TrafficLevel(),
			Gridlock:       gridlock,
			SaturatedTicks: e.saturated,
			Stats:          e.engine.Stats(),
		},
	}, nil
}

// StepAll 对所有路口执行同一个动作
func (e *Env) StepAll(action Action) (Result, error) {
	return e.Step(lo.Times(e.engine.Network().NumJunctions(), func(int) Action { return action }))
}

// States 当前每个路口的离散状态
func (e *Env) States() []State {
	level := e.TrafficLevel()
	return lo.Map(e.engine.Junctions(), func(j *junction.Junction, _ int) State {
		return e.state(j.ID(), level)
	})
}

func (e *Env) state(id int32, level entity.TrafficLevel) State {
	q := e.engine.Queues(id)
	tl, err := e.engine.Light(id)
	if err != nil {
		log.Panicf("get light: %v", err)
	}
	s := State{
		Encoding: e.encoding,
		Phase:    tl.Phase(),
	}
	for d, l := range q {
		s.Queues[d] = Bucket(l, e.cfg.QueueThresholds)
	}
	if e.encoding == EncodingContextual {
		s.Level = level
	}
	return s
}

// TrafficLevel 当前全局交通等级
func (e *Env) TrafficLevel() entity.TrafficLevel {
	return Level(e.engine.Live(), e.cfg.TrafficLevelThresholds)
}

// Encoding 状态编码方式
func (e *Env) Encoding() Encoding {
	return e.encoding
}

// NumJunctions 受控路口数
func (e *Env) NumJunctions() int {
	return e.engine.Network().NumJunctions()
}

// Engine 底层模拟引擎
func (e *Env) Engine() *simulation.Engine {
	return e.engine
}
