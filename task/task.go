// 模拟运行任务：组装引擎与可选的智能体，按步推进
package task

import (
	"sync/atomic"

	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/simulation"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

// Context 模拟任务上下文
// 功能：包含一次模拟运行的所有组件和状态
// 说明：未提供智能体时信号灯按simulation.light.mode运行；提供智能体时所有信号灯交给智能体贪心控制
type Context struct {
	// 关闭指令
	closed atomic.Bool
	// 是否输出心跳日志
	heartbeat bool

	engine *simulation.Engine

	// 以下仅在智能体控制时有效
	env     *env.Env
	agent   *agent.Agent
	states  []env.State
	actions []env.Action
}

// NewContext 创建模拟任务上下文
// 参数：c-完整配置，a-智能体（可为nil），rng-随机数引擎
// 返回：初始化完成的Context与错误信息
// 算法说明：
// 1. 无智能体时直接创建模拟引擎
// 2. 有智能体时按其编码方式创建环境，智能体复制一份并关闭探索
func NewContext(c config.Config, a *agent.Agent, rng *randengine.Engine) (*Context, error) {
	ctx := &Context{heartbeat: true}
	if a == nil {
		engine, err := simulation.New(c.Simulation, rng)
		if err != nil {
			return nil, err
		}
		ctx.engine = engine
		return ctx, nil
	}
	c.Env.Contextual = a.Encoding() == env.EncodingContextual
	// 运行模式下不因拥堵或episode长度终止
	c.Env.SaturationTicks = 0
	e, err := env.New(c, rng)
	if err != nil {
		return nil, err
	}
	ctx.agent = a.Clone(rng)
	if err := ctx.agent.SetEpsilon(0); err != nil {
		return nil, err
	}
	ctx.env = e
	ctx.engine = e.Engine()
	ctx.states = e.Reset()
	ctx.actions = make([]env.Action, len(ctx.states))
	return ctx, nil
}

// Engine 模拟引擎
func (ctx *Context) Engine() *simulation.Engine {
	return ctx.engine
}

// AgentControlled 信号灯是否由智能体控制
func (ctx *Context) AgentControlled() bool {
	return ctx.agent != nil
}

// DisableHeartbeat 关闭心跳日志，用于大量并行运行
func (ctx *Context) DisableHeartbeat() {
	ctx.heartbeat = false
}

// Close 请求停止Run循环
func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	log.Info("close requested")
	ctx.closed.Store(true)
}

// Closed 是否已请求停止
func (ctx *Context) Closed() bool {
	return ctx.closed.Load()
}
