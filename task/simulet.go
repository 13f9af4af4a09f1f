package task

import (
	"context"
	"flag"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：智能体控制时为每个路口选择动作
func (ctx *Context) prepare() error {
	if ctx.agent == nil {
		return nil
	}
	for i, s := range ctx.states {
		act, err := ctx.agent.SelectAction(s)
		if err != nil {
			return err
		}
		ctx.actions[i] = act
	}
	return nil
}

// update 更新阶段，每步执行一次
func (ctx *Context) update() error {
	if ctx.env == nil {
		ctx.engine.Step()
		return nil
	}
	res, err := ctx.env.Step(ctx.actions)
	if err != nil {
		return err
	}
	ctx.states = res.States
	return nil
}

// Step 推进一步
func (ctx *Context) Step() error {
	if err := ctx.prepare(); err != nil {
		return err
	}
	if err := ctx.update(); err != nil {
		return err
	}
	tick := ctx.engine.Tick()
	if ctx.heartbeat && *heartBeatInterval > 0 && tick%int32(*heartBeatInterval) == 0 {
		st := ctx.engine.Stats()
		hour, minute, second := ctx.engine.Clock().HourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) live=%d exited=%d avg_wait=%.2fs moving_avg=%.2fs",
			tick, hour, minute, second, st.Live, st.Exited, st.AvgWaitSeconds, st.MovingAvgWaitSeconds,
		)
	}
	return nil
}

// Run 运行
// 功能：推进ticks步，ticks<=0时一直运行到Close或ctx取消
// 返回：因ctx取消而停止时返回ctx的错误
func (ctx *Context) Run(c context.Context, ticks int32) error {
	for i := int32(0); ticks <= 0 || i < ticks; i++ {
		if ctx.closed.Load() {
			return nil
		}
		if err := c.Err(); err != nil {
			return err
		}
		if err := ctx.Step(); err != nil {
			return err
		}
	}
	return nil
}
