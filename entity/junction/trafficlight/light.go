// 提供两相位信号灯状态机
// 相位只有南北绿与东西绿两种，无黄灯过渡；外部指令先写入buffer，在下一次Update时生效
package trafficlight

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
)

var (
	ErrAutoTimer    = errors.New("cannot command a traffic light in auto timer mode")
	ErrInvalidPhase = errors.New("invalid traffic light phase")
)

// Options 信号灯参数
type Options struct {
	Mode          entity.LightMode
	InitialPhase  entity.Phase
	CycleTicks    int32 // 定时模式下的相位时长
	MinDwellTicks int32 // 相位最短保持时间，0表示不限制
}

// TrafficLight 两相位信号灯
// 功能：维护当前相位与切换计时，按控制方式决定何时切换
// 说明：同一时刻只有一个相位生效，正交方向隐含为红灯；除计时外不保存切换历史
type TrafficLight struct {
	junctionID int32
	opts       Options

	phase            entity.Phase
	ticksSinceSwitch int32
	buffer           *entity.Phase // 外部指令buffer，Update时处理
	switches         int32         // 本次运行的切换次数
}

// New 创建信号灯
// 参数：junctionID-所属路口ID，opts-信号灯参数
// 返回：信号灯实例与错误信息（相位非法或时长非正时返回错误）
func New(junctionID int32, opts Options) (*TrafficLight, error) {
	if !opts.InitialPhase.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhase, int(opts.InitialPhase))
	}
	if opts.Mode == entity.AutoTimer && opts.CycleTicks <= 0 {
		return nil, fmt.Errorf("junction %d: cycle ticks must be positive, got %d", junctionID, opts.CycleTicks)
	}
	if opts.MinDwellTicks < 0 {
		return nil, fmt.Errorf("junction %d: min dwell ticks must not be negative, got %d", junctionID, opts.MinDwellTicks)
	}
	l := &TrafficLight{junctionID: junctionID, opts: opts}
	l.Reset()
	return l, nil
}

// Reset 恢复初始相位并清空计时与未处理指令
func (l *TrafficLight) Reset() {
	l.phase = l.opts.InitialPhase
	l.ticksSinceSwitch = 0
	l.buffer = nil
	l.switches = 0
}

// SetMode 修改控制方式
// 说明：只应在构造或重置时调用；切换到定时模式会丢弃未处理指令
func (l *TrafficLight) SetMode(mode entity.LightMode, minDwellTicks int32) {
	l.opts.Mode = mode
	l.opts.MinDwellTicks = minDwellTicks
	if mode == entity.AutoTimer {
		l.buffer = nil
	}
}

// Update 更新阶段，每步执行一次
// 功能：推进计时并按控制方式切换相位
// 算法说明：
// 1. 距上次切换的步数加一
// 2. 定时模式：达到相位时长则切换
// 3. 手动/智能体模式：buffer中的目标相位与当前不同且已满足最短保持时间则切换，否则丢弃指令
// 4. 切换后计时归零
func (l *TrafficLight) Update() {
	l.ticksSinceSwitch++
	switch l.opts.Mode {
	case entity.AutoTimer:
		if l.ticksSinceSwitch >= l.opts.CycleTicks {
			l.switchTo(l.phase.Other())
		}
	case entity.Manual, entity.AgentControlled:
		if l.buffer != nil {
			target := *l.buffer
			l.buffer = nil
			if target != l.phase && l.ticksSinceSwitch >= l.opts.MinDwellTicks {
				l.switchTo(target)
			}
		}
	}
}

func (l *TrafficLight) switchTo(p entity.Phase) {
	l.phase = p
	l.ticksSinceSwitch = 0
	l.switches++
}

// Request 请求切换到指定相位
// 功能：将目标相位写入buffer，下一次Update时生效
// 参数：p-目标相位
// 返回：定时模式或相位非法时返回错误
// 说明：请求当前相位等价于不切换；最短保持时间未满足的请求会被忽略
func (l *TrafficLight) Request(p entity.Phase) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}
	if l.opts.Mode == entity.AutoTimer {
		return fmt.Errorf("junction %d: %w", l.junctionID, ErrAutoTimer)
	}
	l.buffer = &p
	return nil
}

// Toggle 请求切换到正交相位
func (l *TrafficLight) Toggle() error {
	return l.Request(l.phase.Other())
}

// JunctionID 所属路口ID
func (l *TrafficLight) JunctionID() int32 {
	return l.junctionID
}

// Phase 当前相位
func (l *TrafficLight) Phase() entity.Phase {
	return l.phase
}

// Mode 当前控制方式
func (l *TrafficLight) Mode() entity.LightMode {
	return l.opts.Mode
}

// TicksSinceSwitch 距上次切换的步数
func (l *TrafficLight) TicksSinceSwitch() int32 {
	return l.ticksSinceSwitch
}

// Switches 本次运行的切换次数
func (l *TrafficLight) Switches() int32 {
	return l.switches
}

// IsGreen 指定通行轴是否为绿灯
func (l *TrafficLight) IsGreen(axis entity.Axis) bool {
	return l.phase.GreenAxis() == axis
}
