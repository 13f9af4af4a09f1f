package entity

import (
	"fmt"
)

// Cell 网格坐标，x向东增长，y向南增长
type Cell struct {
	X, Y int
}

// Add 按方向前进一格
func (c Cell) Add(d Direction) Cell {
	dx, dy := d.Delta()
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Direction 车辆行驶方向，同时作为路口进口道的下标（NB, SB, EB, WB）
type Direction int

const (
	North Direction = iota // 北行
	South                  // 南行
	East                   // 东行
	West                   // 西行
)

// Directions 所有方向，顺序即进口道下标顺序
var Directions = [4]Direction{North, South, East, West}

// Delta 方向对应的坐标增量
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	case West:
		return -1, 0
	}
	panic(fmt.Sprintf("bad direction %d", int(d)))
}

// Axis 方向所属的通行轴
func (d Direction) Axis() Axis {
	if d == North || d == South {
		return Vertical
	}
	return Horizontal
}

func (d Direction) String() string {
	switch d {
	case North:
		return "NB"
	case South:
		return "SB"
	case East:
		return "EB"
	case West:
		return "WB"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Axis 通行轴：南北向或东西向
type Axis int

const (
	Vertical Axis = iota
	Horizontal
)

func (a Axis) String() string {
	if a == Vertical {
		return "VERTICAL"
	}
	return "HORIZONTAL"
}

// Phase 信号灯相位，数值与智能体动作下标一致
// 同一时刻只有一个相位生效，正交方向隐含为红灯
type Phase int

const (
	VerticalGreen   Phase = iota // 南北向绿灯
	HorizontalGreen              // 东西向绿灯
)

// Valid 是否为合法相位
func (p Phase) Valid() bool {
	return p == VerticalGreen || p == HorizontalGreen
}

// GreenAxis 当前相位放行的通行轴
func (p Phase) GreenAxis() Axis {
	if p == VerticalGreen {
		return Vertical
	}
	return Horizontal
}

// Other 正交相位
func (p Phase) Other() Phase {
	if p == VerticalGreen {
		return HorizontalGreen
	}
	return VerticalGreen
}

func (p Phase) String() string {
	switch p {
	case VerticalGreen:
		return "VERTICAL_GREEN"
	case HorizontalGreen:
		return "HORIZONTAL_GREEN"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// LightMode 信号灯控制方式
type LightMode int

const (
	Manual          LightMode = iota // 仅响应外部指令
	AutoTimer                        // 定时切换
	AgentControlled                  // 由智能体下发指令
)

// ParseLightMode 将配置字符串转换为控制方式
func ParseLightMode(s string) (LightMode, error) {
	switch s {
	case "manual":
		return Manual, nil
	case "auto_timer":
		return AutoTimer, nil
	case "agent_controlled":
		return AgentControlled, nil
	}
	return 0, fmt.Errorf("unknown light mode %q", s)
}

func (m LightMode) String() string {
	switch m {
	case Manual:
		return "MANUAL"
	case AutoTimer:
		return "AUTO_TIMER"
	case AgentControlled:
		return "AGENT_CONTROLLED"
	}
	return fmt.Sprintf("LightMode(%d)", int(m))
}

// SpeedState 车辆运动状态
type SpeedState int

const (
	Moving     SpeedState = iota // 正常行驶
	Stopped                      // 停车等待
	Restarting                   // 起步反应中（手风琴效应）
)

func (s SpeedState) String() string {
	switch s {
	case Moving:
		return "MOVING"
	case Stopped:
		return "STOPPED"
	case Restarting:
		return "RESTARTING"
	}
	return fmt.Sprintf("SpeedState(%d)", int(s))
}

// TrafficLevel 全局交通等级，用于上下文状态编码
type TrafficLevel int

const (
	Low TrafficLevel = iota
	Medium
	High
)

func (l TrafficLevel) String() string {
	switch l {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	}
	return fmt.Sprintf("TrafficLevel(%d)", int(l))
}

// 以名称而非数值输出到JSON
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (m LightMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (s SpeedState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (l TrafficLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
