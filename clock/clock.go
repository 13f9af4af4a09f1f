package clock

import (
	"fmt"
)

// Clock 仿真时钟管理器
// 功能：管理仿真系统的时间推进，一次Tick对应固定的时间步长
// 说明：维护当前仿真时间、步数等信息，提供时间格式化
type Clock struct {
	DT       float64 // 每个模拟步的时间间隔（秒）
	TickRate float64 // 每秒模拟步数

	T    float64 // 当前时间（秒）
	Step int32   // 当前步数（已完成的步数）
}

// New 根据步频创建新的时钟实例
// 功能：根据每秒步数计算时间步长并初始化时钟
// 参数：tickRate-每秒模拟步数，必须为正数（由配置校验保证）
// 返回：初始化完成的时钟实例
func New(tickRate float64) *Clock {
	c := &Clock{
		DT:       1 / tickRate,
		TickRate: tickRate,
	}
	c.Init()
	return c
}

// Init 初始化时钟状态
// 功能：重置步数与当前时间
func (c *Clock) Init() {
	c.Step = 0
	c.T = 0
}

// Tick 推进一步
// 功能：步数加一并重新计算当前时间
// 说明：时间由步数乘以步长得到，避免浮点累加误差
func (c *Clock) Tick() {
	c.Step++
	c.T = float64(c.Step) * c.DT
}

// TicksFor 计算给定秒数对应的步数（至少为1）
func (c *Clock) TicksFor(seconds float64) int {
	n := int(seconds*c.TickRate + 0.5)
	if n < 1 {
		return 1
	}
	return n
}

// Seconds 将步数换算为秒
func (c *Clock) Seconds(ticks float64) float64 {
	return ticks * c.DT
}

// String 获取时钟的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	h, m, sec := c.HourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(sec))
}

// HourMinuteSecond 将当前仿真时间拆为时、分、秒，秒保留小数部分
func (c *Clock) HourMinuteSecond() (hour, minute int, second float64) {
	whole := int(c.T)
	hour, minute = whole/3600, whole%3600/60
	second = c.T - float64(whole-whole%60)
	return
}
