package simulation

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/container"
)

// Stats 运行统计
// 功能：记录本次运行（自上次Reset起）的累计与滑动统计量
type Stats struct {
	Tick    int32 `json:"tick"`
	Live    int   `json:"live"`    // 当前车辆数
	Spawned int   `json:"spawned"` // 累计生成车辆数
	Exited  int   `json:"exited"`  // 累计驶出车辆数（通过量）
	Dropped int   `json:"dropped"` // 因车辆数上限被丢弃的生成请求数
	Blocked int   `json:"blocked"` // 因生成点全被占用而未能生成的请求数，不计入Dropped

	TickWait       int   `json:"tickWait"`       // 本步新增的等待步数
	TotalWaitTicks int64 `json:"totalWaitTicks"` // 所有车辆的累计等待步数

	AvgWaitTicks         float64 `json:"avgWaitTicks"`         // 所有出现过的车辆的平均等待步数
	AvgWaitSeconds       float64 `json:"avgWaitSeconds"`       // 同上（秒）
	MovingAvgWaitSeconds float64 `json:"movingAvgWaitSeconds"` // 滑动窗口内在途车辆平均等待时间（秒）
	MaxWaitTicks         int32   `json:"maxWaitTicks"`         // 单车最大累计等待步数
	MaxWaitSeconds       float64 `json:"maxWaitSeconds"`

	AvgQueue float64 `json:"avgQueue"` // 各步各进口道平均排队长度的均值
	MaxQueue int     `json:"maxQueue"` // 单个进口道出现过的最大排队长度
}

// statistics 统计量累加器
type statistics struct {
	clock  *clock.Clock
	window *container.Window // 在途车辆平均等待时间（秒）的滑动窗口

	s        Stats
	queueSum float64 // 各步平均排队长度之和
}

func newStatistics(c *clock.Clock, windowSeconds float64) *statistics {
	return &statistics{
		clock:  c,
		window: container.NewWindow(c.TicksFor(windowSeconds)),
	}
}

func (st *statistics) reset() {
	st.window.Reset()
	st.s = Stats{}
	st.queueSum = 0
}

// record 在每步车辆更新之后记录统计
// 参数：live-在途车辆数，liveWait-在途车辆累计等待步数之和，queues-各路口各进口道排队长度
func (st *statistics) record(live int, liveWait int64, queues [][4]int) {
	st.s.Tick = st.clock.Step
	st.s.Live = live
	st.s.TotalWaitTicks += int64(st.s.TickWait)
	if st.s.Spawned > 0 {
		st.s.AvgWaitTicks = float64(st.s.TotalWaitTicks) / float64(st.s.Spawned)
	}
	st.s.AvgWaitSeconds = st.clock.Seconds(st.s.AvgWaitTicks)
	st.s.MaxWaitSeconds = st.clock.Seconds(float64(st.s.MaxWaitTicks))

	if live > 0 {
		st.window.Push(st.clock.Seconds(float64(liveWait) / float64(live)))
	} else {
		st.window.Push(0)
	}
	st.s.MovingAvgWaitSeconds = st.window.Mean()

	if len(queues) > 0 {
		all := lo.Flatten(lo.Map(queues, func(q [4]int, _ int) []int { return q[:] }))
		st.s.MaxQueue = max(st.s.MaxQueue, lo.Max(all))
		st.queueSum += float64(lo.Sum(all)) / float64(len(all))
	}
	if st.s.Tick > 0 {
		st.s.AvgQueue = st.queueSum / float64(st.s.Tick)
	}
}
