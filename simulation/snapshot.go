package simulation

import (
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
)

// VehicleView 车辆快照
type VehicleView struct {
	ID        int32             `json:"id"`
	Cell      entity.Cell       `json:"cell"`
	Direction entity.Direction  `json:"direction"`
	State     entity.SpeedState `json:"state"`
	WaitTicks int32             `json:"waitTicks"`
}

// JunctionView 路口快照
type JunctionView struct {
	ID               int32            `json:"id"`
	Phase            entity.Phase     `json:"phase"`
	Mode             entity.LightMode `json:"mode"`
	TicksSinceSwitch int32            `json:"ticksSinceSwitch"`
	Queues           [4]int           `json:"queues"` // NB, SB, EB, WB
}

// Snapshot 模拟状态快照
// 说明：只包含值，不持有引擎内部对象的引用
type Snapshot struct {
	Tick      int32          `json:"tick"`
	Time      string         `json:"time"`
	Vehicles  []VehicleView  `json:"vehicles"`
	Junctions []JunctionView `json:"junctions"`
	Stats     Stats          `json:"stats"`
}

// Snapshot 生成当前状态的深拷贝
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Tick:      e.clock.Step,
		Time:      e.clock.String(),
		Vehicles:  make([]VehicleView, 0, len(e.vehicles)),
		Junctions: make([]JunctionView, 0, e.junctionManager.Len()),
		Stats:     e.stats.s,
	}
	for _, v := range e.vehicles {
		s.Vehicles = append(s.Vehicles, VehicleView{
			ID:        v.ID(),
			Cell:      v.Cell(),
			Direction: v.Direction(),
			State:     v.State(),
			WaitTicks: v.WaitTicks(),
		})
	}
	for _, j := range e.junctionManager.Junctions() {
		tl := j.TrafficLight()
		s.Junctions = append(s.Junctions, JunctionView{
			ID:               j.ID(),
			Phase:            tl.Phase(),
			Mode:             tl.Mode(),
			TicksSinceSwitch: tl.TicksSinceSwitch(),
			Queues:           e.queues[j.ID()],
		})
	}
	return s
}
