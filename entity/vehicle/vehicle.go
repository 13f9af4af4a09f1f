// 元胞车辆模型：每步最多直行一格，停车后经过反应延迟才能重新起步
package vehicle

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
)

// Vehicle 车辆
// 功能：记录车辆位置、运动状态与累计等待时间
// 说明：车辆只沿所在车道直行，由模拟引擎判断前方格子是否可进入
type Vehicle struct {
	id        int32
	lane      int32
	direction entity.Direction
	cell      entity.Cell
	spawnTick int32

	state        entity.SpeedState
	waitTicks    int32 // 累计未前进的步数
	restartTimer int32 // 起步反应剩余步数
	waited       bool  // 本步是否未前进
}

// New 创建车辆
// 参数：id-车辆ID，lane-车道ID，direction-行驶方向，cell-生成位置，tick-生成时的步数
func New(id, lane int32, direction entity.Direction, cell entity.Cell, tick int32) *Vehicle {
	return &Vehicle{
		id:        id,
		lane:      lane,
		direction: direction,
		cell:      cell,
		spawnTick: tick,
		state:     entity.Moving,
	}
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle{id=%d, dir=%v, cell=%v, state=%v, wait=%d}", v.id, v.direction, v.cell, v.state, v.waitTicks)
}

// Step 更新运动状态
// 功能：根据前方是否可进入决定本步是否前进
// 参数：eligible-前方格子是否可进入，restartDelay-起步反应延迟
// 返回：本步是否前进一格
// 算法说明：
// 1. MOVING：可前进则前进，否则转为STOPPED并等待一步
// 2. STOPPED：可前进时，无延迟则直接前进，否则转为RESTARTING并开始计时；不可前进则继续等待
// 3. RESTARTING：计时减一并等待；计时归零时若仍可前进则前进，否则退回STOPPED
func (v *Vehicle) Step(eligible bool, restartDelay int32) bool {
	switch v.state {
	case entity.Moving:
		if eligible {
			return v.advance()
		}
		v.state = entity.Stopped
	case entity.Stopped:
		if eligible {
			if restartDelay <= 0 {
				return v.advance()
			}
			v.state = entity.Restarting
			v.restartTimer = restartDelay
		}
	case entity.Restarting:
		v.restartTimer--
		if v.restartTimer <= 0 {
			v.restartTimer = 0
			if eligible {
				return v.advance()
			}
			v.state = entity.Stopped
		}
	default:
		log.Panicf("vehicle %d: bad speed state %v", v.id, v.state)
	}
	v.waitTicks++
	v.waited = true
	return false
}

func (v *Vehicle) advance() bool {
	v.state = entity.Moving
	v.waited = false
	return true
}

// MoveTo 前进到指定格子，由模拟引擎在Step返回true后调用
func (v *Vehicle) MoveTo(c entity.Cell) {
	v.cell = c
}

// Next 前方格子
func (v *Vehicle) Next() entity.Cell {
	return v.cell.Add(v.direction)
}

// ID 车辆ID
func (v *Vehicle) ID() int32 {
	return v.id
}

// Lane 所在车道ID
func (v *Vehicle) Lane() int32 {
	return v.lane
}

// Direction 行驶方向
func (v *Vehicle) Direction() entity.Direction {
	return v.direction
}

// Cell 当前位置
func (v *Vehicle) Cell() entity.Cell {
	return v.cell
}

// SpawnTick 生成时的步数
func (v *Vehicle) SpawnTick() int32 {
	return v.spawnTick
}

// State 运动状态
func (v *Vehicle) State() entity.SpeedState {
	return v.state
}

// WaitTicks 累计等待步数
func (v *Vehicle) WaitTicks() int32 {
	return v.waitTicks
}

// RestartTimer 起步反应剩余步数
func (v *Vehicle) RestartTimer() int32 {
	return v.restartTimer
}

// Waited 本步是否未前进（计入排队）
func (v *Vehicle) Waited() bool {
	return v.waited
}
