package road

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
)

// Lane 单向车道
// 功能：表示一条贯穿整个网格的直行车道
// 说明：Cells按行驶顺序排列，第一个格子为车辆生成点，最后一个格子位于地图边缘
type Lane struct {
	id        int32
	direction entity.Direction
	cells     []entity.Cell
	index     map[entity.Cell]int // 格子->在车道中的序号
}

// newLane 创建车道
// 参数：id-车道ID，direction-行驶方向，fixed-固定坐标（南北向为x，东西向为y），size-网格边长
func newLane(id int32, direction entity.Direction, fixed, size int) *Lane {
	l := &Lane{
		id:        id,
		direction: direction,
		cells:     make([]entity.Cell, 0, size),
		index:     make(map[entity.Cell]int, size),
	}
	for i := 0; i < size; i++ {
		var c entity.Cell
		switch direction {
		case entity.South:
			c = entity.Cell{X: fixed, Y: i}
		case entity.North:
			c = entity.Cell{X: fixed, Y: size - 1 - i}
		case entity.East:
			c = entity.Cell{X: i, Y: fixed}
		case entity.West:
			c = entity.Cell{X: size - 1 - i, Y: fixed}
		}
		l.index[c] = i
		l.cells = append(l.cells, c)
	}
	return l
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane{id=%d, dir=%v, entry=%v}", l.id, l.direction, l.cells[0])
}

// ID 车道ID
func (l *Lane) ID() int32 {
	return l.id
}

// Direction 行驶方向
func (l *Lane) Direction() entity.Direction {
	return l.direction
}

// Entry 车道入口格子（生成点）
func (l *Lane) Entry() entity.Cell {
	return l.cells[0]
}

// Len 车道格子数
func (l *Lane) Len() int {
	return len(l.cells)
}

// Progress 格子在车道中的序号，数值越大越靠前
func (l *Lane) Progress(c entity.Cell) (int, bool) {
	i, ok := l.index[c]
	return i, ok
}
