package road

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
)

var (
	ErrBadLayout = errors.New("bad road layout")
)

// CellKind 格子类型
type CellKind int

const (
	Grass        CellKind = iota // 非道路
	Road                         // 普通道路
	Intersection                 // 路口内部
)

// Box 路口区域，占据2x2个格子
type Box struct {
	ID   int32
	MinX int
	MinY int
}

// Contains 判断格子是否在路口区域内
func (b Box) Contains(c entity.Cell) bool {
	return c.X >= b.MinX && c.X <= b.MinX+1 && c.Y >= b.MinY && c.Y <= b.MinY+1
}

// Approach 路口进口道
// 功能：某一行驶方向上驶入路口前的连续车道格子
// 说明：Cells按行驶顺序排列，最后一个格子为停车线；排队的队首即最靠近停车线的车辆
type Approach struct {
	Junction  int32
	Direction entity.Direction
	Lane      int32
	Cells     []entity.Cell
}

// StopLine 停车线所在格子
func (a *Approach) StopLine() entity.Cell {
	return a.Cells[len(a.Cells)-1]
}

// SpawnPoint 车辆生成点
type SpawnPoint struct {
	Cell      entity.Cell
	Direction entity.Direction
	Lane      int32
}

// Network 网格路网
// 功能：描述道路、路口、进口道与生成点的静态结构
// 说明：构造完成后只读，由模拟引擎独占持有
type Network struct {
	size  int
	grid  [][]CellKind
	lanes []*Lane
	boxes []Box

	approaches   [][4]*Approach            // 路口ID->各方向进口道（NB, SB, EB, WB）
	cellApproach map[entity.Cell]*Approach // 进口道格子->进口道
	stopLines    map[entity.Cell]*Approach // 停车线格子->进口道
	cellBox      map[entity.Cell]int32     // 路口格子->路口ID
	spawnPoints  []SpawnPoint
}

// New 根据道路坐标构建网格路网
// 功能：铺设双车道道路，识别路口并划分进口道
// 参数：size-网格边长，verticals-南北向道路x坐标，horizontals-东西向道路y坐标
// 返回：路网与错误信息
// 算法说明：
// 1. 校验道路位于网格内部且互不重叠
// 2. 按右侧通行生成车道：x南行、x+1北行；y西行、y+1东行
// 3. 每个南北向道路与东西向道路的交叉形成一个2x2路口，按先y后x编号
// 4. 沿每条车道行驶方向切分进口道：上一个路口（或地图边缘）之后到下一个路口之前
func New(size int, verticals, horizontals []int) (*Network, error) {
	if size < 4 {
		return nil, fmt.Errorf("%w: grid size %d is too small", ErrBadLayout, size)
	}
	if len(verticals) == 0 || len(horizontals) == 0 {
		return nil, fmt.Errorf("%w: need at least one vertical and one horizontal road", ErrBadLayout)
	}
	vs, err := checkRoads(size, verticals, "vertical")
	if err != nil {
		return nil, err
	}
	hs, err := checkRoads(size, horizontals, "horizontal")
	if err != nil {
		return nil, err
	}

	n := &Network{
		size:         size,
		grid:         make([][]CellKind, size),
		cellApproach: make(map[entity.Cell]*Approach),
		stopLines:    make(map[entity.Cell]*Approach),
		cellBox:      make(map[entity.Cell]int32),
	}
	for y := range n.grid {
		n.grid[y] = make([]CellKind, size)
	}

	// 车道
	for _, x := range vs {
		n.lanes = append(n.lanes,
			newLane(int32(len(n.lanes)), entity.South, x, size),
			newLane(int32(len(n.lanes)+1), entity.North, x+1, size),
		)
	}
	for _, y := range hs {
		n.lanes = append(n.lanes,
			newLane(int32(len(n.lanes)), entity.West, y, size),
			newLane(int32(len(n.lanes)+1), entity.East, y+1, size),
		)
	}
	for _, l := range n.lanes {
		for _, c := range l.cells {
			n.grid[c.Y][c.X] = Road
		}
	}

	// 路口
	for _, y := range hs {
		for _, x := range vs {
			b := Box{ID: int32(len(n.boxes)), MinX: x, MinY: y}
			n.boxes = append(n.boxes, b)
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					c := entity.Cell{X: x + dx, Y: y + dy}
					n.grid[c.Y][c.X] = Intersection
					n.cellBox[c] = b.ID
				}
			}
		}
	}

	// 进口道
	n.approaches = make([][4]*Approach, len(n.boxes))
	for _, l := range n.lanes {
		segment := make([]entity.Cell, 0)
		for _, c := range l.cells {
			id, inBox := n.cellBox[c]
			if !inBox {
				segment = append(segment, c)
				continue
			}
			if len(segment) > 0 {
				a := &Approach{Junction: id, Direction: l.direction, Lane: l.id, Cells: segment}
				n.approaches[id][l.direction] = a
				for _, sc := range segment {
					n.cellApproach[sc] = a
				}
				n.stopLines[a.StopLine()] = a
				segment = make([]entity.Cell, 0)
			}
		}
		n.spawnPoints = append(n.spawnPoints, SpawnPoint{Cell: l.Entry(), Direction: l.direction, Lane: l.id})
	}
	for id, as := range n.approaches {
		for d, a := range as {
			if a == nil {
				return nil, fmt.Errorf("%w: junction %d has no %v approach", ErrBadLayout, id, entity.Direction(d))
			}
		}
	}
	return n, nil
}

// checkRoads 校验道路坐标
// 说明：双车道道路占用[v, v+1]，不能贴边（需要为停车线留出格子），相邻道路不能重叠或相接
func checkRoads(size int, roads []int, name string) ([]int, error) {
	sorted := lo.Uniq(roads)
	if len(sorted) != len(roads) {
		return nil, fmt.Errorf("%w: duplicated %s roads %v", ErrBadLayout, name, roads)
	}
	sort.Ints(sorted)
	for i, v := range sorted {
		if v < 1 || v+1 > size-2 {
			return nil, fmt.Errorf("%w: %s road %d out of grid interior [1, %d]", ErrBadLayout, name, v, size-3)
		}
		if i > 0 && v-sorted[i-1] < 3 {
			return nil, fmt.Errorf("%w: %s roads %d and %d overlap", ErrBadLayout, name, sorted[i-1], v)
		}
	}
	return sorted, nil
}

// Size 网格边长
func (n *Network) Size() int {
	return n.size
}

// InBounds 判断格子是否在网格内
func (n *Network) InBounds(c entity.Cell) bool {
	return c.X >= 0 && c.X < n.size && c.Y >= 0 && c.Y < n.size
}

// Kind 获取格子类型，网格外返回Grass
func (n *Network) Kind(c entity.Cell) CellKind {
	if !n.InBounds(c) {
		return Grass
	}
	return n.grid[c.Y][c.X]
}

// IsRoad 是否为可通行格子（道路或路口）
func (n *Network) IsRoad(c entity.Cell) bool {
	k := n.Kind(c)
	return k == Road || k == Intersection
}

// Lanes 所有车道
func (n *Network) Lanes() []*Lane {
	return n.lanes
}

// Lane 根据ID获取车道，不存在则panic
func (n *Network) Lane(id int32) *Lane {
	if id < 0 || int(id) >= len(n.lanes) {
		log.Panicf("no id %d in lane data", id)
	}
	return n.lanes[id]
}

// Boxes 所有路口区域
func (n *Network) Boxes() []Box {
	return n.boxes
}

// NumJunctions 路口数量
func (n *Network) NumJunctions() int {
	return len(n.boxes)
}

// Approaches 获取路口的四个进口道（NB, SB, EB, WB）
func (n *Network) Approaches(junction int32) [4]*Approach {
	return n.approaches[junction]
}

// ApproachAt 获取格子所属的进口道
func (n *Network) ApproachAt(c entity.Cell) (*Approach, bool) {
	a, ok := n.cellApproach[c]
	return a, ok
}

// StopLineAt 若格子为停车线，返回对应的进口道
func (n *Network) StopLineAt(c entity.Cell) (*Approach, bool) {
	a, ok := n.stopLines[c]
	return a, ok
}

// JunctionAt 获取格子所在的路口ID
func (n *Network) JunctionAt(c entity.Cell) (int32, bool) {
	id, ok := n.cellBox[c]
	return id, ok
}

// SpawnPoints 所有车辆生成点
func (n *Network) SpawnPoints() []SpawnPoint {
	return n.spawnPoints
}
