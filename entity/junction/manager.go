package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/road"
)

// Junction管理器
type JunctionManager struct {
	data      map[int32]*Junction
	junctions []*Junction
}

// NewManager 创建Junction管理器实例
// 功能：为路网中的每个路口区域创建Junction与信号灯
// 参数：network-路网，opts-所有信号灯共用的参数
// 返回：新创建的Junction管理器实例与错误信息
func NewManager(network *road.Network, opts trafficlight.Options) (*JunctionManager, error) {
	m := &JunctionManager{
		junctions: make([]*Junction, 0, network.NumJunctions()),
	}
	for _, box := range network.Boxes() {
		j, err := newJunction(network, box, opts)
		if err != nil {
			return nil, fmt.Errorf("init junction %d: %w", box.ID, err)
		}
		m.junctions = append(m.junctions, j)
	}
	m.data = lo.SliceToMap(m.junctions, func(j *Junction) (int32, *Junction) {
		return j.id, j
	})
	log.Debugf("init %d junctions with %v lights", len(m.junctions), opts.Mode)
	return m, nil
}

// Get 根据ID获取Junction实例
// 功能：通过Junction ID查找对应的Junction对象，如果不存在则panic
func (m *JunctionManager) Get(id int32) *Junction {
	if junction, ok := m.data[id]; !ok {
		log.Panicf("no id %d in junction data", id)
		return nil
	} else {
		return junction
	}
}

// GetOrError 根据ID获取Junction实例（带错误处理）
// 功能：通过Junction ID查找对应的Junction对象，如果不存在则返回错误
func (m *JunctionManager) GetOrError(id int32) (*Junction, error) {
	if junction, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in junction data", id)
	} else {
		return junction, nil
	}
}

// Junctions 所有Junction，按ID升序
func (m *JunctionManager) Junctions() []*Junction {
	return m.junctions
}

// Len Junction数量
func (m *JunctionManager) Len() int {
	return len(m.junctions)
}

// SetMode 修改所有信号灯的控制方式
func (m *JunctionManager) SetMode(mode entity.LightMode, minDwellTicks int32) {
	for _, j := range m.junctions {
		j.trafficLight.SetMode(mode, minDwellTicks)
	}
}

// Reset 重置所有信号灯
func (m *JunctionManager) Reset() {
	for _, j := range m.junctions {
		j.trafficLight.Reset()
	}
}

// Update 更新阶段，执行所有Junction的信号灯逻辑
// 说明：各信号灯相互独立，使用并行处理
func (m *JunctionManager) Update() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.update() })
}
