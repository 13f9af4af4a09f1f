package junction

import (
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/road"
)

// Junction 路口
// 功能：一个2x2路口区域及其唯一的信号灯与四个进口道
type Junction struct {
	id           int32
	box          road.Box
	approaches   [4]*road.Approach // 进口道（NB, SB, EB, WB）
	trafficLight *trafficlight.TrafficLight
}

// newJunction 创建并初始化一个新的Junction实例
// 功能：根据路网中的路口区域创建Junction对象并配置信号灯
// 参数：network-路网，box-路口区域，opts-信号灯参数
// 返回：初始化完成的Junction实例与错误信息
func newJunction(network *road.Network, box road.Box, opts trafficlight.Options) (*Junction, error) {
	tl, err := trafficlight.New(box.ID, opts)
	if err != nil {
		return nil, err
	}
	return &Junction{
		id:           box.ID,
		box:          box,
		approaches:   network.Approaches(box.ID),
		trafficLight: tl,
	}, nil
}

// update 更新阶段，推进信号灯
func (j *Junction) update() {
	j.trafficLight.Update()
}

// ID 获取Junction的唯一标识符
// 返回：Junction的ID，如果Junction为nil则返回-1
func (j *Junction) ID() int32 {
	if j == nil {
		return -1
	}
	return j.id
}

// Box 路口区域
func (j *Junction) Box() road.Box {
	return j.box
}

// Approaches 四个进口道（NB, SB, EB, WB）
func (j *Junction) Approaches() [4]*road.Approach {
	return j.approaches
}

// Approach 指定行驶方向的进口道
func (j *Junction) Approach(d entity.Direction) *road.Approach {
	return j.approaches[d]
}

// TrafficLight 路口的信号灯
func (j *Junction) TrafficLight() *trafficlight.TrafficLight {
	return j.trafficLight
}

// CanEnter 判断从指定进口道方向是否允许进入路口
func (j *Junction) CanEnter(d entity.Direction) bool {
	return j.trafficLight.IsGreen(d.Axis())
}
