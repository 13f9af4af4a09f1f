// 离散时间网格交通模拟引擎
package simulation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tsinghua-fib-lab/agentsociety-tlsim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/road"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

var (
	ErrBadSpawnRate = errors.New("spawn rate must be positive")
)

const (
	SpawnInterval  = "interval"
	SpawnBernoulli = "bernoulli"
)

// Engine 模拟引擎
// 功能：持有路网、信号灯、车辆与随机数引擎，按固定步长推进模拟
// 说明：非线程安全，Step不可重入；相同配置、相同种子与相同的外部指令序列产生完全相同的结果
type Engine struct {
	cfg   config.Simulation
	rng   *randengine.Engine
	clock *clock.Clock

	network         *road.Network
	junctionManager *junction.JunctionManager

	vehicles  []*vehicle.Vehicle
	occupied  map[entity.Cell]*vehicle.Vehicle
	nextID    int32
	spawnRate int32

	queues       [][4]int // 路口ID->各进口道排队长度
	junctionWait []int    // 路口ID->本步新增等待步数
	stats        *statistics
}

// New 创建模拟引擎
// 功能：校验配置，构建路网与信号灯，并重置到初始状态
// 参数：cfg-模拟配置，rng-随机数引擎（车辆生成只从该引擎取随机数）
// 返回：模拟引擎与错误信息
func New(cfg config.Simulation, rng *randengine.Engine) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	network, err := road.New(cfg.GridSize, cfg.VerticalRoads, cfg.HorizontalRoads)
	if err != nil {
		return nil, err
	}
	mode, err := entity.ParseLightMode(cfg.Light.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	junctionManager, err := junction.NewManager(network, trafficlight.Options{
		Mode:          mode,
		InitialPhase:  entity.VerticalGreen,
		CycleTicks:    cfg.Light.CycleTicks,
		MinDwellTicks: cfg.Light.MinDwellTicks,
	})
	if err != nil {
		return nil, err
	}
	c := clock.New(cfg.TickRate)
	e := &Engine{
		cfg:             cfg,
		rng:             rng,
		clock:           c,
		network:         network,
		junctionManager: junctionManager,
		queues:          make([][4]int, network.NumJunctions()),
		junctionWait:    make([]int, network.NumJunctions()),
		stats:           newStatistics(c, cfg.StatsWindowSeconds),
	}
	e.Reset()
	return e, nil
}

// Reset 重置模拟
// 功能：清空车辆与统计，信号灯恢复初始相位，生成间隔恢复为配置值
// 返回：初始状态快照
func (e *Engine) Reset() Snapshot {
	e.clock.Init()
	e.vehicles = make([]*vehicle.Vehicle, 0, e.cfg.MaxCars)
	e.occupied = make(map[entity.Cell]*vehicle.Vehicle, e.cfg.MaxCars)
	e.nextID = 0
	e.spawnRate = e.cfg.SpawnRate
	e.junctionManager.Reset()
	for i := range e.queues {
		e.queues[i] = [4]int{}
		e.junctionWait[i] = 0
	}
	e.stats.reset()
	return e.Snapshot()
}

// Step 推进一步
// 算法说明：
// 1. 时钟推进
// 2. 车辆生成
// 3. 信号灯更新（处理外部指令buffer）
// 4. 车辆按车道顺序、由前向后依次更新
// 5. 统计排队长度、等待时间与通过量
func (e *Engine) Step() {
	e.clock.Tick()
	e.stats.s.TickWait = 0
	for i := range e.queues {
		e.queues[i] = [4]int{}
		e.junctionWait[i] = 0
	}

	if e.spawnEvent() {
		e.spawn()
	}
	e.junctionManager.Update()
	e.updateVehicles()

	liveWait := int64(0)
	for _, v := range e.vehicles {
		liveWait += int64(v.WaitTicks())
	}
	e.stats.record(len(e.vehicles), liveWait, e.queues)
}

// spawnEvent 本步是否发生生成事件
func (e *Engine) spawnEvent() bool {
	switch e.cfg.SpawnMode {
	case SpawnBernoulli:
		return e.rng.PTrue(1 / float64(e.spawnRate))
	default:
		return e.clock.Step%e.spawnRate == 0
	}
}

// spawn 生成车辆
// 功能：随机打乱生成点，在未被占用的生成点上最多生成cars_per_spawn辆车
// 说明：超出车辆数上限的请求计入Dropped，没有空闲生成点的请求计入Blocked，均不排队也不报错
func (e *Engine) spawn() {
	want := e.cfg.CarsPerSpawn
	if capacity := e.cfg.MaxCars - len(e.vehicles); capacity < want {
		if capacity < 0 {
			capacity = 0
		}
		e.stats.s.Dropped += want - capacity
		want = capacity
	}
	if want == 0 {
		return
	}
	points := e.network.SpawnPoints()
	placed := 0
	for _, i := range e.rng.Permutation(len(points)) {
		if placed == want {
			break
		}
		p := points[i]
		if _, ok := e.occupied[p.Cell]; ok {
			continue
		}
		v := vehicle.New(e.nextID, p.Lane, p.Direction, p.Cell, e.clock.Step)
		e.nextID++
		e.vehicles = append(e.vehicles, v)
		e.occupied[p.Cell] = v
		placed++
	}
	e.stats.s.Spawned += placed
	e.stats.s.Blocked += want - placed
}

// updateVehicles 更新所有车辆
// 说明：同一车道上由前向后处理，前车离开后后车可在同一步跟进；车辆驶出网格后移除
func (e *Engine) updateVehicles() {
	sort.SliceStable(e.vehicles, func(i, j int) bool {
		a, b := e.vehicles[i], e.vehicles[j]
		if a.Lane() != b.Lane() {
			return a.Lane() < b.Lane()
		}
		return e.progress(a) > e.progress(b)
	})
	remaining := e.vehicles[:0]
	for _, v := range e.vehicles {
		next := v.Next()
		if v.Step(e.canMove(v, next), e.cfg.RestartDelay) {
			delete(e.occupied, v.Cell())
			if !e.network.InBounds(next) {
				e.stats.s.Exited++
				continue
			}
			v.MoveTo(next)
			e.occupied[next] = v
		}
		if v.Waited() {
			e.recordWait(v)
		}
		remaining = append(remaining, v)
	}
	for i := len(remaining); i < len(e.vehicles); i++ {
		e.vehicles[i] = nil
	}
	e.vehicles = remaining
}

func (e *Engine) progress(v *vehicle.Vehicle) int {
	p, ok := e.network.Lane(v.Lane()).Progress(v.Cell())
	if !ok {
		log.Panicf("vehicle %d at %v is not on lane %d", v.ID(), v.Cell(), v.Lane())
	}
	return p
}

// canMove 判断车辆能否进入前方格子
// 说明：驶出网格总是允许；前方被占用则不允许；位于停车线时需要本方向绿灯
func (e *Engine) canMove(v *vehicle.Vehicle, next entity.Cell) bool {
	if !e.network.InBounds(next) {
		return true
	}
	if _, ok := e.occupied[next]; ok {
		return false
	}
	if a, ok := e.network.StopLineAt(v.Cell()); ok && a.Direction == v.Direction() {
		return e.junctionManager.Get(a.Junction).CanEnter(v.Direction())
	}
	return true
}

// recordWait 记录车辆本步的等待
// 说明：进口道上的等待车辆计入该路口的排队与等待；路口内部的等待只计入等待；驶出路段不归属任何路口
func (e *Engine) recordWait(v *vehicle.Vehicle) {
	e.stats.s.TickWait++
	if v.WaitTicks() > e.stats.s.MaxWaitTicks {
		e.stats.s.MaxWaitTicks = v.WaitTicks()
	}
	if a, ok := e.network.ApproachAt(v.Cell()); ok {
		e.queues[a.Junction][a.Direction]++
		e.junctionWait[a.Junction]++
	} else if id, ok := e.network.JunctionAt(v.Cell()); ok {
		e.junctionWait[id]++
	}
}

// SetSpawnRate 修改生成间隔，用于交通量随时间变化的场景
func (e *Engine) SetSpawnRate(rate int32) error {
	if rate <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadSpawnRate, rate)
	}
	e.spawnRate = rate
	return nil
}

// SpawnRate 当前生成间隔
func (e *Engine) SpawnRate() int32 {
	return e.spawnRate
}

// SetLightMode 修改所有信号灯的控制方式，只应在Reset前后调用
func (e *Engine) SetLightMode(mode entity.LightMode, minDwellTicks int32) {
	e.junctionManager.SetMode(mode, minDwellTicks)
}

// Light 获取路口的信号灯
func (e *Engine) Light(id int32) (*trafficlight.TrafficLight, error) {
	j, err := e.junctionManager.GetOrError(id)
	if err != nil {
		return nil, err
	}
	return j.TrafficLight(), nil
}

// Junctions 所有路口，按ID升序
func (e *Engine) Junctions() []*junction.Junction {
	return e.junctionManager.Junctions()
}

// Network 路网
func (e *Engine) Network() *road.Network {
	return e.network
}

// Clock 时钟
func (e *Engine) Clock() *clock.Clock {
	return e.clock
}

// Tick 已完成的步数
func (e *Engine) Tick() int32 {
	return e.clock.Step
}

// Live 在途车辆数
func (e *Engine) Live() int {
	return len(e.vehicles)
}

// MaxCars 车辆数上限
func (e *Engine) MaxCars() int {
	return e.cfg.MaxCars
}

// Queues 路口各进口道的排队长度（NB, SB, EB, WB）
func (e *Engine) Queues(id int32) [4]int {
	return e.queues[id]
}

// JunctionWait 路口本步新增的等待步数
func (e *Engine) JunctionWait(id int32) int {
	return e.junctionWait[id]
}

// Stats 当前统计
func (e *Engine) Stats() Stats {
	return e.stats.s
}
