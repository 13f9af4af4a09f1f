package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Default 默认配置
// 功能：返回默认配置
// 说明：两条南北向道路（x=5、x=10）与一条东西向道路（y=10）相交形成两个路口
func Default() Config {
	return Config{
		Simulation: Simulation{
			GridSize:           20,
			VerticalRoads:      []int{5, 10},
			HorizontalRoads:    []int{10},
			TickRate:           10,
			SpawnRate:          20,
			SpawnMode:          "interval",
			CarsPerSpawn:       1,
			MaxCars:            20,
			RestartDelay:       2,
			StatsWindowSeconds: 10,
			Light: Light{
				Mode:          "auto_timer",
				CycleTicks:    30,
				MinDwellTicks: 0,
			},
		},
		Env: Env{
			EpisodeTicks:           2000,
			SaturationTicks:        200,
			MinDwellTicks:          30,
			QueueThresholds:        []int32{0, 3},
			TrafficLevelThresholds: []int{6, 13},
		},
		Agent: Agent{
			Alpha:        0.1,
			Gamma:        0.9,
			Epsilon:      0.1,
			EpsilonMin:   0.01,
			EpsilonDecay: 0.995,
		},
		Train: Train{
			Episodes:    100,
			Seed:        1,
			SpawnRates:  []int32{1, 2, 3, 5, 10},
			LogInterval: 10,
			Output:      "q_agent.msgpack",
		},
		Bench: Bench{
			Runs:            50,
			Duration:        2000,
			Seed:            1000,
			Model:           "q_agent.msgpack",
			ContextualModel: "q_agent_contextual.msgpack",
		},
	}
}

// Parse 解析YAML配置
// 功能：在默认配置的基础上覆盖YAML中给出的字段，并校验结果
// 参数：data-YAML文件内容
// 返回：配置对象与错误信息
// 说明：使用UnmarshalStrict，未知字段直接报错
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config file load err: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate 校验模拟相关配置
func (s Simulation) Validate() error {
	if s.GridSize <= 0 {
		return invalid("simulation.grid_size must be positive, got %d", s.GridSize)
	}
	if s.TickRate <= 0 {
		return invalid("simulation.tick_rate must be positive, got %v", s.TickRate)
	}
	if s.SpawnRate <= 0 {
		return invalid("simulation.spawn_rate must be positive, got %d", s.SpawnRate)
	}
	if s.SpawnMode != "interval" && s.SpawnMode != "bernoulli" {
		return invalid("simulation.spawn_mode must be interval or bernoulli, got %q", s.SpawnMode)
	}
	if s.CarsPerSpawn <= 0 {
		return invalid("simulation.cars_per_spawn must be positive, got %d", s.CarsPerSpawn)
	}
	if s.MaxCars <= 0 {
		return invalid("simulation.max_cars must be positive, got %d", s.MaxCars)
	}
	if s.RestartDelay < 0 {
		return invalid("simulation.restart_delay must not be negative, got %d", s.RestartDelay)
	}
	if s.StatsWindowSeconds <= 0 {
		return invalid("simulation.stats_window_seconds must be positive, got %v", s.StatsWindowSeconds)
	}
	switch s.Light.Mode {
	case "manual", "auto_timer", "agent_controlled":
	default:
		return invalid("simulation.light.mode %q is unknown", s.Light.Mode)
	}
	if s.Light.CycleTicks <= 0 {
		return invalid("simulation.light.cycle_ticks must be positive, got %d", s.Light.CycleTicks)
	}
	if s.Light.MinDwellTicks < 0 {
		return invalid("simulation.light.min_dwell_ticks must not be negative, got %d", s.Light.MinDwellTicks)
	}
	return nil
}

// Validate 校验环境配置
func (e Env) Validate() error {
	if e.EpisodeTicks <= 0 {
		return invalid("env.episode_ticks must be positive, got %d", e.EpisodeTicks)
	}
	if e.SaturationTicks < 0 {
		return invalid("env.saturation_ticks must not be negative, got %d", e.SaturationTicks)
	}
	if e.MinDwellTicks < 0 {
		return invalid("env.min_dwell_ticks must not be negative, got %d", e.MinDwellTicks)
	}
	if len(e.QueueThresholds) == 0 {
		return invalid("env.queue_thresholds must not be empty")
	}
	for i := 1; i < len(e.QueueThresholds); i++ {
		if e.QueueThresholds[i] <= e.QueueThresholds[i-1] {
			return invalid("env.queue_thresholds must be strictly increasing: %v", e.QueueThresholds)
		}
	}
	if len(e.TrafficLevelThresholds) != 2 || e.TrafficLevelThresholds[0] >= e.TrafficLevelThresholds[1] {
		return invalid("env.traffic_level_thresholds must be two increasing values: %v", e.TrafficLevelThresholds)
	}
	return nil
}

// Validate 校验智能体配置
// 说明：探索率下限必须大于0，保证衰减后仍保留探索
func (a Agent) Validate() error {
	if a.Alpha <= 0 || a.Alpha > 1 {
		return invalid("agent.alpha must be in (0, 1], got %v", a.Alpha)
	}
	if a.Gamma < 0 || a.Gamma > 1 {
		return invalid("agent.gamma must be in [0, 1], got %v", a.Gamma)
	}
	if a.Epsilon < 0 || a.Epsilon > 1 {
		return invalid("agent.epsilon must be in [0, 1], got %v", a.Epsilon)
	}
	if a.EpsilonMin <= 0 || a.EpsilonMin > 1 {
		return invalid("agent.epsilon_min must be in (0, 1], got %v", a.EpsilonMin)
	}
	if a.EpsilonDecay <= 0 || a.EpsilonDecay > 1 {
		return invalid("agent.epsilon_decay must be in (0, 1], got %v", a.EpsilonDecay)
	}
	return nil
}

// Validate 校验全部配置
// 功能：依次校验各部分配置，返回第一个错误
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if err := c.Env.Validate(); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	for _, r := range c.Train.SpawnRates {
		if r <= 0 {
			return invalid("train.spawn_rates must be positive: %v", c.Train.SpawnRates)
		}
	}
	return nil
}
