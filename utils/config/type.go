package config

// Light 信号灯配置
// 功能：定义路口信号灯的默认控制方式和时间参数
type Light struct {
	Mode          string `yaml:"mode"`            // 控制方式：manual | auto_timer | agent_controlled
	CycleTicks    int32  `yaml:"cycle_ticks"`     // 定时模式下的相位时长（步）
	MinDwellTicks int32  `yaml:"min_dwell_ticks"` // 相位最短保持时间（步），0表示不限制
}

// Simulation 交通模拟配置
// 功能：定义路网、车辆生成、车辆行为等模拟参数
// 说明：所有参数在构造时读取一次，模拟过程中不会被修改
type Simulation struct {
	GridSize           int     `yaml:"grid_size"`            // 网格边长（格）
	VerticalRoads      []int   `yaml:"vertical_roads"`       // 南北向道路x坐标（x为南行车道，x+1为北行车道）
	HorizontalRoads    []int   `yaml:"horizontal_roads"`     // 东西向道路y坐标（y为西行车道，y+1为东行车道）
	TickRate           float64 `yaml:"tick_rate"`            // 每秒模拟步数
	SpawnRate          int32   `yaml:"spawn_rate"`           // 车辆生成间隔（步），bernoulli模式下为概率倒数
	SpawnMode          string  `yaml:"spawn_mode"`           // 车辆生成方式：interval | bernoulli
	CarsPerSpawn       int     `yaml:"cars_per_spawn"`       // 每次生成的最大车辆数
	MaxCars            int     `yaml:"max_cars"`             // 同时存在的最大车辆数
	RestartDelay       int32   `yaml:"restart_delay"`        // 停车后重新起步的反应延迟（步）
	StatsWindowSeconds float64 `yaml:"stats_window_seconds"` // 滑动平均等待时间的窗口（秒）
	Light              Light   `yaml:"light"`
}

// Env 强化学习环境配置
type Env struct {
	EpisodeTicks           int32   `yaml:"episode_ticks"`            // 每个episode的最大步数
	SaturationTicks        int32   `yaml:"saturation_ticks"`         // 车辆数持续达到上限多少步后视为拥堵终止，0表示不检测
	MinDwellTicks          int32   `yaml:"min_dwell_ticks"`          // 智能体控制下的相位最短保持时间
	Contextual             bool    `yaml:"contextual"`               // 是否在状态中加入全局交通等级
	QueueThresholds        []int32 `yaml:"queue_thresholds"`         // 排队长度离散化阈值
	TrafficLevelThresholds []int   `yaml:"traffic_level_thresholds"` // 交通等级离散化阈值（LOW/MEDIUM上界）
}

// Agent Q学习智能体配置
type Agent struct {
	Alpha        float64 `yaml:"alpha"`         // 学习率
	Gamma        float64 `yaml:"gamma"`         // 折扣因子
	Epsilon      float64 `yaml:"epsilon"`       // 初始探索率
	EpsilonMin   float64 `yaml:"epsilon_min"`   // 探索率下限
	EpsilonDecay float64 `yaml:"epsilon_decay"` // 每个episode的探索率衰减系数
	ModelPath    string  `yaml:"model_path,omitempty"`
}

// Train 训练过程配置
type Train struct {
	Episodes    int     `yaml:"episodes"`
	Seed        uint64  `yaml:"seed"`
	SpawnRates  []int32 `yaml:"spawn_rates"` // 上下文训练时循环使用的生成间隔
	LogInterval int     `yaml:"log_interval"`
	Output      string  `yaml:"output"`
}

// Bench 基准测试配置
type Bench struct {
	Runs            int    `yaml:"runs"`
	Duration        int32  `yaml:"duration"`
	Seed            uint64 `yaml:"seed"`
	Model           string `yaml:"model"`
	ContextualModel string `yaml:"contextual_model"`
	CSV             string `yaml:"csv,omitempty"` // 结果CSV文件路径，为空则不输出
}

// Config YAML配置文件的根结构
// 功能：定义整个系统的配置结构
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Env        Env        `yaml:"env"`
	Agent      Agent      `yaml:"agent"`
	Train      Train      `yaml:"train"`
	Bench      Bench      `yaml:"bench"`
}
