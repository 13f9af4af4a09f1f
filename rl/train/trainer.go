// Q学习训练流程
package train

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

// Episode 单个episode的结果
type Episode struct {
	Index     int
	SpawnRate int32
	Level     entity.TrafficLevel // 由episode内平均在途车辆数得到
	Reward    float64             // 累计奖励
	Ticks     int32
	Gridlock  bool
	AvgWait   float64 // 平均等待时间（秒）
}

// Summary 训练结果汇总
type Summary struct {
	Episodes      int
	States        int
	Epsilon       float64
	MeanReward    float64
	RewardByLevel map[entity.TrafficLevel]float64 // 各交通等级的平均累计奖励
	History       []Episode
}

// Run 训练智能体
// 功能：按配置运行若干episode，所有路口共享一个智能体，每个episode结束后衰减探索率
// 参数：ctx-上下文（每个episode开始前检查是否取消），cfg-完整配置，contextual-是否使用上下文状态编码
// 返回：训练后的智能体、结果汇总与错误信息
// 算法说明：
// 1. 上下文编码时按train.spawn_rates循环设置每个episode的车辆生成间隔
// 2. 每步为每个路口选择动作，环境推进一步后用共享奖励分别更新各路口的转移
// 3. 每log_interval个episode输出一次进度
// 4. 训练结束（或被取消）后保存到train.output
func Run(ctx context.Context, cfg config.Config, contextual bool) (*agent.Agent, Summary, error) {
	cfg.Env.Contextual = contextual
	if err := cfg.Validate(); err != nil {
		return nil, Summary{}, err
	}
	encoding := env.EncodingPlain
	if contextual {
		encoding = env.EncodingContextual
	}
	rng := randengine.New(cfg.Train.Seed)
	a, err := agent.New(cfg.Agent, encoding, rng)
	if err != nil {
		return nil, Summary{}, err
	}
	log.Infof("train %v agent for %d episodes, seed=%d", encoding, cfg.Train.Episodes, rng.Seed())

	history := make([]Episode, 0, cfg.Train.Episodes)
	var runErr error
	for i := 0; i < cfg.Train.Episodes; i++ {
		if err := ctx.Err(); err != nil {
			log.Warnf("training cancelled after %d episodes", i)
			runErr = err
			break
		}
		epCfg := cfg
		if contextual && len(cfg.Train.SpawnRates) > 0 {
			epCfg.Simulation.SpawnRate = cfg.Train.SpawnRates[i%len(cfg.Train.SpawnRates)]
		}
		ep, err := runEpisode(epCfg, a, rng)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("episode %d: %w", i, err)
		}
		ep.Index = i
		history = append(history, ep)
		a.DecayEpsilon()

		if cfg.Train.LogInterval > 0 && (i+1)%cfg.Train.LogInterval == 0 {
			log.Infof(
				"episode %d/%d spawn_rate=%d level=%v reward=%.1f avg_wait=%.2fs epsilon=%.4f states=%d gridlock=%v",
				i+1, cfg.Train.Episodes, ep.SpawnRate, ep.Level, ep.Reward, ep.AvgWait, a.Epsilon(), a.Len(), ep.Gridlock,
			)
		}
	}

	summary := summarize(a, history)
	if cfg.Train.Output != "" {
		if err := a.Save(cfg.Train.Output); err != nil {
			return nil, Summary{}, err
		}
	}
	return a, summary, runErr
}

// runEpisode 运行一个episode
func runEpisode(cfg config.Config, a *agent.Agent, rng *randengine.Engine) (Episode, error) {
	e, err := env.New(cfg, rng)
	if err != nil {
		return Episode{}, err
	}
	ep := Episode{SpawnRate: cfg.Simulation.SpawnRate}
	states := e.Reset()
	actions := make([]env.Action, len(states))
	liveSum := 0
	for {
		for i, s := range states {
			if actions[i], err = a.SelectAction(s); err != nil {
				return Episode{}, err
			}
		}
		res, err := e.Step(actions)
		if err != nil {
			return Episode{}, err
		}
		for i, s := range states {
			if err := a.Update(s, actions[i], res.Reward, res.States[i]); err != nil {
				return Episode{}, err
			}
		}
		states = res.States
		ep.Reward += res.Reward
		liveSum += res.Info.Live
		if res.Done {
			ep.Ticks = res.Info.Tick
			ep.Gridlock = res.Info.Gridlock
			ep.AvgWait = res.Info.Stats.AvgWaitSeconds
			break
		}
	}
	meanLive := int(math.Round(float64(liveSum) / float64(ep.Ticks)))
	ep.Level = env.Level(meanLive, cfg.Env.TrafficLevelThresholds)
	return ep, nil
}

func summarize(a *agent.Agent, history []Episode) Summary {
	s := Summary{
		Episodes:      len(history),
		States:        a.Len(),
		Epsilon:       a.Epsilon(),
		RewardByLevel: make(map[entity.TrafficLevel]float64),
		History:       history,
	}
	if len(history) == 0 {
		return s
	}
	s.MeanReward = lo.MeanBy(history, func(ep Episode) float64 { return ep.Reward })
	for level, eps := range lo.GroupBy(history, func(ep Episode) entity.TrafficLevel { return ep.Level }) {
		s.RewardByLevel[level] = lo.MeanBy(eps, func(ep Episode) float64 { return ep.Reward })
	}
	return s
}
