package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/bench"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/train"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/server"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/task"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

var (
	// 配置文件路径，为空时使用默认配置
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 运行模式
	mode = flag.String("mode", "run", "run mode: train | run | bench | serve")
	// 训练与运行时是否使用上下文状态编码
	contextual = flag.Bool("contextual", false, "use contextual (traffic level aware) q-learning")
	// 运行模式下使用的模型文件，为空则信号灯按配置运行
	model = flag.String("model", "", "q-table file controlling the lights in run/serve mode")
	// run模式下的步数，0表示一直运行到收到信号
	ticks = flag.Int("ticks", 0, "ticks to simulate in run mode (0 means until interrupted)")
	// 快照服务监听地址
	listen = flag.String("listen", ":8765", "websocket listening address in serve mode")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "tlsim")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var c config.Config
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	}
	if file != nil {
		if c, err = config.Parse(file); err != nil {
			log.Panicf("%v", err)
		}
	} else {
		log.Info("no config given, use defaults")
		c = config.Default()
	}
	log.Infof("%+v", c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "train":
		_, summary, err := train.Run(ctx, c, *contextual)
		if errors.Is(err, context.Canceled) {
			log.Warnf("training interrupted, partial model kept")
		} else if err != nil {
			log.Panicf("train err: %v", err)
		}
		log.Infof("trained %d episodes: %d states, mean reward %.1f, epsilon %.4f",
			summary.Episodes, summary.States, summary.MeanReward, summary.Epsilon)
		for level, r := range summary.RewardByLevel {
			log.Infof("  %v: mean reward %.1f", level, r)
		}
	case "run", "serve":
		t := newTask(c)
		if *mode == "serve" {
			if err := server.RunServer(ctx, *listen, t); err != nil {
				log.Panicf("server err: %v", err)
			}
			return
		}
		if err := t.Run(ctx, int32(*ticks)); err != nil && ctx.Err() == nil {
			log.Panicf("run err: %v", err)
		}
		st := t.Engine().Stats()
		log.Infof("finished at tick %d: spawned=%d exited=%d avg_wait=%.2fs max_wait=%.2fs avg_queue=%.2f",
			st.Tick, st.Spawned, st.Exited, st.AvgWaitSeconds, st.MaxWaitSeconds, st.AvgQueue)
	case "bench":
		plain, ctxAgent, err := bench.LoadAgents(c)
		if err != nil {
			log.Panicf("load agents err: %v", err)
		}
		aggs, err := bench.NewRunner(c, plain, ctxAgent).RunAll(bench.DefaultScenarios())
		if err != nil {
			log.Panicf("bench err: %v", err)
		}
		if err := bench.WriteReport(os.Stdout, aggs); err != nil {
			log.Panicf("report err: %v", err)
		}
		if err := bench.WriteSummary(os.Stdout, aggs); err != nil {
			log.Panicf("report err: %v", err)
		}
		if c.Bench.CSV != "" {
			if err := bench.SaveCSV(c.Bench.CSV, aggs); err != nil {
				log.Panicf("csv err: %v", err)
			}
		}
	default:
		log.Panicf("unknown mode %q", *mode)
	}
}

// newTask 按-model创建运行任务
func newTask(c config.Config) *task.Context {
	rng := randengine.New(c.Train.Seed)
	var a *agent.Agent
	if *model != "" {
		encoding := env.EncodingPlain
		if *contextual {
			encoding = env.EncodingContextual
		}
		ac := c.Agent
		ac.ModelPath = *model
		var err error
		if a, err = agent.New(ac, encoding, rng); err != nil {
			log.Panicf("load model err: %v", err)
		}
	}
	t, err := task.NewContext(c, a, rng)
	if err != nil {
		log.Panicf("init err: %v", err)
	}
	return t
}
