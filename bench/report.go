package bench

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

var csvHeader = []string{
	"method", "scenario", "spawn_rate", "runs",
	"avg_wait_mean", "avg_wait_std", "avg_wait_min", "avg_wait_max", "avg_wait_ci95",
	"max_wait_mean", "max_wait_std",
	"avg_queue_mean", "avg_queue_std", "avg_queue_min", "avg_queue_max", "avg_queue_ci95",
	"max_queue_mean", "max_queue_std",
	"spawned_mean", "exited_mean",
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteCSV 将汇总结果写为CSV，每个方法与场景一行
func WriteCSV(w io.Writer, aggs []Aggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, a := range aggs {
		row := []string{
			string(a.Method), a.Scenario, a.SpawnRate, strconv.Itoa(a.Runs),
			ftoa(a.Wait.Mean), ftoa(a.Wait.Std), ftoa(a.Wait.Min), ftoa(a.Wait.Max), ftoa(a.Wait.CI95),
			ftoa(a.MaxWait.Mean), ftoa(a.MaxWait.Std),
			ftoa(a.Queue.Mean), ftoa(a.Queue.Std), ftoa(a.Queue.Min), ftoa(a.Queue.Max), ftoa(a.Queue.CI95),
			ftoa(a.MaxQueue.Mean), ftoa(a.MaxQueue.Std),
			ftoa(a.Spawned.Mean), ftoa(a.Exited.Mean),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV 将汇总结果写入文件
func SaveCSV(path string, aggs []Aggregate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteCSV(f, aggs); err != nil {
		return err
	}
	log.Infof("bench results written to %s", path)
	return nil
}

// WriteReport 输出对齐的文本表格
func WriteReport(w io.Writer, aggs []Aggregate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tMETHOD\tRUNS\tAVG WAIT (s)\t95% CI\tMAX WAIT (s)\tAVG QUEUE\tEXITED")
	for _, a := range aggs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f ± %.2f\t[%.2f, %.2f]\t%.2f\t%.2f\t%.1f\n",
			a.Scenario, a.Method, a.Runs,
			a.Wait.Mean, a.Wait.Std, a.Wait.Mean-a.Wait.CI95, a.Wait.Mean+a.Wait.CI95,
			a.MaxWait.Mean, a.Queue.Mean, a.Exited.Mean,
		)
	}
	return tw.Flush()
}

// MethodSummary 一个方法在所有场景上的平均表现
type MethodSummary struct {
	Method    Method
	Scenarios int
	Runs      int     // 所有场景的运行次数之和
	Wait      float64 // 各场景平均等待时间的均值（秒）
	Queue     float64 // 各场景平均排队长度的均值
}

// Summarize 按方法汇总所有场景
// 返回：按Methods顺序排列的各方法汇总，以及平均等待时间最短的方法（相同时取靠前的方法）
func Summarize(aggs []Aggregate) ([]MethodSummary, Method) {
	byMethod := lo.GroupBy(aggs, func(a Aggregate) Method { return a.Method })
	out := make([]MethodSummary, 0, len(byMethod))
	for _, m := range Methods {
		group, ok := byMethod[m]
		if !ok {
			continue
		}
		out = append(out, MethodSummary{
			Method:    m,
			Scenarios: len(group),
			Runs:      lo.SumBy(group, func(a Aggregate) int { return a.Runs }),
			Wait:      lo.MeanBy(group, func(a Aggregate) float64 { return a.Wait.Mean }),
			Queue:     lo.MeanBy(group, func(a Aggregate) float64 { return a.Queue.Mean }),
		})
	}
	if len(out) == 0 {
		return out, ""
	}
	best := lo.MinBy(out, func(a, b MethodSummary) bool { return a.Wait < b.Wait })
	return out, best.Method
}

// WriteSummary 输出跨场景的方法对比与最优方法
func WriteSummary(w io.Writer, aggs []Aggregate) error {
	summaries, best := Summarize(aggs)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tSCENARIOS\tTOTAL RUNS\tAVG WAIT (s)\tAVG QUEUE")
	for _, m := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\n", m.Method, m.Scenarios, m.Runs, m.Wait, m.Queue)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if best != "" {
		_, err := fmt.Fprintf(w, "best performer (lowest avg wait): %s\n", best)
		return err
	}
	return nil
}

// LoadAgents 加载bench.model与bench.contextual_model指定的智能体
// 说明：文件不存在时对应返回值为nil并给出警告，其他读取错误直接返回
func LoadAgents(cfg config.Config) (plain, contextual *agent.Agent, err error) {
	load := func(path string, encoding env.Encoding) (*agent.Agent, error) {
		if path == "" {
			return nil, nil
		}
		c := cfg.Agent
		c.ModelPath = path
		a, err := agent.New(c, encoding, randengine.New(cfg.Bench.Seed))
		if errors.Is(err, fs.ErrNotExist) {
			log.Warnf("model %s not found, skip %v agent", path, encoding)
			return nil, nil
		}
		return a, err
	}
	if plain, err = load(cfg.Bench.Model, env.EncodingPlain); err != nil {
		return nil, nil, err
	}
	if contextual, err = load(cfg.Bench.ContextualModel, env.EncodingContextual); err != nil {
		return nil, nil, err
	}
	return plain, contextual, nil
}
