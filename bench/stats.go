package bench

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric 一组独立运行结果的统计量
type Metric struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"` // 样本标准差（n-1）
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	CI95 float64 `json:"ci95"` // 95%置信区间半宽：1.96·σ/√n
}

// Describe 计算均值、标准差、最值与95%置信区间
// 说明：少于两个样本时标准差与置信区间为0
func Describe(values []float64) Metric {
	n := len(values)
	if n == 0 {
		return Metric{}
	}
	m := Metric{
		Mean: stat.Mean(values, nil),
		Min:  floats.Min(values),
		Max:  floats.Max(values),
	}
	if n > 1 {
		m.Std = stat.StdDev(values, nil)
		m.CI95 = 1.96 * m.Std / math.Sqrt(float64(n))
	}
	return m
}
