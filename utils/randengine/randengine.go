// 随机数引擎，包装了golang.org/x/exp/rand，整个模拟过程只从注入的引擎取随机数
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：为车辆生成、探索策略提供可复现的随机数
// 说明：非线程安全，每次运行独占一个引擎；相同种子产生完全相同的序列
type Engine struct {
	*rand.Rand        // 底层随机数生成器
	seed       uint64 // 实际使用的种子（含偏移量）
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改代码的情况下调整随机数序列
func New(seed uint64) *Engine {
	s := seed + *seedOffset
	return &Engine{Rand: rand.New(rand.NewSource(s)), seed: s}
}

// Seed 获取引擎的种子
func (e *Engine) Seed() uint64 {
	return e.seed
}

// PTrue 以指定概率返回true
// 功能：根据给定概率返回布尔值
// 参数：p-返回true的概率（0.0到1.0之间）
// 说明：实现伯努利分布，用于模拟概率事件；总是消耗一个随机数
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Permutation 生成[0, n)的随机排列
// 功能：返回n个下标的随机顺序，用于在多个候选中无放回地抽取
func (e *Engine) Permutation(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	e.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}
