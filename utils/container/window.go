package container

import "log"

// Window 固定长度的滑动窗口
// 功能：保存最近size个样本并维护其和，用于计算滑动平均
// 说明：写满后新样本覆盖最旧样本，Sum/Mean均为O(1)
type Window struct {
	data  []float64 // 环形缓冲区
	next  int       // 下一个写入位置
	count int       // 当前有效样本数
	sum   float64   // 有效样本之和
}

// NewWindow 创建滑动窗口
// 功能：初始化指定长度的滑动窗口
// 参数：size-窗口长度，必须为正数
func NewWindow(size int) *Window {
	if size <= 0 {
		log.Panicf("container: window size must be positive, got %d", size)
	}
	return &Window{data: make([]float64, size)}
}

// Push 加入一个样本
func (w *Window) Push(v float64) {
	if w.count == len(w.data) {
		w.sum -= w.data[w.next]
	} else {
		w.count++
	}
	w.data[w.next] = v
	w.sum += v
	w.next = (w.next + 1) % len(w.data)
}

// Len 当前有效样本数
func (w *Window) Len() int {
	return w.count
}

// Cap 窗口长度
func (w *Window) Cap() int {
	return len(w.data)
}

// Sum 有效样本之和
func (w *Window) Sum() float64 {
	return w.sum
}

// Mean 有效样本均值，没有样本时返回0
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Reset 清空窗口
func (w *Window) Reset() {
	for i := range w.data {
		w.data[i] = 0
	}
	w.next, w.count, w.sum = 0, 0, 0
}
