package env

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
)

// Encoding 状态编码方式
type Encoding int

const (
	EncodingPlain      Encoding = iota // 排队长度+相位
	EncodingContextual                 // 排队长度+相位+全局交通等级
)

// ParseEncoding 将字符串转换为状态编码方式
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "plain":
		return EncodingPlain, nil
	case "contextual":
		return EncodingContextual, nil
	}
	return 0, fmt.Errorf("unknown state encoding %q", s)
}

func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "plain"
	case EncodingContextual:
		return "contextual"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// State 单个路口的离散状态
// 说明：两种编码的键格式不同，不能混用
type State struct {
	Encoding Encoding
	Queues   [4]int // 离散化后的排队长度（NB, SB, EB, WB）
	Phase    entity.Phase
	Level    entity.TrafficLevel // 仅上下文编码使用
}

// Key Q表中的键
// plain：q0,q1,q2,q3|phase
// contextual：q0,q1,q2,q3|phase|level
func (s State) Key() string {
	q := s.Queues
	if s.Encoding == EncodingContextual {
		return fmt.Sprintf("%d,%d,%d,%d|%d|%d", q[0], q[1], q[2], q[3], int(s.Phase), int(s.Level))
	}
	return fmt.Sprintf("%d,%d,%d,%d|%d", q[0], q[1], q[2], q[3], int(s.Phase))
}

func (s State) String() string {
	return s.Encoding.String() + ":" + s.Key()
}

// Bucket 排队长度离散化
// 功能：返回大于的阈值个数
// 说明：阈值[0, 3]时，0->0，1~3->1，>3->2
func Bucket(queue int, thresholds []int32) int {
	b := 0
	for _, t := range thresholds {
		if int32(queue) > t {
			b++
		}
	}
	return b
}

// Level 根据在途车辆数计算全局交通等级
// 参数：live-在途车辆数，thresholds-LOW与MEDIUM的上界（含）
func Level(live int, thresholds []int) entity.TrafficLevel {
	switch {
	case live <= thresholds[0]:
		return entity.Low
	case live <= thresholds[1]:
		return entity.Medium
	default:
		return entity.High
	}
}
