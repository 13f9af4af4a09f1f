package agent

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/rl/env"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ModelFormat  = "tlsim-qtable"
	ModelVersion = 1
)

// modelFile Q表文件格式
type modelFile struct {
	Format   string       `msgpack:"format"`
	Version  int          `msgpack:"version"`
	Encoding string       `msgpack:"encoding"`
	Actions  int          `msgpack:"actions"`
	Alpha    float64      `msgpack:"alpha"`
	Gamma    float64      `msgpack:"gamma"`
	Epsilon  float64      `msgpack:"epsilon"`
	Episodes int          `msgpack:"episodes"`
	Table    []tableEntry `msgpack:"table"` // 按键升序
}

// tableEntry 一个状态的动作价值
type tableEntry struct {
	Key    string    `msgpack:"key"`
	Values []float64 `msgpack:"values"`
}

// Save 保存Q表
// 功能：将Q表与学习参数写入msgpack文件，表项按键的字典序排列，相同的Q表产生相同的文件
func (a *Agent) Save(path string) error {
	keys := lo.Keys(a.table)
	slices.Sort(keys)
	m := modelFile{
		Format:   ModelFormat,
		Version:  ModelVersion,
		Encoding: a.encoding.String(),
		Actions:  env.NumActions,
		Alpha:    a.alpha,
		Gamma:    a.gamma,
		Epsilon:  a.epsilon,
		Episodes: a.episodes,
		Table: lo.Map(keys, func(k string, _ int) tableEntry {
			v := a.table[k]
			return tableEntry{Key: k, Values: v[:]}
		}),
	}
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&m); err != nil {
		return fmt.Errorf("encode q-table: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write q-table: %w", err)
	}
	log.Infof("saved q-table with %d states to %s", len(a.table), path)
	return nil
}

// Load 加载Q表
// 功能：读取msgpack文件并替换当前Q表与已训练episode数
// 返回：文件无法读取或解码、格式标识或版本不符、动作数不符、价值非有限数时返回ErrBadModel；编码方式不符时返回ErrEncodingMismatch
// 说明：学习率与折扣因子以配置为准，不从文件恢复
func (a *Agent) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadModel, err)
	}
	var m modelFile
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrBadModel, path, err)
	}
	if m.Format != ModelFormat {
		return fmt.Errorf("%w: format %q is not %q", ErrBadModel, m.Format, ModelFormat)
	}
	if m.Version != ModelVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadModel, m.Version)
	}
	encoding, err := env.ParseEncoding(m.Encoding)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadModel, err)
	}
	if encoding != a.encoding {
		return fmt.Errorf("%w: %s holds a %v table, agent uses %v states", ErrEncodingMismatch, path, encoding, a.encoding)
	}
	if m.Actions != env.NumActions {
		return fmt.Errorf("%w: %d actions, want %d", ErrBadModel, m.Actions, env.NumActions)
	}
	table := make(map[string]Values, len(m.Table))
	for _, e := range m.Table {
		k, v := e.Key, e.Values
		if _, ok := table[k]; ok {
			return fmt.Errorf("%w: duplicate state %q", ErrBadModel, k)
		}
		if len(v) != env.NumActions {
			return fmt.Errorf("%w: state %q has %d values", ErrBadModel, k, len(v))
		}
		var values Values
		for i, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: state %q has non-finite value %v", ErrBadModel, k, x)
			}
			values[i] = x
		}
		table[k] = values
	}
	a.table = table
	a.episodes = m.Episodes
	log.Infof("loaded %v q-table with %d states from %s", encoding, len(table), path)
	return nil
}
