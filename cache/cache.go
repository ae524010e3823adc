// Package cache 缓存渲染好的语句，键为 (操作, 方言, 类型)，每个键的语句只计算一次且永不淘汰
package cache

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
)

// Op 语句类型
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Key 缓存键，Type 为结构体类型（非指针）
type Key struct {
	Op      Op
	Dialect string
	Type    reflect.Type
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%v", k.Op, k.Dialect, k.Type)
}

// Statement 渲染好的语句，缓存后不可修改
type Statement struct {
	SQL string
	// Table 已加引号的表名
	Table string
	// Params 参数对应的逻辑名，按在语句中出现的顺序
	Params []string
	// Returning 语句本身会返回生成的主键
	Returning bool
	// KeyColumn 返回的主键列名（已加引号），没有时为空
	KeyColumn string
	// KeyField 数据库生成主键的逻辑名，插入语句省略了该列时非空
	KeyField string
}

type Cache interface {
	// GetOrCompute 命中时直接返回，未命中时调用 compute 计算并保存，
	// 并发计算同一个键时以第一个保存的结果为准；compute 返回错误时不保存
	GetOrCompute(key Key, compute func() (Statement, error)) (Statement, error)
	Len() int
}

type Option func(*MapCache)

// WithMetrics 记录命中、未命中和计算失败次数
func WithMetrics(metrics *Metrics) Option {
	return func(c *MapCache) {
		c.metrics = metrics
	}
}

// MapCache 基于 xsync.MapOf 的无锁读缓存
type MapCache struct {
	statements *xsync.MapOf[Key, Statement]
	metrics    *Metrics
}

func New(opts ...Option) *MapCache {
	c := &MapCache{statements: xsync.NewMapOf[Key, Statement]()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCache = New()

// Default 进程级的默认缓存
func Default() *MapCache {
	return defaultCache
}

func (c *MapCache) GetOrCompute(key Key, compute func() (Statement, error)) (Statement, error) {
	if stmt, ok := c.statements.Load(key); ok {
		c.metrics.hit(key)
		return stmt, nil
	}
	c.metrics.miss(key)

	stmt, err := compute()
	if err != nil {
		c.metrics.fail(key)
		return Statement{}, err
	}

	actual, _ := c.statements.LoadOrStore(key, stmt)
	return actual, nil
}

// Get 查询已缓存的语句
func (c *MapCache) Get(key Key) (Statement, bool) {
	return c.statements.Load(key)
}

func (c *MapCache) Len() int {
	return c.statements.Size()
}
