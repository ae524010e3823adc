package shape

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

type columnKey struct {
	shape  *RowShape
	column string
}

// ColumnMap 列名到字段的反查，结果按 (行结构, 列名) 缓存
type ColumnMap struct {
	cache *lru.Cache[columnKey, int]
}

// NewColumnMap 创建 ColumnMap，size 为缓存条目上限
func NewColumnMap(size int) (*ColumnMap, error) {
	cache, err := lru.New[columnKey, int](size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create column cache")
	}
	return &ColumnMap{cache: cache}, nil
}

// Lookup 查找列对应的字段，列名可以带引号或表前缀
//
// 匹配顺序：显式列名 > 逻辑名 > 忽略大小写和下划线的逻辑名
func (m *ColumnMap) Lookup(s *RowShape, column string) (Field, bool) {
	key := columnKey{shape: s, column: column}
	if i, ok := m.cache.Get(key); ok {
		if i < 0 {
			return Field{}, false
		}
		return s.Fields[i], true
	}

	i := findColumn(s, unquote(column))
	m.cache.Add(key, i)
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

func findColumn(s *RowShape, column string) int {
	for i, f := range s.Fields {
		if f.Column != "" && strings.EqualFold(f.Column, column) {
			return i
		}
	}
	for i, f := range s.Fields {
		if f.Name == column {
			return i
		}
	}
	folded := foldName(column)
	for i, f := range s.Fields {
		if foldName(f.Name) == folded {
			return i
		}
	}
	return -1
}

func unquote(column string) string {
	if i := strings.LastIndex(column, "."); i >= 0 {
		column = column[i+1:]
	}
	return strings.Trim(column, "\"`[]")
}

func foldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
