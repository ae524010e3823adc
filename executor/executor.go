// Package executor 执行生成好的语句，屏蔽 database/sql 和 gorm 的差异
package executor

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Executor 语句执行接口，阻塞调用，取消和超时由 ctx 控制
//
// 参数按语句中出现的顺序传入，可以是 sql.NamedArg，
// 不支持命名参数的实现按位置绑定 NamedArg 的值
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) (sql.Result, error)
	ExecuteScalar(ctx context.Context, query string, args ...any) (any, error)
}

// Positional 把 sql.NamedArg 展开为值
func Positional(args []any) []any {
	values := make([]any, len(args))
	for i, arg := range args {
		if named, ok := arg.(sql.NamedArg); ok {
			values[i] = named.Value
			continue
		}
		values[i] = arg
	}
	return values
}

// RebindDollar 把语句中的命名参数按 args 的顺序改写为 $1, $2 ...，
// args 中不是 sql.NamedArg 的参数保持原样，用于只支持 $n 占位符的驱动（lib/pq）
func RebindDollar(query string, args []any) string {
	var sb strings.Builder
	cursor := 0
	n := 0
	for _, arg := range args {
		named, ok := arg.(sql.NamedArg)
		if !ok {
			continue
		}
		n++
		i := findParameter(query[cursor:], named.Name)
		if i < 0 {
			continue
		}
		sb.WriteString(query[cursor : cursor+i])
		sb.WriteString("$")
		sb.WriteString(strconv.Itoa(n))
		cursor += i + 1 + len(named.Name)
	}
	sb.WriteString(query[cursor:])
	return sb.String()
}

// findParameter 查找 @name 或 :name 形式的参数，返回前缀字符的位置
func findParameter(query string, name string) int {
	offset := 0
	for {
		i := strings.Index(query[offset:], name)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(name)
		if start > 0 && (query[start-1] == '@' || query[start-1] == ':') &&
			(start < 2 || query[start-2] != ':') &&
			(end == len(query) || !isIdentChar(query[end])) {
			return start - 1
		}
		offset = end
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
