package sqlmap

import (
	"fmt"

	"github.com/hatlonely/sqlmap/cache"
	"github.com/hatlonely/sqlmap/shape"
)

// InvalidShapeError 行结构无法映射，例如两个字段映射到同一列或无法确定表名
type InvalidShapeError = shape.InvalidShapeError

// UnsupportedOperationError 行结构不支持请求的操作，例如没有主键的类型执行 UPDATE
type UnsupportedOperationError struct {
	Op     cache.Op
	Type   string
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported %s on %s: %s", e.Op, e.Type, e.Reason)
}

// ExecutionError 执行器返回的错误，不做解释原样包装
type ExecutionError struct {
	Op  cache.Op
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed [%s]: %v", e.Op, e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
