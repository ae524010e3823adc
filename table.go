package sqlmap

import (
	"context"
	"reflect"

	"github.com/hatlonely/sqlmap/executor"
)

// Table 类型化的 Mapper 入口，绑定一个执行器
//
//	products := sqlmap.NewTable[Product](m, exec)
//	id, err := products.Insert(ctx, &Product{Name: "apple"})
type Table[T any] struct {
	mapper *Mapper
	exec   executor.Executor
}

func NewTable[T any](m *Mapper, exec executor.Executor) *Table[T] {
	return &Table[T]{mapper: m, exec: exec}
}

// WithExecutor 返回使用另一个执行器（例如事务）的 Table
func (t *Table[T]) WithExecutor(exec executor.Executor) *Table[T] {
	return &Table[T]{mapper: t.mapper, exec: exec}
}

func (t *Table[T]) Mapper() *Mapper {
	return t.mapper
}

func (t *Table[T]) InsertStatement(sample *T) (Statement, error) {
	var s any
	if sample != nil {
		s = sample
	}
	return t.mapper.InsertStatement(reflect.TypeOf((*T)(nil)).Elem(), s)
}

func (t *Table[T]) UpdateStatement() (Statement, error) {
	return t.mapper.UpdateStatement(reflect.TypeOf((*T)(nil)).Elem())
}

func (t *Table[T]) Insert(ctx context.Context, entity *T) (any, error) {
	return t.mapper.Insert(ctx, t.exec, entity)
}

func (t *Table[T]) InsertAll(ctx context.Context, entities []*T) (int64, error) {
	return t.mapper.InsertAll(ctx, t.exec, entities)
}

func (t *Table[T]) Update(ctx context.Context, entity *T) (bool, error) {
	return t.mapper.Update(ctx, t.exec, entity)
}
