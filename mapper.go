// Package sqlmap 根据结构体的行结构生成 INSERT/UPDATE 语句并交给执行器执行。
//
// 语句按 (操作, 方言, 类型) 缓存，每个类型只解析和渲染一次：
//
//	m := sqlmap.NewMapper(dialect.NewSQLite())
//	id, err := m.Insert(ctx, exec, &Product{Name: "apple"})
//	ok, err := m.Update(ctx, exec, &Product{ID: 1, Name: "pear"})
//
// INSERT 语句在首次生成时根据传入实体的主键是否为零值决定是否省略数据库生成的主键列，
// 该决定随语句一起缓存，之后同一类型的实体即使显式设置了主键也沿用首次的结果。
package sqlmap

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/sqlmap/cache"
	"github.com/hatlonely/sqlmap/dialect"
	"github.com/hatlonely/sqlmap/executor"
	"github.com/hatlonely/sqlmap/log"
	"github.com/hatlonely/sqlmap/resolver"
	"github.com/hatlonely/sqlmap/shape"
)

type Statement = cache.Statement

var defaultIntrospector = shape.NewReflect()

type Option func(*Mapper)

// WithCache 替换语句缓存
//
// 未指定时默认使用进程级的 cache.Default()，但配置了非默认 Resolver 或 Introspector 的 Mapper
// 会为同一个类型生成不同的语句，此时默认使用独立的 cache.New()
func WithCache(c cache.Cache) Option {
	return func(m *Mapper) {
		m.cache = c
	}
}

func WithIntrospector(introspector shape.Introspector) Option {
	return func(m *Mapper) {
		m.introspector = introspector
	}
}

func WithResolver(r *resolver.Resolver) Option {
	return func(m *Mapper) {
		m.resolver = r
	}
}

func WithLogger(logger log.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// Mapper 语句的生成、缓存与执行
type Mapper struct {
	dialect      dialect.Dialect
	cache        cache.Cache
	introspector shape.Introspector
	resolver     *resolver.Resolver
	columns      *shape.ColumnMap
	logger       log.Logger
}

func NewMapper(d dialect.Dialect, opts ...Option) *Mapper {
	columns, _ := shape.NewColumnMap(1024)
	m := &Mapper{
		dialect:      d,
		introspector: defaultIntrospector,
		resolver:     resolver.NewResolver(),
		columns:      columns,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		if m.sharesDefaultRendering() {
			m.cache = cache.Default()
		} else {
			m.cache = cache.New()
		}
	}
	if m.logger == nil {
		m.logger = log.Default().WithGroup("sqlmap")
	}
	return m
}

// sharesDefaultRendering 缓存 key 不包含 introspector 和命名策略，只有默认配置的 Mapper 可以共享默认缓存
func (m *Mapper) sharesDefaultRendering() bool {
	introspector, ok := m.introspector.(*shape.Reflect)
	return ok && introspector == defaultIntrospector && m.resolver.Options() == resolver.NewResolver().Options()
}

func (m *Mapper) Dialect() dialect.Dialect {
	return m.dialect
}

func (m *Mapper) shapeOf(t reflect.Type) (*shape.RowShape, error) {
	t = shape.Indirect(t)
	if t == nil {
		return nil, shape.NewInvalidShapeError("", "nil type")
	}
	return m.introspector.Introspect(t)
}

// InsertStatement 获取类型的 INSERT 语句，sample 为 nil 或其数据库生成的主键为零值时省略主键列
func (m *Mapper) InsertStatement(t reflect.Type, sample any) (Statement, error) {
	t = shape.Indirect(t)
	key := cache.Key{Op: cache.OpInsert, Dialect: m.dialect.Name(), Type: t}
	return m.cache.GetOrCompute(key, func() (Statement, error) {
		s, err := m.shapeOf(t)
		if err != nil {
			return Statement{}, err
		}
		stmt, err := m.BuildInsert(s, sample)
		if err != nil {
			return Statement{}, err
		}
		m.logger.Debug("build statement", "op", cache.OpInsert, "type", t.String(), "sql", stmt.SQL)
		return stmt, nil
	})
}

// UpdateStatement 获取类型的 UPDATE 语句
func (m *Mapper) UpdateStatement(t reflect.Type) (Statement, error) {
	t = shape.Indirect(t)
	key := cache.Key{Op: cache.OpUpdate, Dialect: m.dialect.Name(), Type: t}
	return m.cache.GetOrCompute(key, func() (Statement, error) {
		s, err := m.shapeOf(t)
		if err != nil {
			return Statement{}, err
		}
		stmt, err := m.BuildUpdate(s)
		if err != nil {
			return Statement{}, err
		}
		m.logger.Debug("build statement", "op", cache.OpUpdate, "type", t.String(), "sql", stmt.SQL)
		return stmt, nil
	})
}

// BuildInsert 不经过缓存直接渲染 INSERT 语句
func (m *Mapper) BuildInsert(s *shape.RowShape, sample any) (Statement, error) {
	md, err := m.resolver.Resolve(s)
	if err != nil {
		return Statement{}, err
	}

	identity, hasIdentity := md.IdentityKey()
	omitted := hasIdentity && (!identity.Settable || s.IsZero(sample, identity.Field))

	var columns, params, names []string
	for _, f := range md.Settable {
		if omitted && f.Name == identity.Name {
			continue
		}
		columns = append(columns, m.resolver.ColumnName(f, m.dialect))
		params = append(params, m.resolver.ParameterName(f, m.dialect))
		names = append(names, f.Name)
	}

	keyColumn := ""
	if hasIdentity && m.dialect.SupportsReturning() {
		keyColumn = m.resolver.ColumnName(identity.Field, m.dialect)
	}

	table := m.dialect.QuoteIdentifier(md.Table)
	stmt := Statement{
		SQL:       m.dialect.BuildInsert(table, columns, params, keyColumn),
		Table:     table,
		Params:    names,
		Returning: keyColumn != "",
		KeyColumn: keyColumn,
	}
	if omitted {
		stmt.KeyField = identity.Name
	}
	return stmt, nil
}

// BuildUpdate 不经过缓存直接渲染 UPDATE 语句，SET 按声明顺序，WHERE 按主键声明顺序
func (m *Mapper) BuildUpdate(s *shape.RowShape) (Statement, error) {
	md, err := m.resolver.Resolve(s)
	if err != nil {
		return Statement{}, err
	}
	if len(md.Keys) == 0 {
		return Statement{}, &UnsupportedOperationError{Op: cache.OpUpdate, Type: s.Name, Reason: "no key fields"}
	}

	var set, where, names []string
	for _, f := range md.Settable {
		if md.IsKey(f) {
			continue
		}
		param := m.resolver.ParameterName(f, m.dialect)
		if f.Cast != "" {
			param = m.dialect.CastParameter(param, f.Cast)
		}
		set = append(set, m.resolver.ColumnName(f, m.dialect)+" = "+param)
		names = append(names, f.Name)
	}
	if len(set) == 0 {
		return Statement{}, &UnsupportedOperationError{Op: cache.OpUpdate, Type: s.Name, Reason: "no settable non-key fields"}
	}

	for _, k := range md.Keys {
		where = append(where, m.resolver.ColumnName(k.Field, m.dialect)+" = "+m.resolver.ParameterName(k.Field, m.dialect))
		names = append(names, k.Name)
	}

	table := m.dialect.QuoteIdentifier(md.Table)
	return Statement{
		SQL:    m.dialect.BuildUpdate(table, set, where),
		Table:  table,
		Params: names,
	}, nil
}

// bind 按语句参数顺序取出实体的值
func (m *Mapper) bind(s *shape.RowShape, entity any, params []string) ([]any, error) {
	values, err := s.Values(entity, params)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to bind parameters")
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = sql.Named(params[i], v)
	}
	return args, nil
}

// Insert 插入一个实体，返回主键：数据库生成的主键通过返回子句或 LastInsertId 获取，
// 并写回到实体（entity 为指针时）；调用方提供的主键原样返回
func (m *Mapper) Insert(ctx context.Context, exec executor.Executor, entity any) (any, error) {
	if entity == nil {
		return nil, errors.New("entity cannot be nil")
	}
	t := reflect.TypeOf(entity)
	stmt, err := m.InsertStatement(t, entity)
	if err != nil {
		return nil, err
	}
	s, err := m.shapeOf(t)
	if err != nil {
		return nil, err
	}
	id, _, err := m.insert(ctx, exec, s, stmt, entity)
	return id, err
}

// InsertAll 逐条插入 entities（结构体或结构体指针的切片），返回影响的行数；
// 语句不参考任何实体生成，数据库生成的主键总是被省略
func (m *Mapper) InsertAll(ctx context.Context, exec executor.Executor, entities any) (int64, error) {
	rv := reflect.ValueOf(entities)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, errors.Errorf("entities must be a slice, got %T", entities)
	}
	if rv.Len() == 0 {
		return 0, nil
	}

	t := shape.Indirect(rv.Type().Elem())
	stmt, err := m.InsertStatement(t, nil)
	if err != nil {
		return 0, err
	}
	s, err := m.shapeOf(t)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i)
		if ev.Kind() == reflect.Struct && ev.CanAddr() {
			ev = ev.Addr()
		}
		entity := ev.Interface()
		_, n, err := m.insert(ctx, exec, s, stmt, entity)
		if err != nil {
			return total, errors.WithMessagef(err, "entity %d", i)
		}
		total += n
	}
	return total, nil
}

func (m *Mapper) insert(ctx context.Context, exec executor.Executor, s *shape.RowShape, stmt Statement, entity any) (any, int64, error) {
	args, err := m.bind(s, entity, stmt.Params)
	if err != nil {
		return nil, 0, err
	}
	m.logger.DebugContext(ctx, "execute", "op", cache.OpInsert, "table", stmt.Table, "sql", stmt.SQL)

	var id any
	var affected int64
	if stmt.Returning {
		id, err = exec.ExecuteScalar(ctx, stmt.SQL, args...)
		if err != nil {
			return nil, 0, &ExecutionError{Op: cache.OpInsert, SQL: stmt.SQL, Err: err}
		}
		affected = 1
	} else {
		result, err := exec.Execute(ctx, stmt.SQL, args...)
		if err != nil {
			return nil, 0, &ExecutionError{Op: cache.OpInsert, SQL: stmt.SQL, Err: err}
		}
		if affected, err = result.RowsAffected(); err != nil {
			return nil, 0, &ExecutionError{Op: cache.OpInsert, SQL: stmt.SQL, Err: err}
		}
		if stmt.KeyField != "" {
			lastID, err := result.LastInsertId()
			if err != nil {
				return nil, affected, &ExecutionError{Op: cache.OpInsert, SQL: stmt.SQL, Err: err}
			}
			id = lastID
		}
	}

	if stmt.KeyField == "" {
		return m.suppliedKey(s, entity), affected, nil
	}

	if reflect.ValueOf(entity).Kind() == reflect.Ptr {
		if f, ok := m.keyField(s, stmt); ok {
			if err := s.SetValue(entity, f, id); err != nil {
				return id, affected, err
			}
		}
	}
	return id, affected, nil
}

// keyField 定位数据库生成主键对应的字段，优先按返回的列名反查
func (m *Mapper) keyField(s *shape.RowShape, stmt Statement) (shape.Field, bool) {
	if stmt.KeyColumn != "" {
		if f, ok := m.columns.Lookup(s, stmt.KeyColumn); ok {
			return f, true
		}
	}
	return s.FieldByName(stmt.KeyField)
}

// suppliedKey 调用方提供的唯一主键值，复合主键或没有主键时返回 nil
func (m *Mapper) suppliedKey(s *shape.RowShape, entity any) any {
	keys, _ := m.resolver.KeyFields(s)
	if len(keys) != 1 {
		return nil
	}
	values, err := s.Values(entity, []string{keys[0].Name})
	if err != nil {
		return nil
	}
	return values[0]
}

// Update 按主键更新实体，有行被更新时返回 true
func (m *Mapper) Update(ctx context.Context, exec executor.Executor, entity any) (bool, error) {
	if entity == nil {
		return false, errors.New("entity cannot be nil")
	}
	t := reflect.TypeOf(entity)
	stmt, err := m.UpdateStatement(t)
	if err != nil {
		return false, err
	}
	s, err := m.shapeOf(t)
	if err != nil {
		return false, err
	}

	args, err := m.bind(s, entity, stmt.Params)
	if err != nil {
		return false, err
	}
	m.logger.DebugContext(ctx, "execute", "op", cache.OpUpdate, "table", stmt.Table, "sql", stmt.SQL)

	result, err := exec.Execute(ctx, stmt.SQL, args...)
	if err != nil {
		return false, &ExecutionError{Op: cache.OpUpdate, SQL: stmt.SQL, Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, &ExecutionError{Op: cache.OpUpdate, SQL: stmt.SQL, Err: err}
	}
	return n > 0, nil
}
