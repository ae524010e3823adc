package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hatlonely/sqlmap/cfg"
)

const (
	PlaceholderNamed  = "named"
	PlaceholderDollar = "dollar"
)

type SQLOptions struct {
	// Driver database/sql 驱动名，sqlite3 为 mattn 实现，sqlite 为 modernc 实现
	Driver   string `cfg:"driver" def:"sqlite3" validate:"oneof=sqlite3 sqlite mysql postgres"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
	// Placeholder 参数绑定方式：为空时按位置绑定，named 使用 sql.Named，
	// dollar 把命名参数改写为 $n；postgres 默认 dollar，sqlite 默认 named
	Placeholder string `cfg:"placeholder" validate:"omitempty,oneof=named dollar"`
}

// lib/pq 只支持 $n，modernc sqlite 的命名参数必须按名字绑定
var defaultPlaceholders = map[string]string{
	"postgres": PlaceholderDollar,
	"sqlite":   PlaceholderNamed,
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQL 基于 database/sql 的 Executor，WithTx 之后在事务中执行
type SQL struct {
	db          *sql.DB
	q           queryer
	driver      string
	placeholder string
}

type SQLOption func(*SQL)

// WithPlaceholder 指定参数绑定方式
func WithPlaceholder(placeholder string) SQLOption {
	return func(s *SQL) {
		s.placeholder = placeholder
	}
}

func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	o := *options
	if err := cfg.SetDefaults(&o); err != nil {
		return nil, errors.WithMessage(err, "failed to set sql defaults")
	}
	if err := cfg.Validate(&o); err != nil {
		return nil, errors.WithMessage(err, "invalid sql options")
	}

	dsn, err := buildDSN(&o)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(o.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", o.Driver)
	}

	db.SetMaxOpenConns(o.MaxConns)
	db.SetMaxIdleConns(o.MaxIdle)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to ping %s", o.Driver)
	}

	placeholder := o.Placeholder
	if placeholder == "" {
		placeholder = defaultPlaceholders[o.Driver]
	}
	return NewSQL(db, o.Driver, WithPlaceholder(placeholder)), nil
}

// NewSQL 包装已经打开的 *sql.DB
func NewSQL(db *sql.DB, driver string, opts ...SQLOption) *SQL {
	s := &SQL{db: db, q: db, driver: driver}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func buildDSN(o *SQLOptions) (string, error) {
	if o.DSN != "" {
		return o.DSN, nil
	}
	switch o.Driver {
	case "mysql":
		port := o.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			o.Username, o.Password, o.Host, port, o.Database, o.Charset), nil
	case "postgres":
		port := o.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			o.Host, port, o.Username, o.Password, o.Database), nil
	case "sqlite3", "sqlite":
		if o.Database == "" {
			return ":memory:", nil
		}
		return o.Database, nil
	}
	return "", errors.Errorf("unsupported driver: %s", o.Driver)
}

func (s *SQL) Driver() string {
	return s.driver
}

func (s *SQL) DB() *sql.DB {
	return s.db
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) bind(query string, args []any) (string, []any) {
	switch s.placeholder {
	case PlaceholderNamed:
		return query, args
	case PlaceholderDollar:
		return RebindDollar(query, args), Positional(args)
	}
	return query, Positional(args)
}

func (s *SQL) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query, args = s.bind(query, args)
	return s.q.ExecContext(ctx, query, args...)
}

func (s *SQL) ExecuteScalar(ctx context.Context, query string, args ...any) (any, error) {
	query, args = s.bind(query, args)
	var value any
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// WithTx 返回在 tx 中执行的 Executor
func (s *SQL) WithTx(tx *sql.Tx) *SQL {
	return &SQL{db: s.db, q: tx, driver: s.driver, placeholder: s.placeholder}
}

// Tx 事务中的 Executor
type Tx struct {
	*SQL
	tx *sql.Tx
}

func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

func (s *SQL) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	return &Tx{SQL: s.WithTx(tx), tx: tx}, nil
}

// WithTransaction 在事务中执行 fn，fn 返回错误或 panic 时回滚
func (s *SQL) WithTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
