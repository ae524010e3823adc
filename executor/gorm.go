package executor

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hatlonely/sqlmap/cfg"
)

type GormOptions struct {
	// Driver 数据库驱动：sqlite, mysql
	Driver string `cfg:"driver" def:"sqlite" validate:"oneof=sqlite mysql"`
	DSN    string `cfg:"dsn" validate:"required"`
}

// Gorm 基于 *gorm.DB 的 Executor
//
// Execute 绕过 gorm 的语句构建直接在其连接池上执行，返回驱动的 sql.Result，
// 事务中的 *gorm.DB 连接池即为 *sql.Tx
type Gorm struct {
	db *gorm.DB
}

func NewGormWithOptions(options *GormOptions) (*Gorm, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	o := *options
	if err := cfg.SetDefaults(&o); err != nil {
		return nil, errors.WithMessage(err, "failed to set gorm defaults")
	}
	if err := cfg.Validate(&o); err != nil {
		return nil, errors.WithMessage(err, "invalid gorm options")
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var db *gorm.DB
	var err error
	switch o.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(o.DSN), config)
	case "mysql":
		db, err = gorm.Open(mysql.Open(o.DSN), config)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect %s", o.Driver)
	}

	return NewGorm(db), nil
}

// NewGorm 包装已有的 *gorm.DB，传入事务中的 *gorm.DB 即在事务中执行
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) DB() *gorm.DB {
	return g.db
}

func (g *Gorm) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db := g.db.WithContext(ctx)
	if db.Error != nil {
		return nil, db.Error
	}
	return db.Statement.ConnPool.ExecContext(ctx, query, Positional(args)...)
}

func (g *Gorm) ExecuteScalar(ctx context.Context, query string, args ...any) (any, error) {
	row := g.db.WithContext(ctx).Raw(query, Positional(args)...).Row()
	if row == nil {
		return nil, errors.New("no row returned")
	}
	var value any
	if err := row.Scan(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// Transaction 在 gorm 事务中执行 fn
func (g *Gorm) Transaction(ctx context.Context, fn func(tx *Gorm) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGorm(tx))
	})
}
