package sqlmap

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/sqlmap/cache"
	"github.com/hatlonely/sqlmap/dialect"
	"github.com/hatlonely/sqlmap/executor"
	"github.com/hatlonely/sqlmap/resolver"
	"github.com/hatlonely/sqlmap/shape"
)

type Product struct {
	ID    int64
	Name  string
	Price float64
}

type ManualProduct struct {
	_    struct{} `table:"Product"`
	ID   int64    `rdb:",manual"`
	Name string
}

type TenantItem struct {
	TenantID int64 `rdb:",key,name=tenantId"`
	ID       int64 `rdb:",key"`
	Name     string
}

type KeyOnly struct {
	ID int64
}

type NoKey struct {
	Name string
}

type DuplicateColumn struct {
	ID          int64
	Name        string
	ProductName string `rdb:"name"`
}

type WidgetPart struct {
	ID   int64
	Name string
}

type PricedItem struct {
	ID    int64   `rdb:"id,key,identity"`
	Name  string  `rdb:"item_name"`
	Price float64 `rdb:",cast=numeric"`
	Total float64 `rdb:",readonly"`
}

func newTestMapper(d dialect.Dialect) (*Mapper, *cache.MapCache) {
	c := cache.New()
	return NewMapper(d, WithCache(c)), c
}

func TestInsertStatement(t *testing.T) {
	Convey("INSERT 语句", t, func() {
		Convey("数据库生成的主键为零值时省略", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			stmt, err := m.InsertStatement(reflect.TypeOf(Product{}), &Product{Name: "apple"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (name, price) VALUES (:name, :price)")
			So(stmt.Params, ShouldResemble, []string{"name", "price"})
			So(stmt.Returning, ShouldBeFalse)
			So(stmt.KeyField, ShouldEqual, "id")
			So(stmt.Table, ShouldEqual, "Product")
		})

		Convey("两次生成的语句完全相同", func() {
			for _, name := range dialect.Names() {
				d, err := dialect.New(name)
				So(err, ShouldBeNil)
				m, c := newTestMapper(d)

				first, err := m.InsertStatement(reflect.TypeOf(&Product{}), nil)
				So(err, ShouldBeNil)
				second, err := m.InsertStatement(reflect.TypeOf(Product{}), nil)
				So(err, ShouldBeNil)
				So(second.SQL, ShouldEqual, first.SQL)
				So(c.Len(), ShouldEqual, 1)

				// 不经过缓存重新渲染也得到相同的文本
				s, err := defaultIntrospector.Introspect(reflect.TypeOf(Product{}))
				So(err, ShouldBeNil)
				rebuilt, err := m.BuildInsert(s, nil)
				So(err, ShouldBeNil)
				So(rebuilt.SQL, ShouldEqual, first.SQL)
			}
		})

		Convey("首次调用的主键决定之后的语句", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			stmt, err := m.InsertStatement(reflect.TypeOf(Product{}), &Product{ID: 5, Name: "apple"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (id, name, price) VALUES (:id, :name, :price)")
			So(stmt.KeyField, ShouldEqual, "")

			stmt, err = m.InsertStatement(reflect.TypeOf(Product{}), &Product{Name: "pear"})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (id, name, price) VALUES (:id, :name, :price)")

			m, _ = newTestMapper(dialect.NewStandard())
			stmt, err = m.InsertStatement(reflect.TypeOf(Product{}), nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (name, price) VALUES (:name, :price)")
			stmt, err = m.InsertStatement(reflect.TypeOf(Product{}), &Product{ID: 5})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (name, price) VALUES (:name, :price)")
		})

		Convey("返回生成主键的方言", func() {
			m, _ := newTestMapper(dialect.NewSQLite())
			stmt, err := m.InsertStatement(reflect.TypeOf(PricedItem{}), nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `INSERT INTO "PricedItem" ("item_name", "price") VALUES (:name, :price) RETURNING "id"`)
			So(stmt.Returning, ShouldBeTrue)
			So(stmt.KeyColumn, ShouldEqual, `"id"`)

			m, _ = newTestMapper(dialect.NewSQLServer())
			stmt, err = m.InsertStatement(reflect.TypeOf(PricedItem{}), nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO [PricedItem] ([item_name], [price]) OUTPUT INSERTED.[id] VALUES (@name, @price)")
		})

		Convey("没有非主键字段时每个方言都生成合法语句", func() {
			expected := map[string]string{
				dialect.StandardName:  "INSERT INTO KeyOnly DEFAULT VALUES",
				dialect.SQLiteName:    `INSERT INTO "KeyOnly" DEFAULT VALUES RETURNING "id"`,
				dialect.PostgresName:  `INSERT INTO "KeyOnly" DEFAULT VALUES RETURNING "id"`,
				dialect.MySQLName:     "INSERT INTO `KeyOnly` () VALUES ()",
				dialect.SQLServerName: "INSERT INTO [KeyOnly] OUTPUT INSERTED.[id] DEFAULT VALUES",
			}
			for _, name := range dialect.Names() {
				d, err := dialect.New(name)
				So(err, ShouldBeNil)
				m, _ := newTestMapper(d)
				stmt, err := m.InsertStatement(reflect.TypeOf(KeyOnly{}), nil)
				So(err, ShouldBeNil)
				So(stmt.Params, ShouldBeEmpty)
				if text, ok := expected[name]; ok {
					So(stmt.SQL, ShouldEqual, text)
				}
			}
		})

		Convey("列名重复时返回 InvalidShapeError 且不写入缓存", func() {
			m, c := newTestMapper(dialect.NewStandard())
			_, err := m.InsertStatement(reflect.TypeOf(DuplicateColumn{}), nil)
			So(err, ShouldNotBeNil)
			var shapeErr *InvalidShapeError
			So(errors.As(err, &shapeErr), ShouldBeTrue)
			So(shapeErr.Type, ShouldEqual, "DuplicateColumn")
			So(c.Len(), ShouldEqual, 0)

			_, err = m.UpdateStatement(reflect.TypeOf(DuplicateColumn{}))
			So(errors.As(err, &shapeErr), ShouldBeTrue)
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("非结构体类型", func() {
			m, c := newTestMapper(dialect.NewStandard())
			_, err := m.InsertStatement(reflect.TypeOf(1), nil)
			var shapeErr *InvalidShapeError
			So(errors.As(err, &shapeErr), ShouldBeTrue)
			_, err = m.InsertStatement(nil, nil)
			So(err, ShouldNotBeNil)
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("并发生成同一个语句", func() {
			m, c := newTestMapper(dialect.NewPostgres())
			var wg sync.WaitGroup
			results := make([]string, 32)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					stmt, err := m.InsertStatement(reflect.TypeOf(Product{}), nil)
					if err == nil {
						results[i] = stmt.SQL
					}
				}(i)
			}
			wg.Wait()
			for _, text := range results {
				So(text, ShouldEqual, `INSERT INTO "Product" ("name", "price") VALUES (@name, @price) RETURNING "id"`)
			}
			So(c.Len(), ShouldEqual, 1)
		})
	})
}

func TestUpdateStatement(t *testing.T) {
	Convey("UPDATE 语句", t, func() {
		Convey("非自增主键", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			stmt, err := m.UpdateStatement(reflect.TypeOf(ManualProduct{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE Product SET name = :name WHERE id = :id")
			So(stmt.Params, ShouldResemble, []string{"name", "id"})

			insert, err := m.InsertStatement(reflect.TypeOf(ManualProduct{}), nil)
			So(err, ShouldBeNil)
			So(insert.SQL, ShouldEqual, "INSERT INTO Product (id, name) VALUES (:id, :name)")
		})

		Convey("复合主键按声明顺序出现在 WHERE 中", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			stmt, err := m.UpdateStatement(reflect.TypeOf(TenantItem{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE TenantItem SET name = :name WHERE tenantId = :tenantId AND id = :id")
			So(stmt.Params, ShouldResemble, []string{"name", "tenantId", "id"})

			// 多个未声明 identity 的主键都不是数据库生成的
			insert, err := m.InsertStatement(reflect.TypeOf(TenantItem{}), nil)
			So(err, ShouldBeNil)
			So(insert.SQL, ShouldEqual, "INSERT INTO TenantItem (tenantId, id, name) VALUES (:tenantId, :id, :name)")
		})

		Convey("类型转换和只读字段", func() {
			m, _ := newTestMapper(dialect.NewPostgres())
			stmt, err := m.UpdateStatement(reflect.TypeOf(PricedItem{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `UPDATE "PricedItem" SET "item_name" = @name, "price" = @price::numeric WHERE "id" = @id`)

			m, _ = newTestMapper(dialect.NewMySQL())
			stmt, err = m.UpdateStatement(reflect.TypeOf(&PricedItem{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE `PricedItem` SET `item_name` = ?, `price` = CAST(? AS numeric) WHERE `id` = ?")
		})

		Convey("没有主键时返回 UnsupportedOperationError", func() {
			m, c := newTestMapper(dialect.NewStandard())
			_, err := m.UpdateStatement(reflect.TypeOf(NoKey{}))
			var unsupported *UnsupportedOperationError
			So(errors.As(err, &unsupported), ShouldBeTrue)
			So(unsupported.Op, ShouldEqual, cache.OpUpdate)
			So(unsupported.Type, ShouldEqual, "NoKey")
			So(c.Len(), ShouldEqual, 0)

			// 没有主键的类型仍然可以插入
			stmt, err := m.InsertStatement(reflect.TypeOf(NoKey{}), nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO NoKey (name) VALUES (:name)")
		})

		Convey("Table 语句", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			products := NewTable[Product](m, nil)
			So(products.Mapper(), ShouldEqual, m)

			stmt, err := products.UpdateStatement()
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE Product SET name = :name, price = :price WHERE id = :id")
			So(stmt.Params, ShouldResemble, []string{"name", "price", "id"})

			stmt, err = products.InsertStatement(&Product{ID: 1})
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (id, name, price) VALUES (:id, :name, :price)")
			stmt, err = products.InsertStatement(nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO Product (id, name, price) VALUES (:id, :name, :price)")
		})

		Convey("没有可更新字段时返回 UnsupportedOperationError", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			_, err := m.UpdateStatement(reflect.TypeOf(KeyOnly{}))
			var unsupported *UnsupportedOperationError
			So(errors.As(err, &unsupported), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "KeyOnly")
		})
	})
}

func TestMapperCache(t *testing.T) {
	Convey("Mapper 缓存选择", t, func() {
		snakePlural, err := resolver.NewResolverWithOptions(&resolver.Options{TableNaming: resolver.TableSnakePlural})
		So(err, ShouldBeNil)

		Convey("默认配置共享进程级缓存", func() {
			m := NewMapper(dialect.NewStandard())
			So(m.cache == cache.Cache(cache.Default()), ShouldBeTrue)

			m = NewMapper(dialect.NewStandard(), WithResolver(resolver.NewResolver()))
			So(m.cache == cache.Cache(cache.Default()), ShouldBeTrue)
		})

		Convey("命名策略不同的 Mapper 不复用默认 Mapper 的语句", func() {
			plain := NewMapper(dialect.NewStandard())
			stmt, err := plain.UpdateStatement(reflect.TypeOf(WidgetPart{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE WidgetPart SET name = :name WHERE id = :id")

			snake := NewMapper(dialect.NewStandard(), WithResolver(snakePlural))
			So(snake.cache == cache.Cache(cache.Default()), ShouldBeFalse)
			stmt, err = snake.UpdateStatement(reflect.TypeOf(WidgetPart{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE widget_parts SET name = :name WHERE id = :id")

			insert, err := snake.InsertStatement(reflect.TypeOf(WidgetPart{}), nil)
			So(err, ShouldBeNil)
			So(insert.SQL, ShouldEqual, "INSERT INTO widget_parts (name) VALUES (:name)")

			// 默认 Mapper 不受影响
			stmt, err = plain.UpdateStatement(reflect.TypeOf(WidgetPart{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "UPDATE WidgetPart SET name = :name WHERE id = :id")
		})

		Convey("自定义 Introspector 使用独立缓存", func() {
			m := NewMapper(dialect.NewStandard(), WithIntrospector(shape.NewReflect()))
			So(m.cache == cache.Cache(cache.Default()), ShouldBeFalse)
		})

		Convey("显式指定的缓存优先", func() {
			c := cache.New()
			m := NewMapper(dialect.NewStandard(), WithResolver(snakePlural), WithCache(c))
			So(m.cache == cache.Cache(c), ShouldBeTrue)

			_, err := m.UpdateStatement(reflect.TypeOf(WidgetPart{}))
			So(err, ShouldBeNil)
			So(c.Len(), ShouldEqual, 1)
		})
	})
}

func TestMapperWithMock(t *testing.T) {
	Convey("Mapper 执行", t, func() {
		ctx := context.Background()
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		So(err, ShouldBeNil)
		defer db.Close()
		exec := executor.NewSQL(db, "sqlite3")

		Convey("RETURNING 获取主键并写回实体", func() {
			m, _ := newTestMapper(dialect.NewSQLite())
			mock.ExpectQuery(`INSERT INTO "Product" ("name", "price") VALUES (:name, :price) RETURNING "id"`).
				WithArgs("apple", 1.5).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

			p := &Product{Name: "apple", Price: 1.5}
			id, err := m.Insert(ctx, exec, p)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(7))
			So(p.ID, ShouldEqual, int64(7))
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("LastInsertId 获取主键", func() {
			m, _ := newTestMapper(dialect.NewMySQL())
			mock.ExpectExec("INSERT INTO `Product` (`name`, `price`) VALUES (?, ?)").
				WithArgs("apple", 1.5).
				WillReturnResult(sqlmock.NewResult(9, 1))

			p := &Product{Name: "apple", Price: 1.5}
			id, err := m.Insert(ctx, exec, p)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(9))
			So(p.ID, ShouldEqual, int64(9))
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("调用方提供的主键原样返回", func() {
			m, _ := newTestMapper(dialect.NewMySQL())
			mock.ExpectExec("INSERT INTO `Product` (`id`, `name`) VALUES (?, ?)").
				WithArgs(int64(3), "apple").
				WillReturnResult(sqlmock.NewResult(0, 1))

			id, err := m.Insert(ctx, exec, ManualProduct{ID: 3, Name: "apple"})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(3))
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("按主键更新", func() {
			m, _ := newTestMapper(dialect.NewMySQL())
			mock.ExpectExec("UPDATE `Product` SET `name` = ?, `price` = ? WHERE `id` = ?").
				WithArgs("pear", 2.0, int64(9)).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("UPDATE `Product` SET `name` = ?, `price` = ? WHERE `id` = ?").
				WithArgs("pear", 2.0, int64(10)).
				WillReturnResult(sqlmock.NewResult(0, 0))

			ok, err := m.Update(ctx, exec, &Product{ID: 9, Name: "pear", Price: 2.0})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			ok, err = m.Update(ctx, exec, Product{ID: 10, Name: "pear", Price: 2.0})
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("批量插入", func() {
			m, _ := newTestMapper(dialect.NewMySQL())
			for _, name := range []string{"a", "b"} {
				mock.ExpectExec("INSERT INTO `Product` (`name`, `price`) VALUES (?, ?)").
					WithArgs(name, 0.0).
					WillReturnResult(sqlmock.NewResult(1, 1))
			}
			n, err := m.InsertAll(ctx, exec, []*Product{{Name: "a"}, {Name: "b"}})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(2))
			So(mock.ExpectationsWereMet(), ShouldBeNil)

			n, err = m.InsertAll(ctx, exec, []Product{})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(0))

			_, err = m.InsertAll(ctx, exec, Product{})
			So(err, ShouldNotBeNil)
		})

		Convey("执行错误包装为 ExecutionError", func() {
			m, _ := newTestMapper(dialect.NewMySQL())
			mock.ExpectExec("UPDATE `Product` SET `name` = ?, `price` = ? WHERE `id` = ?").
				WillReturnError(errors.New("deadlock"))

			_, err := m.Update(ctx, exec, &Product{ID: 1})
			var execErr *ExecutionError
			So(errors.As(err, &execErr), ShouldBeTrue)
			So(execErr.Op, ShouldEqual, cache.OpUpdate)
			So(execErr.SQL, ShouldEqual, "UPDATE `Product` SET `name` = ?, `price` = ? WHERE `id` = ?")
			So(execErr.Unwrap().Error(), ShouldEqual, "deadlock")
		})

		Convey("nil 实体", func() {
			m, _ := newTestMapper(dialect.NewMySQL())
			_, err := m.Insert(ctx, exec, nil)
			So(err, ShouldNotBeNil)
			_, err = m.Update(ctx, exec, nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMapperWithSqlite(t *testing.T) {
	Convey("sqlite 端到端", t, func() {
		ctx := context.Background()

		for _, c := range []struct {
			driver  string
			dialect dialect.Dialect
		}{
			{"sqlite3", dialect.NewSQLite()},
			{"sqlite", dialect.NewSQLite()},
			{"sqlite3", dialect.NewStandard()},
		} {
			exec, err := executor.NewSQLWithOptions(&executor.SQLOptions{Driver: c.driver, MaxConns: 1})
			So(err, ShouldBeNil)

			_, err = exec.Execute(ctx, `CREATE TABLE "Product" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT, "price" REAL)`)
			So(err, ShouldBeNil)

			m, _ := newTestMapper(c.dialect)
			products := NewTable[Product](m, exec)

			p := &Product{Name: "apple", Price: 1.5}
			id, err := products.Insert(ctx, p)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(1))
			So(p.ID, ShouldEqual, int64(1))

			batch := []*Product{{Name: "b"}, {Name: "c"}}
			n, err := products.InsertAll(ctx, batch)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(2))
			So(batch[0].ID, ShouldEqual, int64(2))
			So(batch[1].ID, ShouldEqual, int64(3))

			values := []Product{{Name: "d"}}
			n, err = m.InsertAll(ctx, exec, values)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(1))
			So(values[0].ID, ShouldEqual, int64(4))

			p.Name = "pear"
			ok, err := products.Update(ctx, p)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			name, err := exec.ExecuteScalar(ctx, `SELECT "name" FROM "Product" WHERE "id" = 1`)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "pear")

			ok, err = products.Update(ctx, &Product{ID: 99, Name: "missing"})
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			// 语句已经省略了主键列，显式设置的主键被忽略并被生成的主键覆盖
			explicit := &Product{ID: 1, Name: "explicit"}
			_, err = products.Insert(ctx, explicit)
			So(err, ShouldBeNil)
			So(explicit.ID, ShouldEqual, int64(5))

			So(exec.Close(), ShouldBeNil)
		}

		Convey("事务中插入后回滚", func() {
			exec, err := executor.NewSQLWithOptions(&executor.SQLOptions{Driver: "sqlite3", MaxConns: 1})
			So(err, ShouldBeNil)
			defer exec.Close()
			_, err = exec.Execute(ctx, `CREATE TABLE "Product" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT, "price" REAL)`)
			So(err, ShouldBeNil)

			m, _ := newTestMapper(dialect.NewSQLite())
			products := NewTable[Product](m, exec)
			err = exec.WithTransaction(ctx, func(tx *executor.Tx) error {
				if _, err := products.WithExecutor(tx).Insert(ctx, &Product{Name: "apple"}); err != nil {
					return err
				}
				return errors.New("abort")
			})
			So(err, ShouldNotBeNil)

			count, err := exec.ExecuteScalar(ctx, `SELECT COUNT(*) FROM "Product"`)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, int64(0))
		})
	})
}

func TestMapperWithGorm(t *testing.T) {
	Convey("gorm 执行器", t, func() {
		ctx := context.Background()
		g, err := executor.NewGormWithOptions(&executor.GormOptions{Driver: "sqlite", DSN: "file::memory:"})
		So(err, ShouldBeNil)
		sqlDB, err := g.DB().DB()
		So(err, ShouldBeNil)
		sqlDB.SetMaxOpenConns(1)
		defer sqlDB.Close()

		_, err = g.Execute(ctx, `CREATE TABLE "Product" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT, "price" REAL)`)
		So(err, ShouldBeNil)

		Convey("RETURNING 插入和更新", func() {
			m, _ := newTestMapper(dialect.NewSQLite())
			p := &Product{Name: "apple"}
			id, err := m.Insert(ctx, g, p)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(1))
			So(p.ID, ShouldEqual, int64(1))

			p.Price = 3
			ok, err := m.Update(ctx, g, p)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("无返回子句的方言通过 LastInsertId 回填主键", func() {
			m, _ := newTestMapper(dialect.NewStandard())
			p := &Product{Name: "apple"}
			id, err := m.Insert(ctx, g, p)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(1))
			So(p.ID, ShouldEqual, int64(1))

			// 只插入一行
			count, err := g.ExecuteScalar(ctx, `SELECT COUNT(*) FROM "Product"`)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, int64(1))

			n, err := m.InsertAll(ctx, g, []Product{{Name: "pear"}, {Name: "plum"}})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(2))
		})
	})
}

func TestNewMapperWithOptions(t *testing.T) {
	Convey("NewMapperWithOptions", t, func() {
		m, err := NewMapperWithOptions(nil)
		So(err, ShouldBeNil)
		So(m.Dialect().Name(), ShouldEqual, dialect.StandardName)

		m, err = NewMapperWithOptions(&Options{Executor: &executor.SQLOptions{Driver: "mysql"}})
		So(err, ShouldBeNil)
		So(m.Dialect().Name(), ShouldEqual, dialect.MySQLName)

		_, err = NewMapperWithOptions(&Options{Dialect: dialect.Options{Name: "oracle"}})
		So(err, ShouldNotBeNil)

		_, err = NewMapperWithOptions(&Options{Resolver: resolver.Options{TableNaming: "camel"}})
		So(err, ShouldNotBeNil)

		Convey("命名策略使用独立缓存", func() {
			m, err := NewMapperWithOptions(&Options{
				Dialect:  dialect.Options{Name: dialect.PostgresName},
				Resolver: resolver.Options{TableNaming: resolver.TableSnakePlural},
			})
			So(err, ShouldBeNil)
			So(m.cache == cache.Cache(cache.Default()), ShouldBeFalse)

			stmt, err := m.UpdateStatement(reflect.TypeOf(TenantItem{}))
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, `UPDATE "tenant_items" SET "name" = @name WHERE "tenantId" = @tenantId AND "id" = @id`)
		})

		Convey("从配置文件加载", func() {
			dir := t.TempDir()
			schema := filepath.Join(dir, "schema.yaml")
			So(os.WriteFile(schema, []byte(`
tables:
  - type: NoKey
    table: labels
    fields:
      - name: name
        column: label
`), 0644), ShouldBeNil)

			filename := filepath.Join(dir, "sqlmap.yaml")
			So(os.WriteFile(filename, []byte(`
dialect:
  name: sqlite
schema: `+schema+`
logger:
  level: debug
  format: json
`), 0644), ShouldBeNil)
			t.Setenv("SQLMAP_DIALECT_NAME", "mysql")

			options, err := LoadOptions(filename)
			So(err, ShouldBeNil)
			So(options.Dialect.Name, ShouldEqual, "mysql")

			m, err := NewMapperWithOptions(options)
			So(err, ShouldBeNil)
			stmt, err := m.InsertStatement(reflect.TypeOf(NoKey{}), nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO `labels` (`label`) VALUES (?)")

			// schema 中未声明的类型按结构体 tag 解析
			stmt, err = m.InsertStatement(reflect.TypeOf(Product{}), nil)
			So(err, ShouldBeNil)
			So(stmt.SQL, ShouldEqual, "INSERT INTO `Product` (`name`, `price`) VALUES (?, ?)")

			_, err = LoadOptions(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("创建执行器", func() {
			_, err := NewExecutorWithOptions(&Options{})
			So(err, ShouldNotBeNil)

			exec, err := NewExecutorWithOptions(&Options{Executor: &executor.SQLOptions{Driver: "sqlite3", MaxConns: 1}})
			So(err, ShouldBeNil)
			So(exec, ShouldHaveSameTypeAs, &executor.SQL{})
			So(exec.(*executor.SQL).Close(), ShouldBeNil)

			exec, err = NewExecutorWithOptions(&Options{
				Executor:   &executor.SQLOptions{Driver: "sqlite3", MaxConns: 1},
				Observable: &executor.ObservableOptions{Name: "test_sqlmap"},
			})
			So(err, ShouldBeNil)
			So(exec, ShouldHaveSameTypeAs, &executor.Observable{})
			So(exec.(*executor.Observable).Metrics(), ShouldNotBeNil)

			value, err := exec.ExecuteScalar(context.Background(), "SELECT :a + 1", sql.Named("a", 1))
			So(err, ShouldBeNil)
			So(value, ShouldEqual, int64(2))
		})

		Convey("配置关闭日志和指标", func() {
			dir := t.TempDir()
			filename := filepath.Join(dir, "sqlmap.yaml")
			So(os.WriteFile(filename, []byte(`
executor:
  driver: sqlite3
  maxConns: 1
observable:
  name: quiet_sqlmap
  enableLogging: false
  enableMetrics: false
`), 0644), ShouldBeNil)

			options, err := LoadOptions(filename)
			So(err, ShouldBeNil)
			So(options.Observable, ShouldNotBeNil)
			So(options.Observable.EnableLogging, ShouldNotBeNil)
			So(*options.Observable.EnableLogging, ShouldBeFalse)
			So(options.Observable.EnableMetrics, ShouldNotBeNil)
			So(*options.Observable.EnableMetrics, ShouldBeFalse)

			exec, err := NewExecutorWithOptions(options)
			So(err, ShouldBeNil)
			So(exec, ShouldHaveSameTypeAs, &executor.Observable{})
			So(exec.(*executor.Observable).Metrics(), ShouldBeNil)

			value, err := exec.ExecuteScalar(context.Background(), "SELECT :a + 1", sql.Named("a", 1))
			So(err, ShouldBeNil)
			So(value, ShouldEqual, int64(2))
		})
	})
}
