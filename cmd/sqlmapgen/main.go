// sqlmapgen 读取声明式 schema 文件，输出每个表在指定方言下的 INSERT/UPDATE 语句
//
//	sqlmapgen -schema schema.yaml -dialect postgres
//	sqlmapgen -config sqlmap.yaml -format json
//	sqlmapgen -schema schema.yaml -watch
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hatlonely/sqlmap"
	"github.com/hatlonely/sqlmap/cfg"
	"github.com/hatlonely/sqlmap/dialect"
	"github.com/hatlonely/sqlmap/log"
	"github.com/hatlonely/sqlmap/shape"
)

type Config struct {
	ConfigFile string
	SchemaFile string
	Dialect    string
	Format     string
	Watch      bool
}

// TableStatements 一个表生成的语句，不支持的操作记录原因
type TableStatements struct {
	Type   string `json:"type" yaml:"type"`
	Table  string `json:"table" yaml:"table"`
	Insert string `json:"insert,omitempty" yaml:"insert,omitempty"`
	Update string `json:"update,omitempty" yaml:"update,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet("sqlmapgen", flag.ContinueOnError)
	fs.StringVar(&c.ConfigFile, "config", "", "sqlmap options file (yaml/toml/json/ini)")
	fs.StringVar(&c.SchemaFile, "schema", "", "schema file, overrides the schema in -config")
	fs.StringVar(&c.Dialect, "dialect", "", fmt.Sprintf("sql dialect %v", dialect.Names()))
	fs.StringVar(&c.Format, "format", "text", "output format: text, json, yaml")
	fs.BoolVar(&c.Watch, "watch", false, "regenerate when the schema file changes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 && c.SchemaFile == "" {
		c.SchemaFile = fs.Arg(0)
	}
	switch c.Format {
	case "text", "json", "yaml":
	default:
		return nil, errors.Errorf("unsupported format %q", c.Format)
	}
	return c, nil
}

func run(args []string, w io.Writer) error {
	c, err := parseFlags(args)
	if err != nil {
		return err
	}

	options := &sqlmap.Options{}
	if c.ConfigFile != "" {
		if options, err = sqlmap.LoadOptions(c.ConfigFile); err != nil {
			return err
		}
	}
	if c.SchemaFile != "" {
		options.Schema = c.SchemaFile
	}
	if c.Dialect != "" {
		options.Dialect = dialect.Options{Name: c.Dialect}
	}
	if options.Schema == "" {
		return errors.New("schema file is required")
	}

	m, err := sqlmap.NewMapperWithOptions(options)
	if err != nil {
		return err
	}

	if err := generate(m, options.Schema, c.Format, w); err != nil {
		return err
	}
	if !c.Watch {
		return nil
	}

	logger := log.Default().WithGroup("sqlmapgen")
	watcher, err := cfg.Watch(options.Schema, func(data []byte) error {
		logger.Info("schema changed", "file", options.Schema)
		return generate(m, options.Schema, c.Format, w)
	}, func(err error) {
		logger.Error("regenerate failed", "file", options.Schema, "error", err)
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	return nil
}

// generate 语句不经过缓存，schema 中的表没有绑定 Go 类型
func generate(m *sqlmap.Mapper, schemaFile string, format string, w io.Writer) error {
	doc, err := shape.LoadSchema(schemaFile)
	if err != nil {
		return err
	}
	shapes, err := doc.Shapes()
	if err != nil {
		return err
	}

	tables := make([]TableStatements, 0, len(shapes))
	for _, s := range shapes {
		tables = append(tables, build(m, s))
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tables)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tables); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return enc.Close()
	}

	for _, t := range tables {
		fmt.Fprintf(w, "-- %s (%s)\n", t.Type, t.Table)
		if t.Insert != "" {
			fmt.Fprintf(w, "%s;\n", t.Insert)
		}
		if t.Update != "" {
			fmt.Fprintf(w, "%s;\n", t.Update)
		}
		if t.Error != "" {
			fmt.Fprintf(w, "-- %s\n", t.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func build(m *sqlmap.Mapper, s *shape.RowShape) TableStatements {
	t := TableStatements{Type: s.Name}

	insert, err := m.BuildInsert(s, nil)
	if err != nil {
		t.Error = err.Error()
		return t
	}
	t.Table = insert.Table
	t.Insert = insert.SQL

	update, err := m.BuildUpdate(s)
	if err != nil {
		t.Error = err.Error()
		return t
	}
	t.Update = update.SQL
	return t
}
