package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogWithOptions(t *testing.T) {
	tests := []struct {
		name    string
		options *Options
		wantErr bool
	}{
		{
			name:    "nil options",
			options: nil,
			wantErr: true,
		},
		{
			name:    "default console output",
			options: &Options{Level: "info"},
			wantErr: false,
		},
		{
			name: "json stdout",
			options: &Options{
				Level:  "debug",
				Format: "json",
				Output: WriterOptions{Target: "stdout"},
			},
			wantErr: false,
		},
		{
			name:    "invalid level",
			options: &Options{Level: "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			options: &Options{Level: "info", Format: "xml"},
			wantErr: true,
		},
		{
			name:    "invalid target",
			options: &Options{Output: WriterOptions{Target: "kafka"}},
			wantErr: true,
		},
		{
			name:    "file target without path",
			options: &Options{Output: WriterOptions{Target: "file"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogWithOptions(tt.options)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogWithOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Errorf("NewLogWithOptions() returned nil logger")
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := NewLogWithOptions(&Options{
		Level:  "debug",
		Format: "json",
		Output: WriterOptions{Target: "file", Path: path},
		Fields: map[string]any{"service": "sqlmap"},
	})
	if err != nil {
		t.Fatalf("NewLogWithOptions() error = %v", err)
	}

	l.With("table", "Product").Debug("statement built", "op", "insert")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	for _, want := range []string{`"msg":"statement built"`, `"table":"Product"`, `"service":"sqlmap"`} {
		if !strings.Contains(content, want) {
			t.Errorf("log content %q does not contain %q", content, want)
		}
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogFromSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	l.Info("hidden")
	l.WithGroup("cache").Warn("visible", "key", "insert")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "cache.key=insert") {
		t.Errorf("grouped attribute missing: %q", out)
	}
}

func TestSetDefault(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	var buf bytes.Buffer
	SetDefault(NewLogFromSlog(slog.New(slog.NewTextHandler(&buf, nil))))
	SetDefault(nil)

	Default().Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("default logger not replaced: %q", buf.String())
	}
}
