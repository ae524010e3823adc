package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// WriterOptions 日志输出配置
type WriterOptions struct {
	// 输出目标：stdout, stderr, file
	Target string `cfg:"target" def:"stderr" validate:"omitempty,oneof=stdout stderr file"`
	// 文件路径，Target 为 file 时必填
	Path string `cfg:"path"`
}

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// NewWriterWithOptions 根据配置创建输出器
func NewWriterWithOptions(options *WriterOptions) (Writer, error) {
	if options == nil {
		return &consoleWriter{w: os.Stderr}, nil
	}

	switch options.Target {
	case "stdout":
		return &consoleWriter{w: os.Stdout}, nil
	case "stderr", "":
		return &consoleWriter{w: os.Stderr}, nil
	case "file":
		return newFileWriter(options.Path)
	default:
		return nil, fmt.Errorf("unsupported target: %s", options.Target)
	}
}

type consoleWriter struct {
	w io.Writer
}

func (c *consoleWriter) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

// Close 控制台不需要关闭
func (c *consoleWriter) Close() error {
	return nil
}

type fileWriter struct {
	mu   sync.Mutex
	file *os.File
}

func newFileWriter(path string) (*fileWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	return &fileWriter{file: file}, nil
}

func (f *fileWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, fmt.Errorf("file is closed")
	}
	return f.file.Write(p)
}

func (f *fileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
