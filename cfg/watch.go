package cfg

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher 监听配置文件变化，文件被写入或替换时调用回调
type Watcher struct {
	filename string
	watcher  *fsnotify.Watcher
	onChange func(data []byte) error
	onError  func(err error)

	closeOnce sync.Once
	done      chan struct{}
}

// Watch 开始监听 filename，回调在独立 goroutine 中串行执行
func Watch(filename string, onChange func(data []byte) error, onError func(err error)) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("onChange cannot be nil")
	}
	if onError == nil {
		onError = func(error) {}
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", filename)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	// 监听目录而不是文件，编辑器常用 rename 的方式保存
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, errors.Wrap(err, "failed to add directory to watcher")
	}

	w := &Watcher{
		filename: abs,
		watcher:  fw,
		onChange: onChange,
		onError:  onError,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(w.filename)
			if err != nil {
				w.onError(errors.Wrapf(err, "failed to read %s", w.filename))
				continue
			}
			if err := w.onChange(data); err != nil {
				w.onError(err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// Close 停止监听，多次调用安全
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
