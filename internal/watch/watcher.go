// Package watch announces files that appear below a directory after the initial walk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"resource-linker/internal/walker"
)

// FileHandler is called for every new regular file.
type FileHandler func(ctx context.Context, path string) error

// Watcher 基于 fsnotify 监听目录树，新建的子目录会被自动加入监听。
type Watcher struct {
	fsw  *fsnotify.Watcher
	opts walker.Options

	mu   sync.Mutex
	seen map[string]struct{} // 已交给 handler 的路径
}

// New creates a Watcher. Call Add before Run.
func New(opts walker.Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监听器失败: %w", err)
	}
	return &Watcher{fsw: fsw, opts: opts, seen: make(map[string]struct{})}, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("监听目录 %s 失败: %w", path, err)
		}
		return nil
	})
}

// Run 处理事件直到 ctx 取消。处理单个文件的错误只记录日志，不会停止监听。
func (w *Watcher) Run(ctx context.Context, handle FileHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				w.created(ctx, ev.Name, handle)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("文件监听错误: %v", err)
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) created(ctx context.Context, path string, handle FileHandler) {
	info, err := os.Lstat(path)
	if err != nil {
		// 文件可能已经被移走
		return
	}

	if info.IsDir() {
		if err := w.Add(path); err != nil {
			log.Printf("警告: %v", err)
		}
		// 目录在加入监听之前可能已经有文件
		err := walker.Walk(ctx, afero.NewOsFs(), path, w.opts, func(p string) error {
			w.announce(ctx, p, handle)
			return nil
		})
		if err != nil {
			log.Printf("警告: 遍历新目录 %s 失败: %v", path, err)
		}
		return
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !w.opts.FollowSymlinks {
			return
		}
		if info, err = os.Stat(path); err != nil {
			return
		}
	}
	if info.Mode().IsRegular() {
		w.announce(ctx, path, handle)
	}
}

func (w *Watcher) announce(ctx context.Context, path string, handle FileHandler) {
	w.mu.Lock()
	_, dup := w.seen[path]
	w.seen[path] = struct{}{}
	w.mu.Unlock()
	if dup {
		// 新目录的补充遍历和它内部的 Create 事件可能指向同一个文件
		return
	}
	if err := handle(ctx, path); err != nil {
		log.Printf("警告: 发布 %s 失败: %v", path, err)
	}
}
