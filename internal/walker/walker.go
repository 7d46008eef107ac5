// Package walker enumerates the regular files below a root directory.
package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileFunc is called once for every regular file found.
type FileFunc func(path string) error

// Options controls the traversal.
type Options struct {
	// FollowSymlinks 为 true 时包含指向普通文件的符号链接，符号链接目录永远不会进入。
	FollowSymlinks bool
	// OnError 处理 root 以下无法读取的路径。返回 nil 时跳过该路径继续遍历，
	// 返回错误时停止遍历。为 nil 时任何错误都会停止遍历。root 本身的错误总是致命的。
	OnError func(path string, err error) error
}

// Walk 递归遍历 root，对每个普通文件调用 fn。
// 目录本身不会回调；遍历顺序不作保证。fn 返回错误或 ctx 取消时停止遍历。
func Walk(ctx context.Context, fs afero.Fs, root string, opts Options, fn FileFunc) error {
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			err = fmt.Errorf("遍历 %s 失败: %w", path, err)
			if path == root || opts.OnError == nil {
				return err
			}
			if err := opts.OnError(path, err); err != nil {
				return err
			}
			return filepath.SkipDir
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			target, statErr := fs.Stat(path)
			if statErr != nil {
				// 断开的链接直接忽略
				return nil
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return fn(path)
	})
	return err
}

// Collect returns every regular file path under root.
func Collect(ctx context.Context, fs afero.Fs, root string, opts Options) ([]string, error) {
	var paths []string
	err := Walk(ctx, fs, root, opts, func(path string) error {
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
