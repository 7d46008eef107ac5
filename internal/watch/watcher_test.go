package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-linker/internal/walker"
)

type seenFiles struct {
	mu    sync.Mutex
	paths []string
}

func (s *seenFiles) handle(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, filepath.Base(path))
	return nil
}

func (s *seenFiles) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		if p == name {
			return true
		}
	}
	return false
}

func TestWatcherAnnouncesNewFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "existing"), 0o755))

	w, err := New(walker.Options{FollowSymlinks: true})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Add(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := &seenFiles{}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, seen.handle) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "top.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing", "inner.png"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "fresh"), 0o755))

	assert.Eventually(t, func() bool { return seen.has("top.png") && seen.has("inner.png") }, 5*time.Second, 20*time.Millisecond)

	// 新目录加入监听后，其中的新文件同样会被发布
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(root, "fresh", "later.png"), []byte("x"), 0o644)
		return seen.has("later.png")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestCreatedDirectoryAnnouncesEachFileOnce(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "batch")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inner"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inner", "b.png"), []byte("x"), 0o644))

	w, err := New(walker.Options{FollowSymlinks: true})
	require.NoError(t, err)
	defer w.Close()

	seen := &seenFiles{}
	ctx := context.Background()
	// 目录事件的补充遍历之后，同一文件的 Create 事件到达
	w.created(ctx, dir, seen.handle)
	w.created(ctx, filepath.Join(dir, "a.png"), seen.handle)
	w.created(ctx, filepath.Join(dir, "inner"), seen.handle)

	assert.ElementsMatch(t, []string{"a.png", "b.png"}, seen.paths)
}
