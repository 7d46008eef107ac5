package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"resource-linker/internal/config"
	"resource-linker/internal/kafka"
	"resource-linker/internal/links"
	"resource-linker/internal/metrics"
	"resource-linker/internal/models"
	"resource-linker/internal/parse"
	"resource-linker/internal/storage"
	"resource-linker/internal/walker"
)

// ResourceClient 是发送资源记录的远端接口，由 parse.Client 实现。
type ResourceClient interface {
	CreateResource(ctx context.Context, rec models.UploadRecord) (*parse.Response, error)
}

// AnnounceService 定义了发布本地文件链接的服务接口。
type AnnounceService interface {
	// Run 遍历 root 并发布其中每个普通文件。
	Run(ctx context.Context, root string) (metrics.Summary, error)
	// AnnounceFile 发布单个文件，不受错误策略影响。同一路径在进程内只处理一次。
	AnnounceFile(ctx context.Context, path string) error
	RunID() string
}

// AnnounceDeps groups the collaborators of the announce service.
// Ledger, Publisher, Printer and Metrics may be nil.
type AnnounceDeps struct {
	FS        afero.Fs
	Client    ResourceClient
	Ledger    storage.LedgerRepository
	Publisher kafka.ResourcePublisher
	Printer   *Printer
	Metrics   *metrics.Recorder
}

type announceService struct {
	fs        afero.Fs
	walkOpts  walker.Options
	builder   *links.Builder
	client    ResourceClient
	ledger    storage.LedgerRepository
	publisher kafka.ResourcePublisher
	printer   *Printer
	metrics   *metrics.Recorder

	workers int
	policy  string
	dryRun  bool
	runID   string
	now     func() time.Time

	names keyedMutex // 启用账本时按文件名串行化检查、发送和记录

	visitedMu sync.Mutex
	visited   map[string]struct{}

	mu     sync.Mutex
	failed error // continue 策略下累积的错误
}

// NewAnnounceService 创建一个新的 AnnounceService 实例。
func NewAnnounceService(deps AnnounceDeps, cfg config.Config) AnnounceService {
	s := &announceService{
		fs:        deps.FS,
		walkOpts:  walker.Options{FollowSymlinks: cfg.Walk.FollowSymlinks},
		builder:   links.NewBuilder(cfg.Links),
		client:    deps.Client,
		ledger:    deps.Ledger,
		publisher: deps.Publisher,
		printer:   deps.Printer,
		metrics:   deps.Metrics,
		workers:   cfg.Upload.Workers,
		policy:    cfg.Upload.OnError,
		dryRun:    cfg.Upload.DryRun,
		runID:     uuid.New().String(),
		now:       time.Now,
		visited:   make(map[string]struct{}),
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	s.walkOpts.OnError = s.handle
	if s.printer == nil {
		s.printer = NewPrinter(os.Stdout)
	}
	if s.publisher == nil {
		s.publisher = kafka.NewNoopPublisher()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRecorder()
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.policy == "" {
		s.policy = config.OnErrorAbort
	}
	return s
}

func (s *announceService) RunID() string {
	return s.runID
}

func (s *announceService) Run(ctx context.Context, root string) (metrics.Summary, error) {
	log.Printf("开始发布 %s (run=%s workers=%d on_error=%s)", root, s.runID, s.workers, s.policy)

	var err error
	if s.workers == 1 {
		err = walker.Walk(ctx, s.fs, root, s.walkOpts, func(path string) error {
			return s.handle(path, s.AnnounceFile(ctx, path))
		})
	} else {
		err = s.runParallel(ctx, root)
	}

	s.mu.Lock()
	err = multierr.Append(err, s.failed)
	s.failed = nil
	s.mu.Unlock()

	summary := s.metrics.Snapshot()
	log.Printf("发布结束 (run=%s): %s", s.runID, summary)
	return summary, err
}

func (s *announceService) runParallel(ctx context.Context, root string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	walkErr := walker.Walk(gctx, s.fs, root, s.walkOpts, func(path string) error {
		g.Go(func() error {
			return s.handle(path, s.AnnounceFile(gctx, path))
		})
		return nil
	})
	waitErr := g.Wait()

	if waitErr != nil {
		// 遍历因任务失败而被取消时，只返回任务的错误
		if errors.Is(walkErr, context.Canceled) && ctx.Err() == nil {
			walkErr = nil
		}
		return multierr.Append(waitErr, walkErr)
	}
	return walkErr
}

// handle 根据错误策略决定是中止还是记录后继续。
func (s *announceService) handle(path string, err error) error {
	if err == nil {
		return nil
	}
	s.metrics.Failed()
	err = fmt.Errorf("发布 %s 失败: %w", path, err)
	if s.policy == config.OnErrorAbort {
		return err
	}
	log.Printf("警告: %v", err)
	s.mu.Lock()
	s.failed = multierr.Append(s.failed, err)
	s.mu.Unlock()
	return nil
}

func (s *announceService) AnnounceFile(ctx context.Context, path string) error {
	if !s.visit(path) {
		return nil
	}
	name := filepath.Base(path)
	s.metrics.FileSeen()
	rec := s.builder.Build(name)

	if s.ledger != nil {
		unlock := s.names.Lock(name)
		defer unlock()

		done, err := s.ledger.IsAnnounced(ctx, name)
		if err != nil {
			return err
		}
		if done {
			s.metrics.Skipped()
			log.Printf("跳过已发布的文件: %s", name)
			return nil
		}
	}

	if s.dryRun {
		return s.printer.PrintRecord(rec)
	}

	start := time.Now()
	resp, err := s.client.CreateResource(ctx, rec)
	s.metrics.TimeRequest(start)
	if err != nil {
		return err
	}
	if err := s.printer.Print(resp.Body); err != nil {
		return err
	}

	if !resp.OK() {
		// 非 2xx 但响应是 JSON：已输出，不视为失败
		s.metrics.Rejected()
		log.Printf("服务器未接受 %s: status %d", name, resp.StatusCode)
		return nil
	}
	s.metrics.Announced()

	if s.ledger != nil {
		entry := &models.AnnouncedResource{
			Filename:           name,
			ObjectID:           resp.ObjectID,
			ThumbnailURLString: rec.ThumbnailURLString,
			FileURLString:      rec.FileURLString,
			RunID:              s.runID,
			StatusCode:         resp.StatusCode,
		}
		if err := s.ledger.MarkAnnounced(ctx, entry); err != nil {
			return err
		}
	}

	event := models.NewResourceEvent(s.runID, rec, resp.ObjectID, s.now())
	if err := s.publisher.PublishResource(ctx, event); err != nil {
		return fmt.Errorf("发送资源事件失败: %w", err)
	}
	return nil
}

// visit 记录 path，返回 false 表示该路径已经处理过（例如遍历和监听同时看到了它）。
func (s *announceService) visit(path string) bool {
	s.visitedMu.Lock()
	defer s.visitedMu.Unlock()
	if _, ok := s.visited[path]; ok {
		return false
	}
	s.visited[path] = struct{}{}
	return true
}

// keyedMutex 为每个键提供一把互斥锁，不再使用的键会被清理。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock 获取 key 对应的锁并返回解锁函数。
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
