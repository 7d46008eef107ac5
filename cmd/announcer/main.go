package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"resource-linker/internal/config"
	appKafka "resource-linker/internal/kafka"
	"resource-linker/internal/metrics"
	"resource-linker/internal/parse"
	"resource-linker/internal/services"
	"resource-linker/internal/storage"
	"resource-linker/internal/walker"
	"resource-linker/internal/watch"
)

const usage = `使用方法:
  announcer [announce] [flags]   遍历目录并发布每个文件的链接
  announcer list [flags]         按 --sort 倒序列出远端资源
`

func main() {
	command := "announce"
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "announce" || args[0] == "list") {
		command, args = args[0], args[1:]
	}

	flags := pflag.NewFlagSet(command, pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)
	sortBy := flags.String("sort", "createdAt", "list: column to sort by (descending)")
	skip := flags.Int("skip", 0, "list: number of records to skip")
	limit := flags.Int("limit", parse.DefaultQuerySize, "list: maximum number of records")
	_ = flags.Parse(args)

	// 1. 加载配置
	cfg, err := config.LoadConfig("", flags)
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置无效: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化 Parse 客户端，整个运行期间复用同一个连接池
	client, err := parse.NewClient(cfg.Parse)
	if err != nil {
		log.Fatalf("无法创建 Parse 客户端: %v", err)
	}

	switch command {
	case "list":
		err = listResources(ctx, client, parse.ListOptions{SortBy: *sortBy, Skip: *skip, Limit: *limit})
	default:
		err = announce(ctx, cfg, client)
	}
	if err != nil {
		log.Fatalf("%s 失败: %v", command, err)
	}
}

func listResources(ctx context.Context, client *parse.Client, opts parse.ListOptions) error {
	resources, err := client.ListResources(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range resources {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("输出资源失败: %w", err)
		}
	}
	log.Printf("共 %d 条资源 (skip=%d limit=%d)", len(resources), opts.Skip, opts.Limit)
	return nil
}

func announce(ctx context.Context, cfg config.Config, client *parse.Client) error {
	// 3. 初始化发布记录
	ledger, closeLedger, err := storage.NewLedgerRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("无法初始化发布记录: %w", err)
	}
	defer closeLedger()

	// 4. 初始化 Kafka 事件发布器
	publisher, err := appKafka.NewPublisherFromConfig(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("无法创建 Kafka 生产者: %w", err)
	}
	defer publisher.Close()

	recorder := metrics.NewRecorder()
	svc := services.NewAnnounceService(services.AnnounceDeps{
		FS:        afero.NewOsFs(),
		Client:    client,
		Ledger:    ledger,
		Publisher: publisher,
		Printer:   services.NewPrinter(os.Stdout),
		Metrics:   recorder,
	}, cfg)

	// 5. (可选) 先开始监听，遍历期间新建的文件也不会遗漏
	var watcher *watch.Watcher
	if cfg.Watch.Enabled {
		watcher, err = watch.New(walker.Options{FollowSymlinks: cfg.Walk.FollowSymlinks})
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(cfg.Walk.RootPath); err != nil {
			return err
		}
	}

	// 6. 遍历并发布
	_, runErr := svc.Run(ctx, cfg.Walk.RootPath)

	// 7. 继续处理新文件，已经发布过的路径会被跳过
	if runErr == nil && watcher != nil {
		log.Printf("监听 %s 中的新文件，按 Ctrl+C 退出", cfg.Walk.RootPath)
		runErr = watcher.Run(ctx, svc.AnnounceFile)
	}

	recorder.Dump(log.Writer())
	return runErr
}
