package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/pflag"

	"resource-linker/internal/config"
	"resource-linker/internal/handlers/parsestub"
)

func main() {
	flags := pflag.NewFlagSet("parsestub", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig("", flags)
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	store := parsestub.NewStore()
	r := parsestub.NewRouter(parsestub.NewHandler(store, cfg.StubServer.ApplicationID), cfg.Parse.MountPath)

	var handler http.Handler = handlers.CombinedLoggingHandler(os.Stdout, r)
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)

	serverAddr := fmt.Sprintf("%s:%s", cfg.StubServer.Host, cfg.StubServer.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Parse stub 启动于 %s%s", serverAddr, cfg.Parse.MountPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Parse stub 启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 Parse stub...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Parse stub 强制关闭: %v", err)
	}
	log.Printf("Parse stub 已关闭，共保存 %d 条资源", store.Count(cfg.Parse.ClassName))
}
