package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkoval/knowbase/internal/adapters/mcp"
	"github.com/dkoval/knowbase/internal/bootstrap"
	"github.com/dkoval/knowbase/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "knowbase-mcp")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcp.NewServer(app.AnswerUC, app.AnswerUC)

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("mcp listening", "port", cfg.MCPPort)
		errCh <- srv.ServeHTTP(":" + cfg.MCPPort)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Fatalf("mcp server error: %v", err)
		}
	}
}
