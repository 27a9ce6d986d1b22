package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"llm-futures-trader/internal/interfaces"
	"llm-futures-trader/internal/journal"
	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/store"
	"llm-futures-trader/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := store.LoadConfig(*configPath)
	must(err)

	must(logger.Init())
	must(trace.Init())

	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		_ = journal.CompressOlder(n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = trace.Shutdown(shutdownCtx)
	}()

	eng, jrnl, err := bootstrap(cfg)
	must(err)
	defer jrnl.Sync()

	if cfg.PollSeconds <= 0 {
		runOnce(ctx, eng)
		return
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	log.Printf("Trader started: %s every %ds", cfg.Symbol, cfg.PollSeconds)
	runOnce(ctx, eng)
	for {
		select {
		case <-tick.C:
			runOnce(ctx, eng)
		case <-sigc:
			log.Println("Shutting down...")
			return
		case <-ctx.Done():
			return
		}
	}
}

func runOnce(ctx context.Context, eng interfaces.Engine) {
	res, err := eng.RunCycle(ctx)
	if err != nil {
		log.Printf("cycle error: %v", err)
		return
	}
	if res != nil {
		b, _ := json.Marshal(res)
		fmt.Println(string(b))
	}
}
