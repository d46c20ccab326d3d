package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"streamwatch/internal/app"
)

func main() {
	var (
		cfgPath string
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.BoolVar(&dryRun, "dry-run", false, "run one cycle without dispatching or persisting, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, DryRun: dryRun})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if dryRun {
		err := a.RunOnce(ctx, true)
		_ = a.Stop(context.Background())
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = a.Stop(context.Background())
}
