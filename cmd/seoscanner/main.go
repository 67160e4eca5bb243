package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/seo-scanner/internal/config"
	"github.com/JakeFAU/seo-scanner/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	scanURL := flag.String("scan", "", "Scan one website, print its report and exit")
	flag.Parse()

	if err := run(*cfgPath, *scanURL, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, scanURL string, out io.Writer) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("build application failed: %w", err)
	}

	if scanURL == "" {
		if err := app.Run(ctx); err != nil {
			return fmt.Errorf("application error: %w", err)
		}
		return nil
	}

	defer app.Close()
	report, err := app.ScanOnce(ctx, scanURL)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
