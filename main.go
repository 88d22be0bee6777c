package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/tetris-overlay-go/app"
	"github.com/soocke/tetris-overlay-go/config"
	"github.com/soocke/tetris-overlay-go/domain/capture"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to the configuration file")
	calibrate := flag.Bool("calibrate", false, "open the board calibration window and exit")
	headless := flag.Bool("headless", false, "log predictions instead of drawing the overlay")
	listWindows := flag.Bool("windows", false, "list window titles usable as capture_window and exit")
	flag.Parse()

	if *listWindows {
		titles, err := capture.ListWindows()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, t := range titles {
			fmt.Println(t)
		}
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	application := app.NewApp(cfg, *cfgPath, logger)
	if *calibrate {
		if err := application.Calibrate(); err != nil {
			logger.Error("calibration failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx, *headless); err != nil {
		logger.Error("exiting", "error", err)
		stop()
		os.Exit(1)
	}
}
