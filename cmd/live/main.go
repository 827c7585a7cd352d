// Command live runs a strategy against streaming Binance market data with
// simulated execution (paper trading). Positions and fills stay local; only
// market data comes from the exchange.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/rxtech-lab/tempo-trading/internal/config"
	"github.com/rxtech-lab/tempo-trading/internal/feed"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/manager"
	"github.com/rxtech-lab/tempo-trading/internal/report"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	examples "github.com/rxtech-lab/tempo-trading/examples/strategy"
)

// warmupBars seeds the in-memory cache with recent history so indicator
// windows are usable from the first tick.
const warmupBars = 500

func liveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadLiveConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return err
	}

	exchange := feed.NewBinance(cfg.ApiKey, cfg.SecretKey, cfg.Testnet, appLog)

	// The manager replays and reads from an in-memory cache; the exchange
	// stream keeps it current.
	cache := feed.NewMemory()

	for _, symbol := range cfg.Symbols {
		bars, err := exchange.GetBars(symbol, types.TimeframeMinute, feed.Window{Length: warmupBars})
		if err != nil {
			return err
		}

		cache.Push(bars...)
		appLog.Info("warmed cache", zap.String("symbol", symbol), zap.Int("bars", len(bars)))
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, symbol := range cfg.Symbols {
		stream, err := exchange.SubscribeLive(runCtx, symbol)
		if err != nil {
			return err
		}

		go func() {
			for bar := range stream {
				cache.Push(bar)
			}
		}()
	}

	m, err := manager.NewManager(cache, manager.Config{
		InitialCash: cfg.InitialCash,
		Logger:      appLog,
	})
	if err != nil {
		return err
	}

	symbol := cmd.String("symbol")
	if symbol == "" {
		symbol = cfg.Symbols[0]
	}

	if err := m.AddAlgo(examples.NewSMACross(symbol, types.TimeframeMinute, 10, 30)); err != nil {
		return err
	}

	appLog.Info("paper trading started",
		zap.Strings("symbols", cfg.Symbols),
		zap.Duration("granularity", cfg.GranularityDuration()))

	stats, err := m.Run(runCtx, manager.RunOptions{
		Granularity: cfg.GranularityDuration(),
		Symbols:     cfg.Symbols,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	printStats(stats)

	return nil
}

func printStats(stats types.StatsRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")

	for _, row := range report.StatRows(stats) {
		table.Append(row[0], row[1])
	}

	table.Render()
}

func main() {
	cmd := &cli.Command{
		Name:    "live",
		Usage:   "Paper trade a strategy against live exchange data",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the live YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "Symbol the strategy trades; defaults to the first configured symbol",
			},
		},
		Action: liveAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
