// Command backtest replays a historical data file through one of the
// example strategies and writes the run's statistics, order history, and
// an HTML tearsheet.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/rxtech-lab/tempo-trading/internal/config"
	"github.com/rxtech-lab/tempo-trading/internal/feed"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/manager"
	"github.com/rxtech-lab/tempo-trading/internal/report"
	"github.com/rxtech-lab/tempo-trading/internal/store"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	examples "github.com/rxtech-lab/tempo-trading/examples/strategy"
	"github.com/rxtech-lab/tempo-trading/pkg/strategy"
)

func newStrategy(name, symbol string, timeframe types.Timeframe) (strategy.Strategy, error) {
	switch name {
	case "buy-and-hold":
		return examples.NewBuyAndHold(symbol, 1), nil
	case "sma-cross":
		return examples.NewSMACross(symbol, timeframe, 10, 30), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q, want buy-and-hold or sma-cross", name)
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadBacktestConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return err
	}

	timeframe, err := types.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return err
	}

	dataFeed, err := feed.NewDuckDB(":memory:", appLog)
	if err != nil {
		return err
	}

	defer dataFeed.Close()

	if err := dataFeed.Ingest(cfg.Data, timeframe); err != nil {
		return err
	}

	output := cfg.Output
	if output == "" {
		output = "."
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}

	runStore, err := store.NewRunStore(filepath.Join(output, "run.duckdb"), appLog)
	if err != nil {
		return err
	}

	defer runStore.Close()

	managerConfig, err := cfg.ManagerConfig()
	if err != nil {
		return err
	}

	managerConfig.Store = runStore
	managerConfig.Logger = appLog

	m, err := manager.NewManager(dataFeed, managerConfig)
	if err != nil {
		return err
	}

	algo, err := newStrategy(cmd.String("strategy"), cmd.String("symbol"), timeframe)
	if err != nil {
		return err
	}

	if err := m.AddAlgo(algo); err != nil {
		return err
	}

	opts := cfg.BacktestOptions()

	var bar *progressbar.ProgressBar

	opts.OnProgress = func(done, total int) {
		if bar == nil {
			bar = progressbar.New(total)
		}

		bar.Add(1)
	}

	stats, err := m.Backtest(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Println()
	printStats(stats)

	statsPath := filepath.Join(output, "stats.yaml")
	if err := types.WriteStats(statsPath, stats); err != nil {
		return err
	}

	tearsheetPath := filepath.Join(output, "tearsheet.html")
	if err := report.Write(tearsheetPath, algo.Name(), stats, m.Portfolio().Valuations(), m.Simulator().Fills()); err != nil {
		return err
	}

	for _, table := range []string{"orders", "fills"} {
		if err := runStore.WriteParquet(table, filepath.Join(output, table+".parquet")); err != nil {
			return err
		}
	}

	fmt.Printf("\nwrote %s, %s, orders.parquet, fills.parquet\n", statsPath, tearsheetPath)

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
		Name:    "backtest",
		Usage:   "Replay historical bars through a strategy",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the backtest YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Strategy to run: buy-and-hold or sma-cross",
				Value:   "buy-and-hold",
			},
			&cli.StringFlag{
				Name:     "symbol",
				Usage:    "Symbol the strategy trades",
				Required: true,
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
