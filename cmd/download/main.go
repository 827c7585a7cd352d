// Command download fetches historical bars from a market data provider and
// writes them as Parquet files ready for the backtest command.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/internal/version"
	"github.com/rxtech-lab/tempo-trading/pkg/marketdata"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	appLog, err := logger.NewLogger()
	if err != nil {
		return err
	}

	timeframe, err := types.ParseTimeframe(cmd.String("timeframe"))
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onProgress := func(done, total int) {
		if bar == nil {
			bar = progressbar.New(total)
		}

		bar.Add(1)
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:  marketdata.ProviderType(cmd.String("provider")),
		DataPath:      cmd.String("data"),
		PolygonApiKey: os.Getenv("POLYGON_API_KEY"),
	}, appLog, onProgress)
	if err != nil {
		return err
	}

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Symbol:    cmd.String("symbol"),
		StartDate: cmd.Timestamp("start"),
		EndDate:   cmd.Timestamp("end"),
		Timeframe: timeframe,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\ndownloaded to %s\n", path)

	return nil
}

func main() {
	// A missing .env just means credentials come from the environment.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "download",
		Usage:   "Download historical market data",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"t"},
				Usage:    "Ticker or trading pair to download",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format, defaults to today",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s or %s)", marketdata.ProviderPolygon, marketdata.ProviderBinance),
				Value:   string(marketdata.ProviderPolygon),
			},
			&cli.StringFlag{
				Name:  "timeframe",
				Usage: "Bar timeframe: day or minute",
				Value: string(types.TimeframeDay),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory",
				Value:   "data",
			},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
