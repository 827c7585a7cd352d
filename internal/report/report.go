// Package report renders a run's results as a self-contained HTML
// tearsheet: the statistics table, an equity-curve chart, and the fill
// history.
package report

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"strings"

	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

const (
	chartWidth  = 900
	chartHeight = 300
)

type statRow struct {
	Name  string
	Value string
}

type fillRow struct {
	Time        string
	Symbol      string
	Quantity    string
	Price       string
	Commission  string
	RealizedPnL string
	Strategy    string
}

type page struct {
	Title      string
	Generated  string
	Stats      []statRow
	EquityPath string
	HasEquity  bool
	Fills      []fillRow
}

var tearsheet = template.Must(template.New("tearsheet").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; margin-top: 0.5rem; }
th, td { border: 1px solid #ddd; padding: 0.35rem 0.7rem; text-align: right; }
th { background: #f5f5f5; }
td:first-child, th:first-child { text-align: left; }
svg { margin-top: 0.5rem; border: 1px solid #ddd; background: #fff; }
.generated { color: #888; font-size: 0.8rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="generated">generated {{.Generated}}</p>
<h2>Statistics</h2>
<table>
{{range .Stats}}<tr><td>{{.Name}}</td><td>{{.Value}}</td></tr>
{{end}}</table>
{{if .HasEquity}}
<h2>Equity curve</h2>
<svg width="900" height="300" viewBox="0 0 900 300">
<polyline fill="none" stroke="#2266cc" stroke-width="1.5" points="{{.EquityPath}}"/>
</svg>
{{end}}
{{if .Fills}}
<h2>Fills</h2>
<table>
<tr><th>Time</th><th>Symbol</th><th>Quantity</th><th>Price</th><th>Commission</th><th>Realized PnL</th><th>Strategy</th></tr>
{{range .Fills}}<tr><td>{{.Time}}</td><td>{{.Symbol}}</td><td>{{.Quantity}}</td><td>{{.Price}}</td><td>{{.Commission}}</td><td>{{.RealizedPnL}}</td><td>{{.Strategy}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

func formatMetric(v float64, pct bool) string {
	if types.IsUndefined(v) {
		return "n/a"
	}

	if pct {
		return fmt.Sprintf("%.2f%%", v*100)
	}

	return fmt.Sprintf("%.4f", v)
}

// StatRows flattens a StatsRecord into display rows. Exposed so the
// console renderer can share the formatting.
func StatRows(stats types.StatsRecord) [][2]string {
	return [][2]string{
		{"Start", stats.Start.Format("2006-01-02")},
		{"End", stats.End.Format("2006-01-02")},
		{"Start value", fmt.Sprintf("%.2f", stats.StartValue)},
		{"End value", fmt.Sprintf("%.2f", stats.EndValue)},
		{"Total return", formatMetric(stats.TotalReturn, true)},
		{"CAGR", formatMetric(stats.CAGR, true)},
		{"Sharpe", formatMetric(stats.Sharpe, false)},
		{"Sortino", formatMetric(stats.Sortino, false)},
		{"Alpha", formatMetric(stats.Alpha, false)},
		{"Beta", formatMetric(stats.Beta, false)},
		{"Max drawdown", formatMetric(stats.MaxDrawdown, true)},
		{"Win rate", formatMetric(stats.WinRate, true)},
		{"Average win", formatMetric(stats.AverageWin, false)},
		{"Average loss", formatMetric(stats.AverageLoss, false)},
		{"Fills", fmt.Sprintf("%d", stats.NumberOfFills)},
		{"Closes", fmt.Sprintf("%d", stats.NumberOfCloses)},
		{"Total commission", fmt.Sprintf("%.2f", stats.TotalCommission)},
		{"Realized PnL", fmt.Sprintf("%.2f", stats.RealizedPnL)},
	}
}

// equityPath converts the valuation series into SVG polyline points.
func equityPath(valuations []types.Valuation) string {
	if len(valuations) < 2 {
		return ""
	}

	minV, maxV := valuations[0].Value, valuations[0].Value
	for _, v := range valuations {
		minV = math.Min(minV, v.Value)
		maxV = math.Max(maxV, v.Value)
	}

	spread := maxV - minV
	if spread == 0 {
		spread = 1
	}

	var b strings.Builder

	for i, v := range valuations {
		x := float64(i) / float64(len(valuations)-1) * chartWidth
		y := chartHeight - (v.Value-minV)/spread*(chartHeight-20) - 10

		if i > 0 {
			b.WriteByte(' ')
		}

		fmt.Fprintf(&b, "%.1f,%.1f", x, y)
	}

	return b.String()
}

// Write renders the tearsheet to path.
func Write(path, title string, stats types.StatsRecord, valuations []types.Valuation, fills []types.Fill) error {
	statRows := make([]statRow, 0)
	for _, row := range StatRows(stats) {
		statRows = append(statRows, statRow{Name: row[0], Value: row[1]})
	}

	fillRows := make([]fillRow, 0, len(fills))

	for _, f := range fills {
		pnl := ""
		if f.Closing {
			pnl = fmt.Sprintf("%.2f", f.RealizedPnL)
		}

		fillRows = append(fillRows, fillRow{
			Time:        f.Time.Format("2006-01-02 15:04:05"),
			Symbol:      f.Symbol,
			Quantity:    fmt.Sprintf("%.2f", f.Quantity),
			Price:       fmt.Sprintf("%.2f", f.Price),
			Commission:  fmt.Sprintf("%.2f", f.Commission),
			RealizedPnL: pnl,
			Strategy:    f.Strategy,
		})
	}

	path2 := equityPath(valuations)

	data := page{
		Title:      title,
		Generated:  stats.Timestamp.Format("2006-01-02 15:04:05 MST"),
		Stats:      statRows,
		EquityPath: path2,
		HasEquity:  path2 != "",
		Fills:      fillRows,
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to create report %s", path)
	}
	defer file.Close()

	if err := tearsheet.Execute(file, data); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to render report", err)
	}

	return nil
}
