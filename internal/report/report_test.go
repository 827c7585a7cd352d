package report

import (
	"os"
	"testing"
	"time"

	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type ReportTestSuite struct {
	suite.Suite
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportTestSuite))
}

func (suite *ReportTestSuite) sampleStats() types.StatsRecord {
	return types.StatsRecord{
		ID:          "run",
		Timestamp:   time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		StartValue:  10000,
		EndValue:    11000,
		TotalReturn: 0.10,
		CAGR:        types.Undefined(),
		Sharpe:      1.25,
		Sortino:     types.Undefined(),
		Alpha:       types.Undefined(),
		Beta:        types.Undefined(),
		MaxDrawdown: 0.05,
		WinRate:     types.Undefined(),
		AverageWin:  types.Undefined(),
		AverageLoss: types.Undefined(),
	}
}

func (suite *ReportTestSuite) TestWriteRendersStatsAndEquity() {
	valuations := []types.Valuation{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 10000, Cash: 10000},
		{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: 10500, Cash: 500},
		{Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Value: 11000, Cash: 500},
	}

	fills := []types.Fill{
		{
			ID:       "f1",
			Symbol:   "AAPL",
			Quantity: 10,
			Price:    100,
			Time:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Strategy: "buyhold",
		},
	}

	path := suite.T().TempDir() + "/tearsheet.html"
	suite.Require().NoError(Write(path, "Backtest", suite.sampleStats(), valuations, fills))

	content, err := os.ReadFile(path)
	suite.Require().NoError(err)

	html := string(content)
	suite.Contains(html, "Total return")
	suite.Contains(html, "10.00%")
	suite.Contains(html, "n/a") // undefined metrics render as n/a, not NaN
	suite.NotContains(html, "NaN")
	suite.Contains(html, "polyline")
	suite.Contains(html, "AAPL")
	suite.Contains(html, "buyhold")
}

func (suite *ReportTestSuite) TestWriteWithoutValuationsSkipsChart() {
	path := suite.T().TempDir() + "/tearsheet.html"
	suite.Require().NoError(Write(path, "Backtest", suite.sampleStats(), nil, nil))

	content, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.NotContains(string(content), "polyline")
}

func (suite *ReportTestSuite) TestStatRowsOrderAndFormat() {
	rows := StatRows(suite.sampleStats())

	suite.Equal("Start", rows[0][0])
	suite.Equal("2024-01-01", rows[0][1])

	found := false

	for _, row := range rows {
		if row[0] == "Sharpe" {
			suite.Equal("1.2500", row[1])

			found = true
		}
	}

	suite.True(found)
}
