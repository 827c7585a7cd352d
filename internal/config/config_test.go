package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) writeFile(name, content string) string {
	path := filepath.Join(suite.T().TempDir(), name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *ConfigTestSuite) TestParseBacktestConfig() {
	config, err := ParseBacktestConfig([]byte(`
initial_cash: 10000
commission: per_share
benchmark: SPY
start: 2024-01-01T00:00:00Z
end:
  days: 30
risk_free_rate: 0.02
data: bars.parquet
timeframe: day
output: out
`))
	suite.Require().NoError(err)

	suite.Equal(10000.0, config.InitialCash)
	suite.Equal("SPY", config.Benchmark)
	suite.True(config.Start.At.IsSome())
	suite.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), config.Start.At.Unwrap())
	suite.True(config.End.Days.IsSome())
	suite.Equal(30, config.End.Days.Unwrap())
}

func (suite *ConfigTestSuite) TestOpenBoundsByDefault() {
	config, err := ParseBacktestConfig([]byte(`
initial_cash: 5000
data: bars.csv
timeframe: minute
`))
	suite.Require().NoError(err)

	suite.True(config.Start.At.IsNone())
	suite.True(config.Start.Days.IsNone())
	suite.True(config.End.At.IsNone())
}

func (suite *ConfigTestSuite) TestRejectsMissingData() {
	_, err := ParseBacktestConfig([]byte(`
initial_cash: 5000
timeframe: day
`))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ConfigTestSuite) TestRejectsBadTimeframe() {
	_, err := ParseBacktestConfig([]byte(`
initial_cash: 5000
data: bars.parquet
timeframe: hourly
`))
	suite.Require().Error(err)
}

func (suite *ConfigTestSuite) TestRejectsBadCommissionMode() {
	_, err := ParseBacktestConfig([]byte(`
initial_cash: 5000
commission: flat_fee
data: bars.parquet
timeframe: day
`))
	suite.Require().Error(err)
}

func (suite *ConfigTestSuite) TestRejectsMalformedBound() {
	_, err := ParseBacktestConfig([]byte(`
initial_cash: 5000
data: bars.parquet
timeframe: day
start: yesterday
`))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeRange))
}

func (suite *ConfigTestSuite) TestRejectsNonPositiveDays() {
	_, err := ParseBacktestConfig([]byte(`
initial_cash: 5000
data: bars.parquet
timeframe: day
end:
  days: 0
`))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeRange))
}

func (suite *ConfigTestSuite) TestManagerConfigTranslation() {
	config, err := ParseBacktestConfig([]byte(`
initial_cash: 20000
commission: per_share
benchmark: QQQ
risk_free_rate: 0.03
downside_target: 0.01
allow_short: true
periods_per_year: 12
data: bars.parquet
timeframe: day
`))
	suite.Require().NoError(err)

	cfg, err := config.ManagerConfig()
	suite.Require().NoError(err)

	suite.Equal(20000.0, cfg.InitialCash)
	suite.Equal("QQQ", cfg.BenchmarkSymbol)
	suite.True(cfg.AllowShort)
	suite.Equal(0.03, cfg.Metrics.RiskFreeRate)
	suite.Equal(0.01, cfg.Metrics.DownsideTarget)
	suite.Equal(12.0, cfg.Metrics.PeriodsPerYear)
	suite.NotNil(cfg.Commission)
}

func (suite *ConfigTestSuite) TestLoadLiveConfigResolvesEnvCredentials() {
	suite.T().Setenv("BINANCE_API_KEY", "key-from-env")
	suite.T().Setenv("BINANCE_SECRET_KEY", "secret-from-env")

	path := suite.writeFile("live.yaml", `
initial_cash: 1000
symbols:
  - BTCUSDT
granularity: 500ms
testnet: true
`)

	config, err := LoadLiveConfig(path)
	suite.Require().NoError(err)

	suite.Equal("key-from-env", config.ApiKey)
	suite.Equal("secret-from-env", config.SecretKey)
	suite.Equal(500*time.Millisecond, config.GranularityDuration())
	suite.True(config.Testnet)
}

func (suite *ConfigTestSuite) TestLiveConfigRequiresSymbols() {
	path := suite.writeFile("live.yaml", `
initial_cash: 1000
symbols: []
`)

	_, err := LoadLiveConfig(path)
	suite.Require().Error(err)
}

func (suite *ConfigTestSuite) TestGranularityDefaults() {
	config := &LiveConfig{}
	suite.Equal(time.Second, config.GranularityDuration())
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	backtest := &BacktestConfig{}

	schemaJSON, err := backtest.GenerateSchemaJSON()
	suite.Require().NoError(err)

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schemaJSON), &schema))
	suite.Equal("backtest-config", schema["title"])

	live := &LiveConfig{}

	liveJSON, err := live.GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(liveJSON, "live-config")
}
