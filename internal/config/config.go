// Package config is the file-facing surface of the engine: YAML documents
// that the command-line tools load, validate, and translate into manager
// wiring. The schema generators exist so editors can validate config files
// offline.
package config

import (
	"encoding/json"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/broker"
	"github.com/rxtech-lab/tempo-trading/internal/manager"
	"github.com/rxtech-lab/tempo-trading/internal/metrics"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Bound is one end of a backtest horizon in a config file: either an
// RFC3339 timestamp scalar, or a mapping with a "days" key counting from
// the other end. An absent bound falls back to the data's edge.
type Bound struct {
	At   optional.Option[time.Time]
	Days optional.Option[int]
}

// UnmarshalYAML accepts either form.
func (b *Bound) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		t, err := time.Parse(time.RFC3339, value.Value)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidTimeRange, err, "bound %q is not an RFC3339 timestamp", value.Value)
		}

		b.At = optional.Some(t)

		return nil
	case yaml.MappingNode:
		var relative struct {
			Days int `yaml:"days"`
		}

		if err := value.Decode(&relative); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidTimeRange, "bound mapping must carry a days key", err)
		}

		if relative.Days <= 0 {
			return errors.Newf(errors.ErrCodeInvalidTimeRange, "bound days must be positive, got %d", relative.Days)
		}

		b.Days = optional.Some(relative.Days)

		return nil
	default:
		return errors.New(errors.ErrCodeInvalidTimeRange, "bound must be a timestamp or a {days: N} mapping")
	}
}

// toManager converts to the engine's bound representation.
func (b Bound) toManager() manager.Bound {
	if b.At.IsSome() {
		return manager.At(b.At.Unwrap())
	}

	if b.Days.IsSome() {
		return manager.Days(b.Days.Unwrap())
	}

	return manager.Open()
}

// BacktestConfig is the document the backtest command loads.
type BacktestConfig struct {
	InitialCash    float64 `yaml:"initial_cash" json:"initial_cash" jsonschema:"title=Initial Cash,description=Starting cash for the shared portfolio,minimum=0" validate:"required,gt=0"`
	Commission     string  `yaml:"commission" json:"commission" jsonschema:"title=Commission,description=Fee model applied to simulated fills" validate:"omitempty,oneof=zero per_share"`
	Benchmark      string  `yaml:"benchmark" json:"benchmark" jsonschema:"title=Benchmark,description=Symbol whose closes form the alpha/beta benchmark series"`
	Start          Bound   `yaml:"start" json:"start" jsonschema:"title=Start,description=Horizon start: RFC3339 timestamp or {days: N} before the end"`
	End            Bound   `yaml:"end" json:"end" jsonschema:"title=End,description=Horizon end: RFC3339 timestamp or {days: N} after the start"`
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate" jsonschema:"title=Risk-Free Rate,description=Annual risk-free rate used by Sharpe and Sortino"`
	DownsideTarget float64 `yaml:"downside_target" json:"downside_target" jsonschema:"title=Downside Target,description=Annual return floor for the Sortino downside deviation"`
	AllowShort     bool    `yaml:"allow_short" json:"allow_short" jsonschema:"title=Allow Short,description=Permit sells that open or extend a short position"`
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year" jsonschema:"title=Periods Per Year,description=Annualization factor; defaults to 252 trading days,minimum=0" validate:"omitempty,gt=0"`
	Data           string  `yaml:"data" json:"data" jsonschema:"title=Data,description=Path to a parquet or CSV file of bars" validate:"required"`
	Timeframe      string  `yaml:"timeframe" json:"timeframe" jsonschema:"title=Timeframe,description=Bar timeframe of the data file" validate:"required,oneof=day minute"`
	Output         string  `yaml:"output" json:"output" jsonschema:"title=Output,description=Directory receiving stats and the tearsheet; defaults to the working directory"`
}

// LiveConfig is the document the live command loads. API credentials left
// empty in the file resolve from the environment, so secrets can live in a
// .env file instead of the config.
type LiveConfig struct {
	InitialCash float64  `yaml:"initial_cash" json:"initial_cash" jsonschema:"title=Initial Cash,description=Starting cash for the paper portfolio,minimum=0" validate:"required,gt=0"`
	Symbols     []string `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Symbols to stream live bars for" validate:"required,min=1,dive,required"`
	Granularity string   `yaml:"granularity" json:"granularity" jsonschema:"title=Granularity,description=Dispatch tick spacing as a Go duration; defaults to 1s" validate:"omitempty"`
	ApiKey      string   `yaml:"api_key" json:"api_key" jsonschema:"title=API Key,description=Exchange API key; falls back to BINANCE_API_KEY"`
	SecretKey   string   `yaml:"secret_key" json:"secret_key" jsonschema:"title=Secret Key,description=Exchange API secret; falls back to BINANCE_SECRET_KEY"`
	Testnet     bool     `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,description=Route orders and data to the exchange testnet"`
}

// Validate checks the document against its declared constraints.
func (c *BacktestConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid backtest config", err)
	}

	return nil
}

// Validate checks the document against its declared constraints.
func (c *LiveConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid live config", err)
	}

	if c.Granularity != "" {
		if _, err := time.ParseDuration(c.Granularity); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid granularity %q", c.Granularity)
		}
	}

	return nil
}

// LoadBacktestConfig reads and validates a backtest YAML document.
func LoadBacktestConfig(path string) (*BacktestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read config %s", path)
	}

	return ParseBacktestConfig(data)
}

// ParseBacktestConfig parses and validates a backtest YAML document.
func ParseBacktestConfig(data []byte) (*BacktestConfig, error) {
	var config BacktestConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse backtest config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadLiveConfig reads and validates a live YAML document, resolving empty
// credentials from the environment. A .env file next to the working
// directory is honored when present.
func LoadLiveConfig(path string) (*LiveConfig, error) {
	// Errors only mean no .env file exists.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read config %s", path)
	}

	var config LiveConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse live config", err)
	}

	if config.ApiKey == "" {
		config.ApiKey = os.Getenv("BINANCE_API_KEY")
	}

	if config.SecretKey == "" {
		config.SecretKey = os.Getenv("BINANCE_SECRET_KEY")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ManagerConfig translates the document into engine wiring.
func (c *BacktestConfig) ManagerConfig() (manager.Config, error) {
	commission, err := broker.NewCommission(broker.CommissionMode(c.Commission))
	if err != nil {
		return manager.Config{}, err
	}

	return manager.Config{
		InitialCash:     c.InitialCash,
		Commission:      commission,
		AllowShort:      c.AllowShort,
		BenchmarkSymbol: c.Benchmark,
		Metrics: metrics.Config{
			RiskFreeRate:   c.RiskFreeRate,
			DownsideTarget: c.DownsideTarget,
			PeriodsPerYear: c.PeriodsPerYear,
		},
	}, nil
}

// BacktestOptions translates the document's horizon bounds.
func (c *BacktestConfig) BacktestOptions() manager.BacktestOptions {
	return manager.BacktestOptions{
		Start: c.Start.toManager(),
		End:   c.End.toManager(),
	}
}

// GranularityDuration returns the parsed dispatch spacing, defaulting to
// one second.
func (c *LiveConfig) GranularityDuration() time.Duration {
	if c.Granularity == "" {
		return time.Second
	}

	d, err := time.ParseDuration(c.Granularity)
	if err != nil {
		return time.Second
	}

	return d
}

// GenerateSchema reflects the backtest document into a JSON schema.
func (c *BacktestConfig) GenerateSchema() *jsonschema.Schema {
	schema := newReflector().Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for backtest runs"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchema reflects the live document into a JSON schema.
func (c *LiveConfig) GenerateSchema() *jsonschema.Schema {
	schema := newReflector().Reflect(c)
	schema.Title = "live-config"
	schema.Description = "Configuration schema for paper and live runs"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders the backtest schema as indented JSON.
func (c *BacktestConfig) GenerateSchemaJSON() (string, error) {
	return marshalSchema(c.GenerateSchema())
}

// GenerateSchemaJSON renders the live schema as indented JSON.
func (c *LiveConfig) GenerateSchemaJSON() (string, error) {
	return marshalSchema(c.GenerateSchema())
}

func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(Bound{}) {
				return &jsonschema.Schema{
					OneOf: []*jsonschema.Schema{
						{Type: "string", Format: "date-time"},
						{Type: "object"},
					},
				}
			}

			return nil
		},
	}
}

func marshalSchema(schema *jsonschema.Schema) (string, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "failed to marshal schema", err)
	}

	return string(data), nil
}
