package feed

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

// DuckDB is a Historical feed backed by an embedded DuckDB database.
// Bars are loaded from parquet or CSV files via Ingest, or inserted
// directly with Insert.
type DuckDB struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDB opens a DuckDB database at the given path. Use ":memory:"
// for an ephemeral database.
func NewDuckDB(path string, logger *logger.Logger) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			symbol VARCHAR NOT NULL,
			time TIMESTAMP NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL,
			timeframe VARCHAR NOT NULL
		);
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to create market_data table", err)
	}

	return &DuckDB{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Ingest loads bar data from parquet or CSV files into the market_data
// table. The path may be a glob. Files must carry the market_data columns;
// a missing timeframe column defaults to daily.
func (d *DuckDB) Ingest(path string, timeframe types.Timeframe) error {
	d.logger.Debug("ingesting market data", zap.String("path", path))

	reader := "read_parquet"
	if strings.HasSuffix(path, ".csv") || strings.Contains(path, ".csv") {
		reader = "read_csv_auto"
	}

	query := fmt.Sprintf(`
		INSERT INTO market_data
		SELECT symbol, time, open, high, low, close, volume, '%s' AS timeframe
		FROM %s('%s');
	`, timeframe, reader, path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to ingest %s", path)
	}

	return nil
}

// Insert adds bars directly to the store.
func (d *DuckDB) Insert(bars ...types.Bar) error {
	builder := d.sq.Insert("market_data").
		Columns("symbol", "time", "open", "high", "low", "close", "volume", "timeframe")

	for _, bar := range bars {
		builder = builder.Values(bar.Symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, string(bar.Timeframe))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build insert", err)
	}

	if _, err := d.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert bars", err)
	}

	return nil
}

// GetBars implements Feed.
func (d *DuckDB) GetBars(symbol string, timeframe types.Timeframe, w Window) ([]types.Bar, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	builder := d.sq.Select("symbol", "time", "open", "high", "low", "close", "volume", "timeframe").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol, "timeframe": string(timeframe)})

	if !w.AsOf.IsZero() {
		builder = builder.Where(squirrel.LtOrEq{"time": w.AsOf})
	}

	if w.Days > 0 {
		builder = builder.Where(squirrel.Gt{"time": w.AsOf.AddDate(0, 0, -w.Days)})
		builder = builder.OrderBy("time ASC")
	} else {
		// Take the most recent Length rows, then restore chronological order.
		builder = builder.OrderBy("time DESC").Limit(uint64(w.Length))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no %s bars for symbol %s in window", timeframe, symbol)
	}

	if w.Length > 0 {
		// Rows came back newest first.
		for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
			bars[i], bars[j] = bars[j], bars[i]
		}
	}

	return bars, nil
}

// ReadAll implements Historical with batch processing.
func (d *DuckDB) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	const batchSize = 1000

	return func(yield func(types.Bar, error) bool) {
		query := `
			SELECT symbol, time, open, high, low, close, volume, timeframe
			FROM market_data
		`

		conditions, params := boundConditions(start, end)
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}

		query += " ORDER BY time ASC, symbol ASC"

		rows, err := d.db.Query(query, params...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err))

			return
		}
		defer rows.Close()

		batch := make([]types.Bar, 0, batchSize)

		for rows.Next() {
			bar, err := scanBar(rows)
			if err != nil {
				yield(types.Bar{}, err)

				return
			}

			batch = append(batch, bar)

			if len(batch) >= batchSize {
				for _, b := range batch {
					if !yield(b, nil) {
						return
					}
				}

				batch = batch[:0]
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err))

			return
		}

		for _, b := range batch {
			if !yield(b, nil) {
				return
			}
		}
	}
}

// Count implements Historical.
func (d *DuckDB) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query := "SELECT COUNT(*) FROM market_data"

	conditions, params := boundConditions(start, end)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := d.db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// LastBar implements Historical.
func (d *DuckDB) LastBar(symbol string) (types.Bar, error) {
	query, args, err := d.sq.Select("symbol", "time", "open", "high", "low", "close", "volume", "timeframe").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query last bar", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return types.Bar{}, errors.Newf(errors.ErrCodeNoDataFound, "no bars for symbol %s", symbol)
	}

	return scanBar(rows)
}

// WriteParquet exports the full market_data table to a parquet file.
func (d *DuckDB) WriteParquet(path string) error {
	query := fmt.Sprintf(`COPY (SELECT * FROM market_data ORDER BY time ASC) TO '%s' (FORMAT PARQUET);`, path)
	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to write parquet %s", path)
	}

	return nil
}

// Close implements Historical.
func (d *DuckDB) Close() error {
	return d.db.Close()
}

func boundConditions(start optional.Option[time.Time], end optional.Option[time.Time]) ([]string, []interface{}) {
	var conditions []string

	var params []interface{}

	if start.IsSome() {
		params = append(params, start.Unwrap())
		conditions = append(conditions, fmt.Sprintf("time >= $%d", len(params)))
	}

	if end.IsSome() {
		params = append(params, end.Unwrap())
		conditions = append(conditions, fmt.Sprintf("time <= $%d", len(params)))
	}

	return conditions, params
}

func scanBar(rows *sql.Rows) (types.Bar, error) {
	var (
		symbol, timeframe              string
		timestamp                      time.Time
		open, high, low, close, volume float64
	)

	if err := rows.Scan(&symbol, &timestamp, &open, &high, &low, &close, &volume, &timeframe); err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
	}

	return types.Bar{
		Symbol:    symbol,
		Time:      timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		Timeframe: types.Timeframe(timeframe),
	}, nil
}

func scanBars(rows *sql.Rows) ([]types.Bar, error) {
	result := make([]types.Bar, 0, 64)

	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err)
	}

	return result, nil
}
