// Package store persists a run's order and fill history to DuckDB so it
// can be inspected with SQL after the fact or exported to parquet.
package store

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

// RunStore records the execution history of one run.
type RunStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewRunStore opens (or creates) a run store at path. ":memory:" keeps the
// store ephemeral.
func NewRunStore(path string, logger *logger.Logger) (*RunStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to open run store", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR NOT NULL,
			symbol VARCHAR NOT NULL,
			quantity DOUBLE NOT NULL,
			kind VARCHAR NOT NULL,
			limit_offset DOUBLE NOT NULL,
			stop_offset DOUBLE NOT NULL,
			strategy VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			reason VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fills (
			id VARCHAR NOT NULL,
			order_id VARCHAR NOT NULL,
			symbol VARCHAR NOT NULL,
			quantity DOUBLE NOT NULL,
			price DOUBLE NOT NULL,
			time TIMESTAMP NOT NULL,
			commission DOUBLE NOT NULL,
			realized_pnl DOUBLE NOT NULL,
			closing BOOLEAN NOT NULL,
			strategy VARCHAR NOT NULL
		);
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to create run store tables", err)
	}

	return &RunStore{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// RecordOrders writes order records, replacing anything recorded before.
// The audit log is small enough that rewriting it at the end of a run is
// simpler than tracking status transitions row by row.
func (s *RunStore) RecordOrders(records []types.OrderRecord) error {
	if _, err := s.db.Exec(`DELETE FROM orders;`); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to clear orders", err)
	}

	if len(records) == 0 {
		return nil
	}

	builder := s.sq.Insert("orders").
		Columns("id", "symbol", "quantity", "kind", "limit_offset", "stop_offset", "strategy", "status", "reason", "created_at", "updated_at")

	for _, r := range records {
		builder = builder.Values(
			r.Request.ID,
			r.Request.Symbol,
			r.Request.Quantity,
			string(r.Request.Spec.Kind),
			r.Request.Spec.LimitOffset,
			r.Request.Spec.StopOffset,
			r.Request.Strategy,
			string(r.Status),
			r.Reason,
			r.Request.CreatedAt,
			r.Time,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to build orders insert", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to insert orders", err)
	}

	s.logger.Debug("recorded orders", zap.Int("count", len(records)))

	return nil
}

// RecordFills appends fills to the store.
func (s *RunStore) RecordFills(fills []types.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	builder := s.sq.Insert("fills").
		Columns("id", "order_id", "symbol", "quantity", "price", "time", "commission", "realized_pnl", "closing", "strategy")

	for _, f := range fills {
		builder = builder.Values(f.ID, f.OrderID, f.Symbol, f.Quantity, f.Price, f.Time, f.Commission, f.RealizedPnL, f.Closing, f.Strategy)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to build fills insert", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to insert fills", err)
	}

	s.logger.Debug("recorded fills", zap.Int("count", len(fills)))

	return nil
}

// Fills reads back the recorded fills in time order.
func (s *RunStore) Fills() ([]types.Fill, error) {
	query, args, err := s.sq.Select("id", "order_id", "symbol", "quantity", "price", "time", "commission", "realized_pnl", "closing", "strategy").
		From("fills").
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to build fills query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query fills", err)
	}
	defer rows.Close()

	var fills []types.Fill

	for rows.Next() {
		var f types.Fill

		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &f.Quantity, &f.Price, &f.Time, &f.Commission, &f.RealizedPnL, &f.Closing, &f.Strategy); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan fill", err)
		}

		fills = append(fills, f)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "error iterating fills", err)
	}

	return fills, nil
}

// OrderCountByStatus summarizes the audit log.
func (s *RunStore) OrderCountByStatus() (map[types.OrderStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM orders GROUP BY status;`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query order counts", err)
	}
	defer rows.Close()

	counts := make(map[types.OrderStatus]int)

	for rows.Next() {
		var (
			status string
			count  int
		)

		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan order count", err)
		}

		counts[types.OrderStatus(status)] = count
	}

	return counts, rows.Err()
}

// StrategyRealizedPnL sums realized profit per strategy.
func (s *RunStore) StrategyRealizedPnL() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT strategy, SUM(realized_pnl) FROM fills WHERE closing GROUP BY strategy;`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query realized pnl", err)
	}
	defer rows.Close()

	result := make(map[string]float64)

	for rows.Next() {
		var (
			strategy string
			pnl      float64
		)

		if err := rows.Scan(&strategy, &pnl); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan realized pnl", err)
		}

		result[strategy] = pnl
	}

	return result, rows.Err()
}

// WriteParquet exports one table ("orders" or "fills") to a parquet file.
func (s *RunStore) WriteParquet(table, path string) error {
	if table != "orders" && table != "fills" {
		return errors.Newf(errors.ErrCodeStoreFailed, "unknown table %q", table)
	}

	query := fmt.Sprintf(`COPY (SELECT * FROM %s) TO '%s' (FORMAT PARQUET);`, table, path)
	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to export %s", table)
	}

	return nil
}

// Cleanup drops all recorded data but keeps the store open.
func (s *RunStore) Cleanup() error {
	if _, err := s.db.Exec(`DELETE FROM orders; DELETE FROM fills;`); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to clean run store", err)
	}

	return nil
}

// Close releases the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
