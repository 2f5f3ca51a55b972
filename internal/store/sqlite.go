package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// SymbolInfo summarises the cached candles of one symbol.
type SymbolInfo struct {
	Symbol  string `json:"symbol"`
	Candles int    `json:"candles"`
}

// SQLiteStore caches daily candles per symbol in SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry utils.RetryConfig
}

// NewSQLiteStore opens (and if needed creates) the candle cache at dbPath.
// Writes that hit a locked database are retried busyRetries times.
func NewSQLiteStore(dbPath string, busyRetries int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = busyRetries + 1
	retry.Retryable = isBusy

	store := &SQLiteStore{db: db, retry: retry}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_time ON candles(symbol, timestamp);
	`
	return utils.Retry(context.Background(), s.retry, func() error {
		_, err := s.db.Exec(schema)
		return err
	})
}

// isBusy reports whether err is a transient lock conflict.
func isBusy(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandles upserts the valid candles of symbol and returns how many were
// written. Invalid candles are skipped.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) (int, error) {
	valid := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Valid() {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	err := utils.Retry(ctx, s.retry, func() error {
		return s.saveTx(ctx, symbol, valid)
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	return len(valid), nil
}

func (s *SQLiteStore) saveTx(ctx context.Context, symbol string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCandles returns the candles of symbol between from and to inclusive in
// ascending order. A zero bound is open.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	query := `SELECT timestamp, open, high, low, close, volume FROM candles WHERE symbol = ?`
	args := []interface{}{symbol}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, to.UTC())
	}
	query += ` ORDER BY timestamp ASC`

	return utils.RetryWithResult(ctx, s.retry, func() ([]models.Candle, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query candles: %w", err)
		}
		defer rows.Close()

		var candles []models.Candle
		for rows.Next() {
			var c models.Candle
			if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
				return nil, fmt.Errorf("failed to scan candle: %w", err)
			}
			c.Timestamp = c.Timestamp.UTC()
			candles = append(candles, c)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating candles: %w", err)
		}
		return candles, nil
	})
}

// Candles implements CandleSource over the whole cached history.
func (s *SQLiteStore) Candles(ctx context.Context, symbol string) ([]models.Candle, error) {
	candles, err := s.GetCandles(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return nil, errors.NewDataError("sqlite", symbol, "query failed", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError("sqlite", symbol, "no cached candles", errors.ErrDataNotFound)
	}
	return candles, nil
}

// ListSymbols returns every cached symbol with its candle count.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]SymbolInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, COUNT(*) FROM candles GROUP BY symbol ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var out []SymbolInfo
	for rows.Next() {
		var info SymbolInfo
		if err := rows.Scan(&info.Symbol, &info.Candles); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSymbol removes the cached candles of symbol and returns how many
// rows were deleted.
func (s *SQLiteStore) DeleteSymbol(ctx context.Context, symbol string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candles WHERE symbol = ?`, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete candles: %w", err)
	}
	return res.RowsAffected()
}
