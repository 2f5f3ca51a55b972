// Package store provides candle sources: CSV and JSON files and a local
// SQLite candle cache.
package store

import (
	"context"
	"path/filepath"
	"strings"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// CandleSource supplies the daily candles of one symbol in ascending order.
type CandleSource interface {
	Candles(ctx context.Context, symbol string) ([]models.Candle, error)
}

// FileSource reads candles from a CSV or JSON file. The symbol is only used
// for error reporting.
type FileSource struct {
	Path string
}

// Candles implements CandleSource.
func (f FileSource) Candles(ctx context.Context, symbol string) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candles, err := LoadFile(f.Path)
	if err != nil {
		return nil, errors.NewDataError(f.Path, symbol, "load failed", err)
	}
	return candles, nil
}

// LoadFile dispatches on the file extension: .json is read as JSON and
// everything else as CSV.
func LoadFile(path string) ([]models.Candle, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	default:
		return LoadCSV(path)
	}
}

// SymbolFromPath derives a symbol from a file name: data/acme.csv -> ACME.
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}
