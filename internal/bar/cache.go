package bar

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"backtest-go/internal/marketdata"
)

const cacheTimeLayout = "2006-01-02T15:04:05"

var cacheHeader = []string{
	"market", "bucket", "count",
	"price_mean", "price_std", "price_min", "price_p25", "price_p50", "price_p75", "price_max",
	"amount_mean", "amount_std", "amount_min", "amount_p25", "amount_p50", "amount_p75", "amount_max",
	"total_mean", "total_std", "total_min", "total_p25", "total_p50", "total_p75", "total_max",
	"side_mean", "side_std", "side_min", "side_p25", "side_p50", "side_p75", "side_max",
}

// CacheName returns the canonical file name for a fetched window, keyed by
// market and the ISO-8601 window bounds.
func CacheName(market string, start, end time.Time) string {
	return fmt.Sprintf("bars_%s_%s_%s.csv",
		market, start.UTC().Format(cacheTimeLayout), end.UTC().Format(cacheTimeLayout))
}

// WriteCache persists a bar sequence as CSV under dir, returning the file
// path written.
func WriteCache(dir, market string, start, end time.Time, bars []marketdata.Bar) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(dir, CacheName(market, start, end))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create cache file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(cacheHeader); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, b := range bars {
		record := []string{b.Market, b.Bucket.UTC().Format(time.RFC3339), strconv.Itoa(b.Count())}
		for _, s := range []marketdata.Stat{b.Price, b.Amount, b.Total, b.Side} {
			record = append(record, formatStat(s)...)
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("write bar: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush cache: %w", err)
	}
	return path, nil
}

// ReadCache loads a bar sequence previously written by WriteCache.
func ReadCache(path string) ([]marketdata.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("cache %s is empty", path)
	}

	bars := make([]marketdata.Bar, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(cacheHeader) {
			return nil, fmt.Errorf("cache row has %d fields, want %d", len(record), len(cacheHeader))
		}
		bucket, err := time.Parse(time.RFC3339, record[1])
		if err != nil {
			return nil, fmt.Errorf("parse bucket %q: %w", record[1], err)
		}
		count, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("parse count %q: %w", record[2], err)
		}
		b := marketdata.Bar{Market: record[0], Bucket: bucket}
		fields := []*marketdata.Stat{&b.Price, &b.Amount, &b.Total, &b.Side}
		col := 3
		for _, field := range fields {
			s, err := parseStat(record[col : col+7])
			if err != nil {
				return nil, err
			}
			s.Count = count
			*field = s
			col += 7
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func formatStat(s marketdata.Stat) []string {
	values := []float64{s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func parseStat(fields []string) (marketdata.Stat, error) {
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return marketdata.Stat{}, fmt.Errorf("parse stat %q: %w", field, err)
		}
		values[i] = v
	}
	return marketdata.Stat{
		Mean: values[0], Std: values[1], Min: values[2],
		P25: values[3], P50: values[4], P75: values[5], Max: values[6],
	}, nil
}
