package coupon

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fileLoader implements Loader for coupon files on the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based coupon loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "coupon-loader").Logger(),
	}
}

// Load reads a coupon file. Files ending in .gz are decompressed.
func (l *fileLoader) Load(ctx context.Context, filePath string) (*Set, error) {
	l.logger.Info().Str("file", filePath).Msg("loading coupon file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open coupon file")
		return nil, fmt.Errorf("failed to open coupon file %s: %w", filePath, err)
	}
	defer file.Close()

	set, err := readCoupons(ctx, file, filePath, l.logger)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("file", filePath).
		Int("coupons_loaded", set.Size()).
		Int("rows_skipped", set.Skipped).
		Msg("coupon file loaded successfully")

	return set, nil
}

// readCoupons parses CSV rows from r, transparently un-gzipping when name
// ends in .gz. Malformed rows are logged and counted, not fatal.
func readCoupons(ctx context.Context, r io.Reader, name string, logger zerolog.Logger) (*Set, error) {
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			logger.Error().Err(err).Str("file", name).Msg("failed to create gzip reader")
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
		}
		defer gz.Close()
		r = gz
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	set := NewSet(1024)
	row := 0
	for {
		if row%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				logger.Warn().Str("file", name).Msg("coupon loading cancelled")
				return nil, err
			}
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn().Err(err).Str("file", name).Int("row", row).Msg("skipping malformed row")
				set.Skipped++
				continue
			}
			return nil, fmt.Errorf("error reading coupon file %s: %w", name, err)
		}

		if row == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "code") {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		c, err := parseRecord(record)
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Int("row", row).Msg("skipping malformed row")
			set.Skipped++
			continue
		}
		if set.Add(c) {
			logger.Debug().Str("coupon_code", c.Code).Int("row", row).Msg("duplicate code, later row wins")
		}
	}

	return set, nil
}

func parseRecord(record []string) (model.Coupon, error) {
	if len(record) < 5 || len(record) > 6 {
		return model.Coupon{}, fmt.Errorf("expected 5 or 6 fields, got %d", len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	value, err := decimal.NewFromString(record[2])
	if err != nil {
		return model.Coupon{}, fmt.Errorf("invalid value %q: %w", record[2], err)
	}

	startsAt, err := parseTime(record[3], false)
	if err != nil {
		return model.Coupon{}, fmt.Errorf("invalid starts_at: %w", err)
	}
	endsAt, err := parseTime(record[4], true)
	if err != nil {
		return model.Coupon{}, fmt.Errorf("invalid ends_at: %w", err)
	}

	active := true
	if len(record) == 6 && record[5] != "" {
		active, err = strconv.ParseBool(record[5])
		if err != nil {
			return model.Coupon{}, fmt.Errorf("invalid active flag %q: %w", record[5], err)
		}
	}

	return model.Coupon{
		Code: strings.ToUpper(record[0]),
		Discount: model.Discount{
			Kind:  model.DiscountKind(strings.ToUpper(record[1])),
			Value: value,
		},
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Active:   active,
	}, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare end date covers the
// whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}
