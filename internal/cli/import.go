package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import OHLCV candles from a CSV file into the store",
		Long: `Load candle history from a CSV file. The expected columns are

  timestamp,open,high,low,close,volume

with the timestamp in RFC 3339 or as a unix epoch in seconds or
milliseconds. A header row is detected and skipped. Existing candles
for the same symbol, interval and timestamp are overwritten.`,
		Example: `  agentrader import btc_1h.csv
  agentrader import eth.csv --symbol ETHUSDT --interval 4h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, _ := cmd.Flags().GetString("symbol")
			interval, _ := cmd.Flags().GetString("interval")
			if symbol == "" {
				symbol = app.Config.Engine.Symbol
			}
			if interval == "" {
				interval = app.Config.Engine.Interval
			}

			candles, err := readCandlesCSV(args[0])
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return fmt.Errorf("%s contains no candles", args[0])
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			defer dataStore.Close()

			if err := dataStore.SaveCandles(cmd.Context(), symbol, interval, candles); err != nil {
				return fmt.Errorf("saving candles: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d candles for %s %s (%s to %s)\n",
				len(candles), symbol, interval,
				candles[0].Timestamp.Format("2006-01-02"),
				candles[len(candles)-1].Timestamp.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "symbol to store the candles under (default: configured symbol)")
	cmd.Flags().String("interval", "", "candle interval (default: configured interval)")

	return cmd
}

func readCandlesCSV(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	var candles []models.Candle
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		line++
		if len(record) < 6 {
			return nil, fmt.Errorf("%s line %d: expected 6 columns, got %d", path, line, len(record))
		}
		if line == 1 && !isNumeric(record[1]) {
			// header row
			continue
		}

		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %d: %w", path, line, i+2, err)
			}
		}

		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Millisecond epochs are 13 digits until the year 33658.
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
