package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
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
		interval TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, interval, timestamp)
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		confidence REAL NOT NULL,
		resolution TEXT NOT NULL,
		signals TEXT,
		unavailable TEXT,
		scores TEXT,
		reasoning TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		verdict TEXT NOT NULL,
		market_risk TEXT,
		size_scale REAL,
		stop_loss REAL,
		take_profit REAL,
		size_cap REAL,
		reason TEXT,
		violations TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (decision_id) REFERENCES decisions(id)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		decision_id TEXT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		stop_loss REAL,
		take_profit REAL,
		trailing_stop INTEGER DEFAULT 0,
		trailing_percent REAL,
		placed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		position_id TEXT,
		decision_id TEXT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		name TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles(symbol, interval, timestamp);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, closed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCandles upserts a batch of candles in one transaction.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, interval string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning candle tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing candle insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, interval, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("inserting candle: %w", err)
		}
	}
	return tx.Commit()
}

// GetCandles returns candles in [from, to], oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`, symbol, interval, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying candles: %w", err)
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scanning candle: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveDecision persists one decision with its signals serialized as JSON.
func (s *SQLiteStore) SaveDecision(ctx context.Context, d *models.Decision) error {
	signals, _ := json.Marshal(d.Signals)
	unavailable, _ := json.Marshal(d.Unavailable)
	scores, _ := json.Marshal(d.Scores)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, timestamp, symbol, action, confidence, resolution, signals, unavailable, scores, reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Timestamp.UTC(), d.Symbol, string(d.Action), d.Confidence, string(d.Resolution),
		string(signals), string(unavailable), string(scores), d.Reasoning)
	if err != nil {
		return fmt.Errorf("saving decision: %w", err)
	}
	return nil
}

// GetDecisions returns decisions matching the filter, newest first.
func (s *SQLiteStore) GetDecisions(ctx context.Context, filter DecisionFilter) ([]models.Decision, error) {
	query := `SELECT id, timestamp, symbol, action, confidence, resolution, signals, unavailable, scores, reasoning
		FROM decisions WHERE 1=1`
	var args []interface{}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		var d models.Decision
		var action, resolution, signals, unavailable, scores string
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.Symbol, &action, &d.Confidence, &resolution,
			&signals, &unavailable, &scores, &d.Reasoning); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		d.Action = models.Action(action)
		d.Resolution = models.Resolution(resolution)
		json.Unmarshal([]byte(signals), &d.Signals)
		json.Unmarshal([]byte(unavailable), &d.Unavailable)
		json.Unmarshal([]byte(scores), &d.Scores)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveVerdict persists one risk verdict.
func (s *SQLiteStore) SaveVerdict(ctx context.Context, v *models.RiskVerdict) error {
	violations, _ := json.Marshal(v.Violations)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts (decision_id, timestamp, verdict, market_risk, size_scale, stop_loss, take_profit, size_cap, reason, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.DecisionID, v.Timestamp.UTC(), string(v.Verdict), string(v.MarketRisk),
		v.SizeScale, v.StopLoss, v.TakeProfit, v.SizeCap, v.Reason, string(violations))
	if err != nil {
		return fmt.Errorf("saving verdict: %w", err)
	}
	return nil
}

// SaveOrder persists one simulated order.
func (s *SQLiteStore) SaveOrder(ctx context.Context, o *models.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, decision_id, symbol, side, quantity, price, stop_loss, take_profit, trailing_stop, trailing_percent, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.DecisionID, o.Symbol, string(o.Side), o.Quantity, o.Price,
		o.StopLoss, o.TakeProfit, boolToInt(o.TrailingStop), o.TrailingPercent, o.PlacedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving order: %w", err)
	}
	return nil
}

// SaveTrade persists one realized trade.
func (s *SQLiteStore) SaveTrade(ctx context.Context, t *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, position_id, decision_id, symbol, side, quantity, entry_price, exit_price, pnl, pnl_percent, exit_reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PositionID, t.DecisionID, t.Symbol, string(t.Side), t.Quantity,
		t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPercent, string(t.ExitReason),
		t.OpenedAt.UTC(), t.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving trade: %w", err)
	}
	return nil
}

// GetTrades returns trades matching the filter, oldest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := `SELECT id, position_id, decision_id, symbol, side, quantity, entry_price, exit_price, pnl, pnl_percent, exit_reason, opened_at, closed_at
		FROM trades WHERE 1=1`
	var args []interface{}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND closed_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND closed_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	query += " ORDER BY closed_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		var side, reason string
		if err := rows.Scan(&t.ID, &t.PositionID, &t.DecisionID, &t.Symbol, &side, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.PnLPercent, &reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = models.Side(side)
		t.ExitReason = models.ExitReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetCheckpoint returns the stored timestamp for the named checkpoint, or
// the zero time when none exists.
func (s *SQLiteStore) GetCheckpoint(ctx context.Context, name string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `SELECT timestamp FROM checkpoints WHERE name = ?`, name).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading checkpoint %s: %w", name, err)
	}
	return t, nil
}

// SetCheckpoint upserts the named checkpoint.
func (s *SQLiteStore) SetCheckpoint(ctx context.Context, name string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (name, timestamp, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET timestamp = excluded.timestamp, updated_at = CURRENT_TIMESTAMP`,
		name, t.UTC())
	if err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", name, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements DataStore
var _ DataStore = (*SQLiteStore)(nil)
