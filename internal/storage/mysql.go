package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	// mysql driver.
	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/seaquake/bitsync/internal/config"
)

// MySQL is for connecting and upserting data to mysql.
type MySQL struct {
	DB  *sql.DB
	Cfg *config.MySQL
}

var mysql MySQL

var mysqlTables = []string{
	`CREATE TABLE IF NOT EXISTS ohlcv_1h (
		asset VARCHAR(32) NOT NULL,
		ts DATETIME NOT NULL,
		open DECIMAL(32,12) NOT NULL,
		high DECIMAL(32,12) NOT NULL,
		low DECIMAL(32,12) NOT NULL,
		close DECIMAL(32,12) NOT NULL,
		volume DECIMAL(32,12) NOT NULL,
		PRIMARY KEY (asset, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS funding_1h (
		asset VARCHAR(32) NOT NULL,
		ts DATETIME NOT NULL,
		funding_rate DECIMAL(24,12) NOT NULL,
		PRIMARY KEY (asset, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS oi_1h (
		asset VARCHAR(32) NOT NULL,
		ts DATETIME NOT NULL,
		open_interest DECIMAL(32,3) NOT NULL,
		PRIMARY KEY (asset, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS collector_logs (
		id INT AUTO_INCREMENT PRIMARY KEY,
		execution_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		status VARCHAR(16) NOT NULL,
		message TEXT
	)`,
	"CREATE TABLE IF NOT EXISTS app_settings (`key` VARCHAR(191) PRIMARY KEY, `value` TEXT)",
}

// InitMySQL initializes mysql connection with configured values and creates
// the series tables if they do not exist yet.
func InitMySQL(cfg *config.MySQL) (*MySQL, error) {
	if mysql.DB == nil {
		dataSourceName := cfg.User + ":" + cfg.Password + cfg.URL + "/" + cfg.Schema + "?parseTime=true"
		db, err := sql.Open("mysql", dataSourceName)
		if err != nil {
			return nil, err
		}
		db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)

		ctx, cancel := reqCtx(context.Background(), cfg.ReqTimeoutSec)
		defer cancel()
		if err = db.PingContext(ctx); err != nil {
			return nil, err
		}
		m := MySQL{DB: db, Cfg: cfg}
		if err = m.ensureTables(); err != nil {
			return nil, err
		}
		mysql = m
	}
	return &mysql, nil
}

// reqCtx derives a per-request timeout context when one is configured.
func reqCtx(appCtx context.Context, timeoutSec int) (context.Context, context.CancelFunc) {
	if timeoutSec > 0 {
		return context.WithTimeout(appCtx, time.Duration(timeoutSec)*time.Second)
	}
	return context.WithCancel(appCtx)
}

func (m *MySQL) ensureTables() error {
	for _, q := range mysqlTables {
		ctx, cancel := reqCtx(context.Background(), m.Cfg.ReqTimeoutSec)
		_, err := m.DB.ExecContext(ctx, q)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertCandles batch upserts candle rows, idempotent on (asset, ts).
func (m *MySQL) UpsertCandles(appCtx context.Context, rows []Candle) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO ohlcv_1h (asset, ts, open, high, low, close, volume) VALUES ")
	args := make([]interface{}, 0, len(rows)*7)
	for i, row := range rows {
		if i != 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, row.Asset, row.Timestamp.UTC(), row.Open.String(), row.High.String(), row.Low.String(), row.Close.String(), row.Volume.String())
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE open = VALUES(open), high = VALUES(high), low = VALUES(low), close = VALUES(close), volume = VALUES(volume)")

	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

// UpsertFunding batch upserts funding rows, idempotent on (asset, ts).
func (m *MySQL) UpsertFunding(appCtx context.Context, rows []Funding) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO funding_1h (asset, ts, funding_rate) VALUES ")
	args := make([]interface{}, 0, len(rows)*3)
	for i, row := range rows {
		if i != 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, row.Asset, row.Timestamp.UTC(), row.Rate.String())
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE funding_rate = VALUES(funding_rate)")

	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

// UpsertOpenInterest batch upserts open interest rows, idempotent on (asset, ts).
func (m *MySQL) UpsertOpenInterest(appCtx context.Context, rows []OpenInterest) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO oi_1h (asset, ts, open_interest) VALUES ")
	args := make([]interface{}, 0, len(rows)*3)
	for i, row := range rows {
		if i != 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, row.Asset, row.Timestamp.UTC(), row.Value.String())
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE open_interest = VALUES(open_interest)")

	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

// LastTimestamp returns the max stored timestamp for the asset and series.
func (m *MySQL) LastTimestamp(appCtx context.Context, series Series, asset string) (time.Time, bool, error) {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	var ts sql.NullTime
	err := m.DB.QueryRowContext(ctx, "SELECT MAX(ts) FROM "+string(series)+" WHERE asset = ?", asset).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time.UTC(), true, nil
}

// LastOpenInterest returns the newest stored open interest sample.
func (m *MySQL) LastOpenInterest(appCtx context.Context, asset string) (OpenInterest, bool, error) {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	var (
		ts  time.Time
		val string
	)
	err := m.DB.QueryRowContext(ctx, "SELECT ts, open_interest FROM oi_1h WHERE asset = ? ORDER BY ts DESC LIMIT 1", asset).Scan(&ts, &val)
	if err == sql.ErrNoRows {
		return OpenInterest{}, false, nil
	}
	if err != nil {
		return OpenInterest{}, false, err
	}
	value, err := decimal.NewFromString(val)
	if err != nil {
		return OpenInterest{}, false, err
	}
	return OpenInterest{Asset: asset, Timestamp: ts.UTC(), Value: value}, true, nil
}

// SeriesTimestamps returns all stored timestamps for the asset and series
// in ascending order.
func (m *MySQL) SeriesTimestamps(appCtx context.Context, series Series, asset string) ([]time.Time, error) {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, "SELECT ts FROM "+string(series)+" WHERE asset = ? ORDER BY ts ASC", asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err = rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts.UTC())
	}
	return out, rows.Err()
}

// LogRun appends one run log entry.
func (m *MySQL) LogRun(appCtx context.Context, status, message string) error {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, "INSERT INTO collector_logs (status, message) VALUES (?, ?)", status, message)
	return err
}

// LastRun returns the most recent run log entry.
func (m *MySQL) LastRun(appCtx context.Context) (RunLogEntry, bool, error) {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	var entry RunLogEntry
	err := m.DB.QueryRowContext(ctx, "SELECT status, message, execution_time FROM collector_logs ORDER BY id DESC LIMIT 1").Scan(&entry.Status, &entry.Message, &entry.Timestamp)
	if err == sql.ErrNoRows {
		return RunLogEntry{}, false, nil
	}
	if err != nil {
		return RunLogEntry{}, false, err
	}
	entry.Timestamp = entry.Timestamp.UTC()
	return entry, true, nil
}

// GetSetting returns the value of an operator setting.
func (m *MySQL) GetSetting(appCtx context.Context, key string) (string, bool, error) {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()

	var value string
	err := m.DB.QueryRowContext(ctx, "SELECT `value` FROM app_settings WHERE `key` = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting stores an operator setting, overwriting any previous value.
func (m *MySQL) SetSetting(appCtx context.Context, key, value string) error {
	ctx, cancel := reqCtx(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, "INSERT INTO app_settings (`key`, `value`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)", key, value)
	return err
}

// Close releases the database connection.
func (m *MySQL) Close() error {
	if m.DB == nil {
		return nil
	}
	return m.DB.Close()
}
