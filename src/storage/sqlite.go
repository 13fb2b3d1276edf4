package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	"signal-desk/src/helpers"
	"signal-desk/src/logger"
	"signal-desk/src/models"

	_ "modernc.org/sqlite"
)

// Persisted key names. The values are stored as strings, including the
// counters, to keep the kv table uniform.
const (
	keyUserStatus  = "bt_user_status"
	keySignalsUsed = "bt_signals_used"
	keyLastReset   = "bt_last_reset"
)

// -----------------------------------------------------------------------------

type SQLiteStateDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStateDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteStateDB, error) {
	return &SQLiteStateDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStateDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return &helpers.StorageError{SignalDeskError: helpers.SignalDeskError{
			Message: "sqlite open failed",
			Cause:   err,
		}}
	}

	if err := db.Ping(); err != nil {
		return &helpers.StorageError{SignalDeskError: helpers.SignalDeskError{
			Message: "sqlite ping failed",
			Cause:   err,
		}}
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStateDB) createTables() error {
	// State survives restarts, so tables are created in place, never dropped.
	query := `
		CREATE TABLE IF NOT EXISTS kv_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create kv_state: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			instrument TEXT,
			timeframe TEXT,
			direction TEXT,
			probability INTEGER,
			timestamp INTEGER,
			status TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create signals: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStateDB) getValue(key string) (string, bool, error) {
	var value string
	err := d.DB.QueryRow("SELECT value FROM kv_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *SQLiteStateDB) setValue(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// -----------------------------------------------------------------------------

// LoadEntitlement reads the three persisted keys. A missing key means no
// stored state; a malformed counter is reported as an error and the caller
// falls back to defaults.
func (d *SQLiteStateDB) LoadEntitlement() (models.MEntitlementState, bool, error) {
	var state models.MEntitlementState

	tier, ok, err := d.getValue(keyUserStatus)
	if err != nil || !ok {
		return state, false, err
	}

	usedRaw, ok, err := d.getValue(keySignalsUsed)
	if err != nil || !ok {
		return state, false, err
	}
	used, err := strconv.Atoi(usedRaw)
	if err != nil {
		return state, false, fmt.Errorf("malformed %s: %w", keySignalsUsed, err)
	}

	resetRaw, ok, err := d.getValue(keyLastReset)
	if err != nil || !ok {
		return state, false, err
	}
	lastReset, err := strconv.ParseInt(resetRaw, 10, 64)
	if err != nil {
		return state, false, fmt.Errorf("malformed %s: %w", keyLastReset, err)
	}

	state = models.MEntitlementState{
		Tier:        models.MTier(tier),
		SignalsUsed: used,
		LastReset:   lastReset,
	}
	return state, true, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStateDB) SaveEntitlement(state models.MEntitlementState) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := d.setValue(tx, keyUserStatus, string(state.Tier)); err != nil {
		return err
	}
	if err := d.setValue(tx, keySignalsUsed, strconv.Itoa(state.SignalsUsed)); err != nil {
		return err
	}
	if err := d.setValue(tx, keyLastReset, strconv.FormatInt(state.LastReset, 10)); err != nil {
		return err
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStateDB) SaveSignal(signal models.MSignal) error {
	_, err := d.DB.Exec(`
		INSERT INTO signals (id, instrument, timeframe, direction, probability, timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status
	`, signal.ID, signal.Instrument, signal.Timeframe, string(signal.Direction), signal.Probability, signal.Timestamp, string(signal.Status))
	return err
}

// -----------------------------------------------------------------------------

// LoadSignals returns the stored history, newest first.
func (d *SQLiteStateDB) LoadSignals() ([]models.MSignal, error) {
	rows, err := d.DB.Query(`
		SELECT id, instrument, timeframe, direction, probability, timestamp, status
		FROM signals
		ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []models.MSignal
	for rows.Next() {
		var s models.MSignal
		var direction, status string
		if err := rows.Scan(&s.ID, &s.Instrument, &s.Timeframe, &direction, &s.Probability, &s.Timestamp, &status); err != nil {
			return nil, err
		}
		s.Direction = models.MDirection(direction)
		s.Status = models.MSignalStatus(status)
		signals = append(signals, s)
	}

	return signals, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStateDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
