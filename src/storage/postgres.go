package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	"signal-desk/src/helpers"
	"signal-desk/src/logger"
	"signal-desk/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresStateDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStateDB(cfg *models.MConfig, log *logger.Logger) (*PostgresStateDB, error) {
	return &PostgresStateDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStateDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return &helpers.StorageError{SignalDeskError: helpers.SignalDeskError{
			Message: "postgres open failed",
			Cause:   err,
		}}
	}

	if err := db.Ping(); err != nil {
		return &helpers.StorageError{SignalDeskError: helpers.SignalDeskError{
			Message: "postgres ping failed",
			Cause:   err,
		}}
	}

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresStateDB) createTables() error {
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
			timestamp BIGINT,
			status TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create signals: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStateDB) getValue(key string) (string, bool, error) {
	var value string
	err := d.DB.QueryRow("SELECT value FROM kv_state WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *PostgresStateDB) setValue(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO kv_state (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresStateDB) LoadEntitlement() (models.MEntitlementState, bool, error) {
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

func (d *PostgresStateDB) SaveEntitlement(state models.MEntitlementState) error {
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

func (d *PostgresStateDB) SaveSignal(signal models.MSignal) error {
	_, err := d.DB.Exec(`
		INSERT INTO signals (id, instrument, timeframe, direction, probability, timestamp, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status
	`, signal.ID, signal.Instrument, signal.Timeframe, string(signal.Direction), signal.Probability, signal.Timestamp, string(signal.Status))
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresStateDB) LoadSignals() ([]models.MSignal, error) {
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

func (d *PostgresStateDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
