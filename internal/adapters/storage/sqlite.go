package storage

// sqlite.go: diario local de escrituras.
//
// Estrategia:
//   - `transactions`: UNA fila por transacción enviada (handle único). Se crea
//     al enviar y se cierra con el status terminal o el error del poller.
//   - `settlements`: el outcome clasificado de cada settle, con la regla que
//     encontró el mensaje.
//   - Es solo auditoría: nunca se lee para reconstruir el estado de la sesión.
//   - Prune automático al arrancar: filas de más de 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,          -- UUID local
    handle       TEXT NOT NULL UNIQUE,
    kind         TEXT NOT NULL,             -- deposit / place / settle
    account      TEXT NOT NULL,
    detail       TEXT NOT NULL DEFAULT '',
    submitted_at TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'PENDING',
    error        TEXT NOT NULL DEFAULT '',
    finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS settlements (
    id            TEXT PRIMARY KEY,
    prediction_id INTEGER NOT NULL,
    outcome       TEXT NOT NULL,
    message       TEXT NOT NULL DEFAULT '',
    rule          TEXT NOT NULL DEFAULT '',
    handle        TEXT NOT NULL DEFAULT '',
    settled_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tx_submitted  ON transactions(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_settle_at     ON settlements(settled_at DESC);
CREATE INDEX IF NOT EXISTS idx_settle_pred   ON settlements(prediction_id);
`

const retention = 90 * 24 * time.Hour

// timeLayout tiene ancho fijo en UTC para que el orden de texto sea el orden temporal.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// RecordSubmitted inserta la transacción y devuelve su id local. Un handle
// repetido actualiza la fila existente y conserva su id.
func (j *SQLiteJournal) RecordSubmitted(ctx context.Context, tx domain.PendingTransaction, detail string) (string, error) {
	submitted := tx.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	status := tx.Status
	if status == "" {
		status = domain.TxStatusPending
	}

	id := uuid.NewString()
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO transactions (id, handle, kind, account, detail, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			kind   = excluded.kind,
			detail = excluded.detail,
			status = excluded.status
	`, id, string(tx.Handle), tx.Kind, tx.AccountID, detail, formatTime(submitted), string(status)); err != nil {
		return "", fmt.Errorf("storage.RecordSubmitted: %s: %w", tx.Handle, err)
	}

	if err := j.db.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE handle = ?`, string(tx.Handle),
	).Scan(&id); err != nil {
		return "", fmt.Errorf("storage.RecordSubmitted: read id: %w", err)
	}
	return id, nil
}

// RecordFinal cierra la transacción con su status terminal o el error.
func (j *SQLiteJournal) RecordFinal(ctx context.Context, handle domain.TxHandle, status domain.TxStatus, errMsg string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?, error = ?, finished_at = ?
		WHERE handle = ?
	`, string(status), errMsg, formatTime(time.Now()), string(handle))
	if err != nil {
		return fmt.Errorf("storage.RecordFinal: %s: %w", handle, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.RecordFinal: unknown handle %s", handle)
	}
	return nil
}

// RecordSettlement guarda el outcome clasificado de un settle.
func (j *SQLiteJournal) RecordSettlement(ctx context.Context, ev domain.SettlementEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO settlements (id, prediction_id, outcome, message, rule, handle, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), int64(ev.PredictionID), string(ev.Outcome), ev.Message, ev.Rule, string(ev.Handle), formatTime(at)); err != nil {
		return fmt.Errorf("storage.RecordSettlement: prediction %d: %w", ev.PredictionID, err)
	}
	return nil
}

// History devuelve las transacciones enviadas en [from, to], más recientes primero.
func (j *SQLiteJournal) History(ctx context.Context, from, to time.Time) ([]domain.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, handle, kind, account, detail, submitted_at, status, error, finished_at
		FROM transactions
		WHERE submitted_at BETWEEN ? AND ?
		ORDER BY submitted_at DESC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("storage.History: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			e                   domain.JournalEntry
			handle, status, sub string
			finished            sql.NullString
		)
		if err := rows.Scan(&e.ID, &handle, &e.Kind, &e.AccountID, &e.Detail, &sub, &status, &e.Error, &finished); err != nil {
			return nil, fmt.Errorf("storage.History: scan row: %w", err)
		}
		e.Handle = domain.TxHandle(handle)
		e.Status = domain.TxStatus(status)
		e.SubmittedAt = parseTime(sub)
		if finished.Valid {
			t := parseTime(finished.String)
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Settlements devuelve los settles registrados en [from, to], más recientes primero.
func (j *SQLiteJournal) Settlements(ctx context.Context, from, to time.Time) ([]domain.SettlementEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT prediction_id, outcome, message, rule, handle, settled_at
		FROM settlements
		WHERE settled_at BETWEEN ? AND ?
		ORDER BY settled_at DESC
	`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("storage.Settlements: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementEvent
	for rows.Next() {
		var (
			ev                  domain.SettlementEvent
			id                  int64
			outcome, handle, at string
		)
		if err := rows.Scan(&id, &outcome, &ev.Message, &ev.Rule, &handle, &at); err != nil {
			return nil, fmt.Errorf("storage.Settlements: scan row: %w", err)
		}
		ev.PredictionID = uint64(id)
		ev.Outcome = domain.Outcome(outcome)
		ev.Handle = domain.TxHandle(handle)
		ev.At = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina filas antiguas para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := formatTime(time.Now().Add(-retention))
	j.db.ExecContext(ctx, `DELETE FROM transactions WHERE submitted_at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM settlements WHERE settled_at < ?`, cutoff)
}
