package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps sessions in the triage_sessions table.
type PostgresStore struct {
	db db
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore accepts a *pgxpool.Pool or anything with the same query
// methods.
func NewPostgresStore(db db) *PostgresStore {
	if db == nil {
		panic("sessions: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

const sessionColumns = `session_id, created_at, patient_name, status, condition_name, result_type`

func (s *PostgresStore) Create(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, errors.New("sessions: id is required")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO triage_sessions (session_id, status)
		VALUES ($1, $2)
		RETURNING `+sessionColumns, id, string(StatusActive))
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("sessions: create: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Ensure(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO triage_sessions (session_id, status)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING`, id, string(StatusActive))
	if err != nil {
		return fmt.Errorf("sessions: ensure: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM triage_sessions WHERE session_id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("sessions: get: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM triage_sessions
		ORDER BY created_at DESC
		LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sessions: list: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sessions: list scan: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: list: %w", err)
	}
	return out, nil
}

// Update keeps the stored value for every field u leaves nil.
func (s *PostgresStore) Update(ctx context.Context, id string, u Update) error {
	if u.Empty() {
		return nil
	}
	var status *string
	if u.Status != nil {
		v := string(*u.Status)
		status = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE triage_sessions SET
			patient_name   = COALESCE($2, patient_name),
			status         = COALESCE($3, status),
			condition_name = COALESCE($4, condition_name),
			result_type    = COALESCE($5, result_type),
			updated_at     = now()
		WHERE session_id = $1`, id, u.PatientName, status, u.ConditionName, u.ResultType)
	if err != nil {
		return fmt.Errorf("sessions: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, id string, result json.RawMessage) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE triage_sessions SET result_json = $2, updated_at = now()
		WHERE session_id = $1`, id, []byte(result))
	if err != nil {
		return fmt.Errorf("sessions: save result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (json.RawMessage, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT result_json FROM triage_sessions WHERE session_id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: get result: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

func (s *PostgresStore) DeleteInactive(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM triage_sessions WHERE status = $1`, string(StatusActive))
	if err != nil {
		return 0, fmt.Errorf("sessions: delete inactive: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM triage_sessions WHERE status = $1 AND created_at < $2`, string(StatusActive), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sessions: delete inactive before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess   Session
		status string
	)
	if err := row.Scan(&sess.ID, &sess.CreatedAt, &sess.PatientName, &status, &sess.ConditionName, &sess.ResultType); err != nil {
		return Session{}, err
	}
	sess.Status = Status(status)
	return sess, nil
}
