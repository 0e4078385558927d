package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// DBTX - общий интерфейс *sql.DB и *sql.Tx
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// PostgresStore - Store поверх Postgres (драйвер lib/pq)
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres открывает соединение и применяет схему
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if _, err := pq.ParseURL(dsn); err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error applying schema: %w", err)
	}
	return db, nil
}

const getCandidate = `-- name: GetCandidate :one
SELECT id, name, resume_text, job_description, match_score, status, interview_score, final_score, flags, created_at
FROM candidates WHERE id=$1
`

func (q *PostgresStore) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	row := q.db.QueryRowContext(ctx, getCandidate, id)
	var c Candidate
	var flags []byte
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.ResumeText,
		&c.JobDescription,
		&c.MatchScore,
		&c.Status,
		&c.InterviewScore,
		&c.FinalScore,
		&flags,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(flags, &c.Flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return &c, nil
}

const updateCandidateStatus = `-- name: UpdateCandidateStatus :execrows
UPDATE candidates SET status=$1 WHERE id=$2
`

func (q *PostgresStore) UpdateCandidateStatus(ctx context.Context, id, status string) error {
	res, err := q.db.ExecContext(ctx, updateCandidateStatus, status, id)
	return affected(res, err)
}

const updateCandidateInterview = `-- name: UpdateCandidateInterview :execrows
UPDATE candidates SET interview_score=$1, final_score=$2, status=$3 WHERE id=$4
`

func (q *PostgresStore) UpdateCandidateInterview(ctx context.Context, id string, interviewScore, finalScore float64, status string) error {
	res, err := q.db.ExecContext(ctx, updateCandidateInterview, interviewScore, finalScore, status, id)
	return affected(res, err)
}

const flagCandidate = `-- name: FlagCandidate :one
UPDATE candidates
SET flags = flags || jsonb_build_array(jsonb_build_object('violation', $1::text, 'timestamp', now()))
WHERE id=$2
RETURNING jsonb_array_length(flags)
`

func (q *PostgresStore) FlagCandidate(ctx context.Context, id, violation string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, flagCandidate, violation, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

const saveSession = `-- name: SaveSession :exec
INSERT INTO interview_sessions
    (id, candidate_id, role, resume_text, job_description, match_score, is_active, terminated, current_question, scores)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    role=EXCLUDED.role,
    is_active=EXCLUDED.is_active,
    terminated=EXCLUDED.terminated,
    current_question=EXCLUDED.current_question,
    scores=EXCLUDED.scores
`

func (q *PostgresStore) SaveSession(ctx context.Context, s *Session) error {
	scores, err := json.Marshal(nonNilScores(s.Scores))
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	_, err = q.db.ExecContext(ctx, saveSession,
		s.ID,
		s.CandidateID,
		s.Role,
		s.ResumeText,
		s.JobDescription,
		s.MatchScore,
		s.Active,
		s.Terminated,
		s.CurrentQuestion,
		scores,
	)
	return err
}

const sessionColumns = `id, candidate_id, role, resume_text, job_description, match_score, is_active, terminated, current_question, scores, created_at`

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + ` FROM interview_sessions WHERE id=$1
`

func (q *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	return scanSession(q.db.QueryRowContext(ctx, getSession, id))
}

const activeSessionByCandidate = `-- name: ActiveSessionByCandidate :one
SELECT ` + sessionColumns + ` FROM interview_sessions
WHERE candidate_id=$1 AND is_active
ORDER BY created_at DESC
LIMIT 1
`

func (q *PostgresStore) ActiveSessionByCandidate(ctx context.Context, candidateID string) (*Session, error) {
	return scanSession(q.db.QueryRowContext(ctx, activeSessionByCandidate, candidateID))
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var scores []byte
	err := row.Scan(
		&s.ID,
		&s.CandidateID,
		&s.Role,
		&s.ResumeText,
		&s.JobDescription,
		&s.MatchScore,
		&s.Active,
		&s.Terminated,
		&s.CurrentQuestion,
		&scores,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &s.Scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return &s, nil
}

const logMessage = `-- name: LogMessage :exec
INSERT INTO interview_messages (session_id, role, content) VALUES ($1, $2, $3)
`

func (q *PostgresStore) LogMessage(ctx context.Context, m Message) error {
	_, err := q.db.ExecContext(ctx, logMessage, m.SessionID, m.Role, m.Content)
	return err
}

const sessionMessages = `-- name: SessionMessages :many
SELECT session_id, role, content, created_at FROM interview_messages
WHERE session_id=$1 ORDER BY created_at ASC, id ASC
`

func (q *PostgresStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, sessionMessages, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		var i Message
		if err := rows.Scan(
			&i.SessionID,
			&i.Role,
			&i.Content,
			&i.Timestamp,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNilScores(s []QuestionScore) []QuestionScore {
	if s == nil {
		return []QuestionScore{}
	}
	return s
}
