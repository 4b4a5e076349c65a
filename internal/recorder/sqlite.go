package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
	_ "modernc.org/sqlite"
)

const DBFileName = "ParticipantData.db"

const schema = `
CREATE TABLE IF NOT EXISTS trials (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT NOT NULL,
	participant_id    TEXT NOT NULL,
	recorded_at       TEXT NOT NULL,
	success_rate      REAL NOT NULL,
	error_rate        REAL NOT NULL,
	average_task_time REAL NOT NULL,
	pulling_accuracy  REAL NOT NULL
)`

// SQLite stores trials in a local database. Each process run gets its own
// session id so rows from different sittings can be told apart.
type SQLite struct {
	dir     string
	path    string
	session string
	db      *sql.DB
	log     *slog.Logger
}

func NewSQLite(dir string, logger *slog.Logger) *SQLite {
	return &SQLite{
		dir:     dir,
		path:    filepath.Join(dir, DBFileName),
		session: uuid.New().String(),
		log:     log.Or(logger).With("component", "recorder", "backend", "sqlite"),
	}
}

func (s *SQLite) Path() string    { return s.path }
func (s *SQLite) Session() string { return s.session }

func (s *SQLite) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("recorder: create %s: %w", s.dir, err)
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("recorder: open %s: %w", s.path, err)
	}
	for _, stmt := range []string{"PRAGMA busy_timeout=5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("recorder: init %s: %w", s.path, err)
		}
	}
	s.db = db
	s.log.Info("database ready", "path", s.path, "session", s.session)
	return nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLite) Append(r study.TrialRecord) error {
	if s.db == nil {
		return &WriteError{Path: s.path, Err: sql.ErrConnDone}
	}
	_, err := s.db.Exec(`INSERT INTO trials
		(session_id, participant_id, recorded_at, success_rate, error_rate, average_task_time, pulling_accuracy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.session, r.ParticipantID, r.Timestamp.Format(TimeLayout),
		r.SuccessRate, r.ErrorRate, r.AverageTaskTime, r.PullingAccuracy)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	s.log.Info("logged participant", "participant", r.ParticipantID)
	return nil
}

func (s *SQLite) NextParticipantID() string {
	if s.db == nil {
		return FirstParticipantID
	}
	var last string
	err := s.db.QueryRow(`SELECT participant_id FROM trials ORDER BY id DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return FirstParticipantID
	case err != nil:
		s.log.Error("failed to read participant id", "err", err)
		return FirstParticipantID
	}
	return NextID(last)
}

func (s *SQLite) Records() ([]study.TrialRecord, error) {
	if s.db == nil {
		return nil, sql.ErrConnDone
	}
	rows, err := s.db.Query(`SELECT participant_id, recorded_at, success_rate, error_rate, average_task_time, pulling_accuracy
		FROM trials ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []study.TrialRecord
	for rows.Next() {
		var (
			r  study.TrialRecord
			ts string
		)
		if err := rows.Scan(&r.ParticipantID, &ts, &r.SuccessRate, &r.ErrorRate, &r.AverageTaskTime, &r.PullingAccuracy); err != nil {
			return nil, err
		}
		r.Timestamp, err = time.ParseInLocation(TimeLayout, ts, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
