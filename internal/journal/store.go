// Package journal is an optional durable audit trail of supervisor
// lifecycle transitions and spawn events, backed by sqlite3 and
// golang-migrate, following the teacher's internal/db schema-embedding and
// migration conventions. A Supervisor works perfectly well with
// Journal == nil; this package exists purely for post-mortem debugging of
// a crashed locality.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
	"github.com/roasbeef/rotorgo/internal/rotorlog"
)

var log = rotorlog.GetLogger("journal")

// Store is a sqlite-backed Journal. It satisfies
// internal/baselib/actor.Journal.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and migrates a sqlite database at dbPath,
// returning a Store ready to record transitions and spawns.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a transient, unmigrated-on-disk journal useful for
// tests and short-lived demos (cmd/rotorctl's scenarios use this).
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory journal: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate in-memory journal: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite migration driver: %w", err)
	}

	source, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("migrations", source, "sqlite", driver)
	if err != nil {
		return err
	}
	m.Log = migrationLogger{}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// migrationLogger adapts the package logger to migrate.Logger.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...interface{}) {
	log.Info(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

func (migrationLogger) Verbose() bool { return false }

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTransition persists one lifecycle state transition. Failures are
// logged, not propagated, since journaling is a best-effort side channel
// that must never itself become a reason an actor fails to shut down.
func (s *Store) RecordTransition(ctx context.Context, actorLabel string,
	from, to actor.ActorState, reason *actor.ExtendedError) {

	var code, reasonCtx string
	if reason != nil {
		code = string(reason.Code())
		reasonCtx = reason.Context()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_transitions
			(event_id, actor_label, from_state, to_state,
			 reason_code, reason_context)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), actorLabel, from.String(), to.String(),
		code, reasonCtx)
	if err != nil {
		log.ErrorS(ctx, "failed to record lifecycle transition",
			"err", err, "actor", actorLabel, "from", from.String(),
			"to", to.String())
	}
}

// RecordSpawn persists one child-creation event.
func (s *Store) RecordSpawn(ctx context.Context, parent, child string,
	policy actor.ChildPolicy) {

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spawn_events
			(event_id, parent_label, child_label, restart_policy,
			 max_attempts)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), parent, child, restartPolicyName(policy.Restart),
		policy.MaxAttempts)
	if err != nil {
		log.ErrorS(ctx, "failed to record spawn event",
			"err", err, "parent", parent, "child", child)
	}
}

func restartPolicyName(p actor.RestartPolicy) string {
	switch p {
	case actor.RestartNever:
		return "never"
	case actor.RestartAlways:
		return "always"
	case actor.RestartNormalOnly:
		return "normal_only"
	case actor.RestartFailOnly:
		return "fail_only"
	case actor.RestartAskActor:
		return "ask_actor"
	default:
		return "unknown"
	}
}
