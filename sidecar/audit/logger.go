package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDatabaseName is the audit database file created in the app data dir.
const DefaultDatabaseName = "sidecar.db"

// EventType represents the type of backend lifecycle event
type EventType string

const (
	EventLaunch       EventType = "launch"
	EventLaunchFailed EventType = "launch_failed"
	EventExited       EventType = "exited"
	EventTerminated   EventType = "terminated"
)

// Event represents a lifecycle event row in the database
type Event struct {
	ID         string `db:"id"`
	EventType  string `db:"event_type"`
	Timestamp  int64  `db:"timestamp"` // Unix milliseconds, UTC
	LaunchID   string `db:"launch_id"`
	PID        *int   `db:"pid"`  // Nullable for failed launches
	Port       *int   `db:"port"` // Only set on launch
	EntryPoint string `db:"entry_point"`
	Detail     string `db:"detail"`
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Logger persists backend lifecycle events to SQLite.
type Logger struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path, creating its directory.
func Open(path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database %s: %w", path, err)
	}
	// Events arrive from the supervisor and the shutdown path; one writer is enough.
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewLogger creates a new audit logger instance
func NewLogger(db *sqlx.DB) (*Logger, error) {
	if err := DBInit(db); err != nil {
		return nil, err
	}
	return &Logger{
		db: db,
	}, nil
}

// DBInit initializes the backend events table
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS backend_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		launch_id TEXT NOT NULL DEFAULT '',
		pid INTEGER,
		port INTEGER,
		entry_point TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_backend_events_timestamp ON backend_events(timestamp)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_backend_events_launch_id ON backend_events(launch_id)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_backend_events_event_type ON backend_events(event_type)`)
	return err
}

func newEvent(eventType EventType, launchID string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		EventType: string(eventType),
		Timestamp: time.Now().UTC().UnixMilli(),
		LaunchID:  launchID,
	}
}

func (l *Logger) insertEvent(event *Event) error {
	_, err := l.db.NamedExec(`
		INSERT INTO backend_events (
			id, event_type, timestamp, launch_id, pid, port, entry_point, detail
		) VALUES (
			:id, :event_type, :timestamp, :launch_id, :pid, :port, :entry_point, :detail
		)`, event)
	return err
}

// LogLaunch records a successful spawn.
func (l *Logger) LogLaunch(launchID string, pid, port int, entryPoint string) error {
	event := newEvent(EventLaunch, launchID)
	event.PID = &pid
	event.Port = &port
	event.EntryPoint = entryPoint
	return l.insertEvent(event)
}

// LogLaunchFailed records a launch request that did not produce a child.
func (l *Logger) LogLaunchFailed(reason string) error {
	event := newEvent(EventLaunchFailed, "")
	event.Detail = reason
	return l.insertEvent(event)
}

// LogExited records a child found dead when the next launch checked it.
func (l *Logger) LogExited(launchID string, pid int, status string) error {
	event := newEvent(EventExited, launchID)
	event.PID = &pid
	event.Detail = status
	return l.insertEvent(event)
}

// LogTerminated records a child killed by the shutdown guard.
func (l *Logger) LogTerminated(launchID string, pid int) error {
	event := newEvent(EventTerminated, launchID)
	event.PID = &pid
	return l.insertEvent(event)
}

// GetEventsByLaunchID retrieves the events of one launch, oldest first
func (l *Logger) GetEventsByLaunchID(launchID string) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events,
		"SELECT * FROM backend_events WHERE launch_id = $1 ORDER BY timestamp ASC, rowid ASC",
		launchID)
	return events, err
}

// GetEventsByType retrieves events of a specific type
func (l *Logger) GetEventsByType(eventType EventType, limit int) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events,
		"SELECT * FROM backend_events WHERE event_type = $1 ORDER BY timestamp DESC, rowid DESC LIMIT $2",
		string(eventType), limit)
	return events, err
}

// GetRecentEvents retrieves the most recent events
func (l *Logger) GetRecentEvents(limit int) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events,
		"SELECT * FROM backend_events ORDER BY timestamp DESC, rowid DESC LIMIT $1",
		limit)
	return events, err
}

// DeleteOldEvents deletes events older than the specified duration
func (l *Logger) DeleteOldEvents(olderThan time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-olderThan).UnixMilli()
	result, err := l.db.Exec("DELETE FROM backend_events WHERE timestamp < $1", threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
