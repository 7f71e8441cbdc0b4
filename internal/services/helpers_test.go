package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/suvankar11223/chatzi-sub000/internal/database"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime/realtimetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a private in-memory SQLite database. A single
// connection keeps the database alive and serializes writers the way
// postgres row locks would.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open("file::memory:"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		u := models.User{ID: id, Name: id, Email: id + "@example.com"}
		require.NoError(t, db.Create(&u).Error)
	}
}

// env wires the services against one hub, like main does.
type env struct {
	db           *gorm.DB
	hub          *realtime.Hub
	membership   *realtime.Membership
	participants *Participants
	directory    *Directory
	pipeline     *Pipeline
	notifier     *Notifier
}

func newEnv(t *testing.T, users ...string) *env {
	t.Helper()
	db := setupTestDB(t)
	createUsers(t, db, users...)

	hub := realtime.NewHub()
	participants := NewParticipants(db)
	membership := realtime.NewMembership(hub, participants)
	return &env{
		db:           db,
		hub:          hub,
		membership:   membership,
		participants: participants,
		directory:    NewDirectory(db, participants, hub, membership, nil),
		pipeline:     NewPipeline(db, participants, hub, nil),
		notifier:     NewNotifier(db, hub),
	}
}

// connect registers a device and runs the connect-time room sweep.
func (e *env) connect(t *testing.T, userID, connID string) *realtimetest.Conn {
	t.Helper()
	conn := realtimetest.NewConn(connID)
	e.hub.Register(userID, conn)
	_, err := e.membership.Sweep(context.Background(), connID, userID)
	require.NoError(t, err)
	return conn
}

func (e *env) direct(t *testing.T, a, b string) *models.Conversation {
	t.Helper()
	conv, _, err := e.directory.GetOrCreateDirect(context.Background(), a, b)
	require.NoError(t, err)
	return conv
}

// clock is a manually advanced time source.
type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
