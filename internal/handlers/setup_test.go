package handlers

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/suvankar11223/chatzi-sub000/internal/database"
	"github.com/suvankar11223/chatzi-sub000/internal/middleware"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime/realtimetest"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testIssuer struct{}

func (testIssuer) Issue(identity, sessionID string, _ time.Duration) (string, error) {
	return "lk-" + identity, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }

// testApp is the full service graph over an in-memory SQLite database.
type testApp struct {
	db     *gorm.DB
	tokens *utils.JWTVerifier
	users  *services.Users
	socket *SocketHandler
}

// SetupTestDB initializes an in-memory SQLite DB for testing
func SetupTestDB(t *testing.T) *gorm.DB {
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

func newTestApp(t *testing.T, userIDs ...string) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := SetupTestDB(t)
	for _, id := range userIDs {
		require.NoError(t, db.Create(&models.User{ID: id, Name: id, Email: id + "@example.com"}).Error)
	}

	tokens := utils.NewJWTVerifier("test-secret", time.Hour)
	hub := realtime.NewHub()
	participants := services.NewParticipants(db)
	membership := realtime.NewMembership(hub, participants)

	return &testApp{
		db:     db,
		tokens: tokens,
		users:  services.NewUsers(db, nil),
		socket: &SocketHandler{
			Hub:       hub,
			Gate:      realtime.NewGate(tokens),
			Rooms:     membership,
			Directory: services.NewDirectory(db, participants, hub, membership, nil),
			Messages:  services.NewPipeline(db, participants, hub, nil),
			Calls:     services.NewCallService(db, participants, hub, hub, testIssuer{}, time.Hour),
			Notifier:  services.NewNotifier(db, hub),
		},
	}
}

func (a *testApp) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := a.tokens.GenerateToken(userID, userID+"@example.com", userID)
	require.NoError(t, err)
	return tok
}

// connect performs an authenticated handshake for userID.
func (a *testApp) connect(t *testing.T, userID, connID string) (*realtimetest.Conn, *realtime.Session) {
	t.Helper()
	conn := realtimetest.NewConn(connID)
	u, err := url.Parse("/socket.io/?token=" + a.token(t, userID))
	require.NoError(t, err)
	sess, err := a.socket.Connect(conn, *u, http.Header{})
	require.NoError(t, err)
	return conn, sess
}

// router mounts the HTTP handlers the way main does.
func (a *testApp) router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandlerMiddleware())

	api := r.Group("/api")
	auth := &AuthHandler{Users: a.users, Tokens: a.tokens}
	api.POST("/auth/register", auth.Register)
	api.POST("/auth/login", auth.Login)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(a.tokens))

	users := &UserHandler{Users: a.users, Hub: a.socket.Hub}
	protected.GET("/users/me", users.GetProfile)
	protected.PATCH("/users/me", users.UpdateProfile)
	protected.GET("/users/contacts", users.GetContacts)
	protected.GET("/users/online", users.GetOnlineUsers)

	chat := &ChatHandler{Directory: a.socket.Directory, Messages: a.socket.Messages}
	protected.POST("/conversations", chat.CreateConversation)
	protected.GET("/conversations", chat.ListConversations)
	protected.GET("/conversations/:id", chat.GetConversation)
	protected.PATCH("/conversations/:id", chat.UpdateConversation)
	protected.GET("/conversations/:id/messages", chat.GetMessages)
	protected.POST("/conversations/:id/messages", chat.SendMessage)

	calls := &CallHandler{Calls: a.socket.Calls}
	protected.GET("/calls", calls.GetCallHistory)

	uploads := &UploadHandler{}
	protected.POST("/upload/avatar", uploads.UploadAvatar)
	return r
}
