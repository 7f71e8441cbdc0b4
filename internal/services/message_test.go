package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
)

func TestSendRejectsEmptyMessage(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	conv := e.direct(t, "alice", "bob")
	b1 := e.connect(t, "bob", "b1")

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := e.pipeline.Send(context.Background(), SendInput{ConversationID: conv.ID, SenderID: "alice", Content: content})
		assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest), "content %q", content)
	}

	var count int64
	require.NoError(t, e.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, b1.Count(EventNewMessage))
}

func TestSendValidation(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	conv := e.direct(t, "alice", "bob")
	ctx := context.Background()

	_, err := e.pipeline.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: "alice", Content: strings.Repeat("x", 8001)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = e.pipeline.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: "alice", Attachment: "ftp://files/x"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = e.pipeline.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: "carol", Content: "let me in"})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	msg, err := e.pipeline.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: "alice", Attachment: "https://cdn.example.com/a.png"})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
	assert.Equal(t, "https://cdn.example.com/a.png", msg.Attachment)
}

func TestSendDeliversOnceToEveryRoomConnection(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	conv := e.direct(t, "alice", "bob")
	a1 := e.connect(t, "alice", "a1")
	a2 := e.connect(t, "alice", "a2")
	b1 := e.connect(t, "bob", "b1")

	msg, err := e.pipeline.Send(context.Background(), SendInput{
		ConversationID:  conv.ID,
		SenderID:        "alice",
		Content:         "hi",
		ClientMessageID: "tmp-1",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.ClientMessageID)
	assert.Equal(t, "tmp-1", *msg.ClientMessageID)
	assert.Equal(t, "alice", msg.Sender.Name)

	for _, c := range []interface{ Events(string) []interface{} }{a1, a2, b1} {
		got := c.Events(EventNewMessage)
		require.Len(t, got, 1)
		assert.Equal(t, msg.ID, got[0].(*models.Message).ID)
	}
}

func TestFetchReturnsNewestFirst(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	conv := e.direct(t, "alice", "bob")
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := e.pipeline.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: "alice", Content: string(rune('a' + i))})
		require.NoError(t, err)
	}

	msgs, err := e.pipeline.Fetch(ctx, conv.ID, "bob", FetchOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, int64(n-i), m.Seq)
		assert.Equal(t, string(rune('a'+n-1-i)), m.Content)
		assert.Equal(t, "alice", m.Sender.ID)
	}

	page, err := e.pipeline.Fetch(ctx, conv.ID, "bob", FetchOptions{Limit: 2, BeforeSeq: 4})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(2), page[1].Seq)
}

func TestFetchRequiresParticipant(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	conv := e.direct(t, "alice", "bob")

	_, err := e.pipeline.Fetch(context.Background(), conv.ID, "carol", FetchOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestConcurrentSendsKeepBroadcastOrder(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	conv := e.direct(t, "alice", "bob")
	b1 := e.connect(t, "bob", "b1")
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 0 {
				sender = "bob"
			}
			_, err := e.pipeline.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: sender, Content: "m"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got := b1.Events(EventNewMessage)
	require.Len(t, got, n)
	for i, ev := range got {
		assert.Equal(t, int64(i+1), ev.(*models.Message).Seq)
	}
}

func TestSendUpdatesConversationAndUnread(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	ctx := context.Background()
	group, err := e.directory.CreateGroup(ctx, "alice", []string{"bob", "carol"}, "Team", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := e.pipeline.Send(ctx, SendInput{ConversationID: group.ID, SenderID: "alice", Content: "ping"})
		require.NoError(t, err)
	}
	last, err := e.pipeline.Send(ctx, SendInput{ConversationID: group.ID, SenderID: "bob", Content: "pong"})
	require.NoError(t, err)

	var conv models.Conversation
	require.NoError(t, e.db.First(&conv, "id = ?", group.ID).Error)
	require.NotNil(t, conv.LastMessageID)
	assert.Equal(t, last.ID, *conv.LastMessageID)

	unread := map[string]int{}
	var rows []models.ConversationParticipant
	require.NoError(t, e.db.Where("conversation_id = ?", group.ID).Find(&rows).Error)
	for _, r := range rows {
		unread[r.UserID] = r.UnreadCount
	}
	assert.Equal(t, map[string]int{"alice": 1, "bob": 3, "carol": 4}, unread)
}
