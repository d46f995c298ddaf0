package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/microwire-quality/internal/model"
)

func TestChatRepoAppendMessageCommits(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChatRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_messages").WithArgs(uint64(3), model.ChatRoleUser, "hi").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec("UPDATE chat_sessions SET updated_at").WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := &model.ChatMessage{SessionID: 3, Role: model.ChatRoleUser, Content: "hi"}
	require.NoError(t, repo.AppendMessage(context.Background(), m))
	assert.Equal(t, uint64(12), m.ID)
}

func TestChatRepoAppendMessageRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChatRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.AppendMessage(context.Background(), &model.ChatMessage{SessionID: 3, Role: model.ChatRoleUser, Content: "hi"})
	assert.EqualError(t, err, "disk full")
}

func TestChatRepoRecentMessagesChronological(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChatRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM chat_messages WHERE session_id = (.+) LIMIT").WithArgs(uint64(3), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
			AddRow(9, 3, model.ChatRoleAssistant, "second", now).
			AddRow(8, 3, model.ChatRoleUser, "first", now))

	msgs, err := repo.RecentMessages(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestChatRepoGetSessionOwnership(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChatRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM chat_sessions WHERE id =").WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
			AddRow(1, 2, "t", now, now))

	_, err := repo.GetSession(context.Background(), 1, 5)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestQuestionRepoAnswerClosed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewQuestionRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM questions WHERE id =").WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "content", "answer", "status", "created_at", "updated_at"}).
			AddRow(4, 1, "t", "c", "", model.QuestionClosed, now, now))

	assert.ErrorIs(t, repo.Answer(context.Background(), 4, "late"), ErrConflict)
}

func TestDeviceRepoHeartbeat(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDeviceRepo(db)
	at := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE devices SET status = (.+), last_seen_at").
		WithArgs(model.DeviceOnline, at, uint64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Heartbeat(context.Background(), 6, model.DeviceOnline, at))
}
