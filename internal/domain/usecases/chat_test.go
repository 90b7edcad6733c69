package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

func newTestChat(llm *mockLLM, results []entities.QueryResult) (*ChatUseCase, *memoryConversations, *memoryMessages) {
	store := newMockVectorStore()
	store.results = results
	query := NewQueryUseCase(&mockEmbedder{}, store, llm, ChatConfig{})
	convs := newMemoryConversations()
	msgs := &memoryMessages{}
	return NewChatUseCase(query, NewAssembler(AssemblerConfig{}), convs, msgs), convs, msgs
}

func TestChatUseCase_StreamReplyPersistsBothTurns(t *testing.T) {
	llm := &mockLLM{tokens: []string{"Revenue grew ", "(source : report.pdf)", " by 12%."}}
	uc, _, msgs := newTestChat(llm, []entities.QueryResult{hit("report.pdf", "revenue grew by 12%", 0.91)})
	ctx := context.Background()

	conv, err := uc.CreateConversation(ctx, "u1", "Q3")
	require.NoError(t, err)

	events, err := uc.StreamReply(ctx, "u1", conv.ID, "How did revenue change?")
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, "Revenue grew by 12%. (source : report.pdf - 91.0%)", got.text)
	require.Len(t, got.sources, 1)
	assert.Equal(t, "report.pdf", got.sources[0].FileName)
	assert.Greater(t, got.sources[0].Score, 0.5)

	history, err := uc.History(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.RoleUser, history[0].Role)
	assert.Equal(t, "How did revenue change?", history[0].Content)
	assert.Equal(t, entities.RoleAssistant, history[1].Role)
	assert.Equal(t, got.text, history[1].Content)
	assert.False(t, history[1].CreatedAt.Before(history[0].CreatedAt))
	assert.Len(t, msgs.all(), 2)
}

func TestChatUseCase_HistoryFedIntoMemory(t *testing.T) {
	llm := &mockLLM{response: "second"}
	uc, _, _ := newTestChat(llm, nil)
	ctx := context.Background()
	conv, _ := uc.CreateConversation(ctx, "u1", "")

	_, err := uc.Reply(ctx, "u1", conv.ID, "first question")
	require.NoError(t, err)
	_, err = uc.Reply(ctx, "u1", conv.ID, "second question")
	require.NoError(t, err)

	// system, user, assistant, user
	require.Len(t, llm.lastMsgs, 4)
	assert.Equal(t, "first question", llm.lastMsgs[1].Content)
	assert.Equal(t, "second", llm.lastMsgs[2].Content)
	assert.Equal(t, "second question", llm.lastMsgs[3].Content)
}

func TestChatUseCase_ForeignConversationIsNotFound(t *testing.T) {
	uc, _, msgs := newTestChat(&mockLLM{}, nil)
	ctx := context.Background()
	conv, _ := uc.CreateConversation(ctx, "owner", "")

	_, err := uc.StreamReply(ctx, "intruder", conv.ID, "hello")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	_, err = uc.History(ctx, "intruder", conv.ID)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	assert.Empty(t, msgs.all())
}

func TestChatUseCase_Validation(t *testing.T) {
	uc, _, _ := newTestChat(&mockLLM{}, nil)
	ctx := context.Background()
	conv, _ := uc.CreateConversation(ctx, "u1", "")

	_, err := uc.StreamReply(ctx, "u1", conv.ID, "  ")
	assert.True(t, errors.Is(err, entities.ErrValidation))
	_, err = uc.StreamReply(ctx, "u1", "", "hi")
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestChatUseCase_StreamErrorKeepsUserMessageOnly(t *testing.T) {
	llm := &mockLLM{tokens: []string{"part"}, streamErr: errors.New("model overloaded")}
	uc, _, msgs := newTestChat(llm, nil)
	ctx := context.Background()
	conv, _ := uc.CreateConversation(ctx, "u1", "")

	events, err := uc.StreamReply(ctx, "u1", conv.ID, "hi")
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got.errs, 1)
	all := msgs.all()
	require.Len(t, all, 1)
	assert.Equal(t, entities.RoleUser, all[0].Role)
}

func TestChatUseCase_ConversationsNewestFirst(t *testing.T) {
	uc, _, _ := newTestChat(&mockLLM{}, nil)
	ctx := context.Background()
	first, _ := uc.CreateConversation(ctx, "u1", "first")
	time.Sleep(2 * time.Millisecond)
	second, _ := uc.CreateConversation(ctx, "u1", "second")
	_, _ = uc.CreateConversation(ctx, "u2", "other")

	list, err := uc.Conversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
