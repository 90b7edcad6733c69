package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// ChatUseCase runs a chat turn inside a user's conversation: it records the
// user message, answers through the query engine and records the reply.
type ChatUseCase struct {
	query     *QueryUseCase
	assembler *Assembler
	convs     ports.ConversationRepository
	messages  ports.MessageRepository
}

// NewChatUseCase creates a ChatUseCase.
func NewChatUseCase(
	query *QueryUseCase,
	assembler *Assembler,
	convs ports.ConversationRepository,
	messages ports.MessageRepository,
) *ChatUseCase {
	return &ChatUseCase{query: query, assembler: assembler, convs: convs, messages: messages}
}

// CreateConversation opens a new conversation for userID.
func (uc *ChatUseCase) CreateConversation(ctx context.Context, userID, title string) (*entities.Conversation, error) {
	conv := &entities.Conversation{UserID: userID, Title: strings.TrimSpace(title)}
	if err := uc.convs.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// Conversations lists the conversations of userID, newest first.
func (uc *ChatUseCase) Conversations(ctx context.Context, userID string) ([]entities.Conversation, error) {
	return uc.convs.ListByUser(ctx, userID)
}

// History lists the messages of a conversation owned by userID, oldest first.
func (uc *ChatUseCase) History(ctx context.Context, userID, conversationID string) ([]entities.Message, error) {
	if _, err := uc.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return uc.messages.ListByConversation(ctx, conversationID)
}

// Reply answers synchronously and records both sides of the turn.
func (uc *ChatUseCase) Reply(ctx context.Context, userID, conversationID, message string) (*entities.ChatResponse, error) {
	req, err := uc.begin(ctx, userID, conversationID, message)
	if err != nil {
		return nil, err
	}

	resp, err := uc.query.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := uc.messages.Append(ctx, &entities.Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           entities.RoleAssistant,
		Content:        resp.Answer,
	}); err != nil {
		return nil, fmt.Errorf("saving assistant message: %w", err)
	}
	return resp, nil
}

// StreamReply answers as a stream of events. The assistant message is
// recorded once the stream completes. Errors before streaming starts are
// returned directly; later failures arrive as an EventError.
func (uc *ChatUseCase) StreamReply(ctx context.Context, userID, conversationID, message string) (<-chan StreamEvent, error) {
	req, err := uc.begin(ctx, userID, conversationID, message)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := uc.query.Stream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	persist := func(ctx context.Context, content string) error {
		return uc.messages.Append(ctx, &entities.Message{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           entities.RoleAssistant,
			Content:        content,
		})
	}
	return uc.assembler.Assemble(streamCtx, stream, cancel, persist), nil
}

// begin validates the turn, loads the memory and records the user message.
func (uc *ChatUseCase) begin(ctx context.Context, userID, conversationID, message string) (*entities.ChatRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", entities.ErrValidation)
	}
	if _, err := uc.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	previous, err := uc.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	history := make([]entities.ChatMessage, 0, len(previous))
	for _, m := range previous {
		history = append(history, entities.ChatMessage{Role: m.Role, Content: m.Content})
	}

	if err := uc.messages.Append(ctx, &entities.Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           entities.RoleUser,
		Content:        message,
	}); err != nil {
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	return &entities.ChatRequest{Query: message, History: history}, nil
}

// ownedConversation hides other users' conversations behind ErrNotFound.
func (uc *ChatUseCase) ownedConversation(ctx context.Context, userID, conversationID string) (*entities.Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", entities.ErrValidation)
	}
	conv, err := uc.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, entities.ErrNotFound)
	}
	return conv, nil
}
