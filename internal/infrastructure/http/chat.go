package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/usecases"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// conversationFor returns the requested conversation ID, opening a new
// conversation titled after the message when none is given.
func (s *Server) conversationFor(c echo.Context, req chatRequest) (string, error) {
	if req.ConversationID != "" {
		return req.ConversationID, nil
	}
	title := strings.TrimSpace(req.Message)
	if r := []rune(title); len(r) > 60 {
		title = string(r[:60])
	}
	conv, err := s.deps.Chat.CreateConversation(c.Request().Context(), currentUser(c).ID, title)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// handleChatStream answers as server-sent events: token frames
// {"content": ...}, then optionally {"type":"sources"}, then {"type":"done"}.
func (s *Server) handleChatStream(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	convID, err := s.conversationFor(c, req)
	if err != nil {
		return err
	}

	events, err := s.deps.Chat.StreamReply(c.Request().Context(), currentUser(c).ID, convID, req.Message)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.Header().Set("X-Conversation-ID", convID)
	res.WriteHeader(http.StatusOK)

	for ev := range events {
		var frame any
		switch ev.Type {
		case usecases.EventToken:
			frame = map[string]string{"content": ev.Content}
		case usecases.EventSources:
			frame = map[string]any{"type": "sources", "data": ev.Sources}
		case usecases.EventError:
			frame = map[string]string{"type": "error", "error": ev.Err}
		case usecases.EventDone:
			frame = map[string]string{"type": "done"}
		default:
			continue
		}
		if err := writeSSE(res, frame); err != nil {
			// Client went away; the request context cancels the stream.
			return nil
		}
	}
	return nil
}

func writeSSE(res *echo.Response, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

type sourceNode struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

func (s *Server) handleChatRequest(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	convID, err := s.conversationFor(c, req)
	if err != nil {
		return err
	}

	resp, err := s.deps.Chat.Reply(c.Request().Context(), currentUser(c).ID, convID, req.Message)
	if err != nil {
		return err
	}
	nodes := make([]sourceNode, 0, len(resp.Sources))
	for _, r := range resp.Sources {
		nodes = append(nodes, sourceNode{Text: r.Chunk.Content, Metadata: r.Chunk.Metadata, Score: r.Score})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"response":        resp.Answer,
		"source_nodes":    nodes,
		"conversation_id": convID,
	})
}

type messageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Server) handleHistory(c echo.Context) error {
	msgs, err := s.deps.Chat.History(c.Request().Context(), currentUser(c).ID, c.QueryParam("conversation_id"))
	if err != nil {
		return err
	}
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{ID: m.ID, ConversationID: m.ConversationID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

type conversationView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func newConversationView(conv entities.Conversation) conversationView {
	return conversationView{ID: conv.ID, Title: conv.Title, CreatedAt: conv.CreatedAt}
}

func (s *Server) handleCreateConversation(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	conv, err := s.deps.Chat.CreateConversation(c.Request().Context(), currentUser(c).ID, req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newConversationView(*conv))
}

func (s *Server) handleListConversations(c echo.Context) error {
	convs, err := s.deps.Chat.Conversations(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	out := make([]conversationView, 0, len(convs))
	for _, conv := range convs {
		out = append(out, newConversationView(conv))
	}
	return c.JSON(http.StatusOK, out)
}
