package usecases

import "github.com/0xcro3dile/ragchat/internal/domain/entities"

// DefaultMemoryTokenLimit bounds the conversational memory sent with a query.
const DefaultMemoryTokenLimit = 3900

// TrimHistory keeps the newest messages whose estimated size fits in limit.
// Older messages are dropped first; the result keeps chronological order.
func TrimHistory(history []entities.ChatMessage, limit int) []entities.ChatMessage {
	if limit <= 0 {
		return nil
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := EstimateTokens(history[i].Content)
		if used+cost > limit {
			break
		}
		used += cost
		start = i
	}
	out := make([]entities.ChatMessage, len(history)-start)
	copy(out, history[start:])
	return out
}
