// Package conversation holds the append-only chat log shown to the user.
package conversation

import (
	"sync"

	"site-creator/internal/domain"
)

// Log is an insertion-ordered sequence of turns. Append is the only mutator
// and Clear the only way to drop turns. Safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	turns []domain.ConversationTurn
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append adds a turn to the end of the log. The log does not interpret or
// truncate the text.
func (l *Log) Append(turn domain.ConversationTurn) {
	l.mu.Lock()
	l.turns = append(l.turns, turn)
	l.mu.Unlock()
}

// All returns a snapshot of every turn in insertion order.
func (l *Log) All() []domain.ConversationTurn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ConversationTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Clear drops every turn. Called when the session ends or a template resets
// the conversation.
func (l *Log) Clear() {
	l.mu.Lock()
	l.turns = nil
	l.mu.Unlock()
}
