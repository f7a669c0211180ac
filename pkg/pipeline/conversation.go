package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// maxTurns bounds how much history a conversation carries into prompts.
const maxTurns = 20

// conversation holds the per-conversation state the pipeline needs: prior
// turns for follow-up questions and the last validated query awaiting
// approval. The mutex serializes work within one conversation so turns are
// processed in submission order; conversations never share state.
type conversation struct {
	mu sync.Mutex

	turns         []models.Turn
	lastValidated string
	lastDialect   models.Dialect
}

func (c *conversation) recordTurn(turn models.Turn) {
	c.turns = append(c.turns, turn)
	if len(c.turns) > maxTurns {
		c.turns = c.turns[len(c.turns)-maxTurns:]
	}
}

// ConversationStore tracks conversations in memory, keyed by ID.
type ConversationStore struct {
	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{conversations: make(map[string]*conversation)}
}

// acquire returns the conversation for id, creating it when absent. An
// empty id starts a fresh conversation with a generated ID.
func (s *ConversationStore) acquire(id string) (string, *conversation) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		conv = &conversation{}
		s.conversations[id] = conv
	}
	return id, conv
}

// lookup returns the conversation for id, or nil when unknown.
func (s *ConversationStore) lookup(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}
