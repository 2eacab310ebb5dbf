package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
)

const keyPrefix = "conversation:"

// Store persists conversations in Redis. Each conversation is a single JSON
// value saved atomically, so a reload mid-conversation resumes with slots,
// corrections, and lead state intact.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "conversation_store"}),
	}
}

// Load fetches a conversation by id. A missing id returns (nil, nil) so the
// caller can distinguish "new conversation" from a store failure.
func (s *Store) Load(ctx context.Context, id string) (*Conversation, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, agenterrors.NewConversationLoadFailedError(id, err)
	}

	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, agenterrors.NewConversationLoadFailedError(id, fmt.Errorf("corrupt conversation payload: %w", err))
	}
	return &conv, nil
}

// Save writes the full conversation state. Called once per processed turn
// after all mutations for that turn are applied.
func (s *Store) Save(ctx context.Context, conv *Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return agenterrors.NewConversationSaveFailedError(conv.ID, err)
	}

	if err := s.client.Set(ctx, keyPrefix+conv.ID, raw, s.ttl).Err(); err != nil {
		s.logger.Error("conversation save failed", map[string]interface{}{
			"conversation_id": conv.ID,
			"error":           err.Error(),
		})
		return agenterrors.NewConversationSaveFailedError(conv.ID, err)
	}
	return nil
}
