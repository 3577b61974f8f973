package persistence

import (
	"fmt"
)

// NewConversationStore creates a ConversationStore based on the configuration.
// Redis and SQL backends reuse the connections in deps.
func NewConversationStore(config StoreConfig, deps Dependencies) (ConversationStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryConversationStore(), nil
	case StoreTypeFile:
		return NewFileConversationStore(config, deps.Logger)
	case StoreTypeRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("%w: redis store requires a redis connection", ErrInvalidInput)
		}
		return NewRedisConversationStore(deps.Redis, config, deps.Logger)
	case StoreTypeSQL:
		if deps.DB == nil {
			return nil, fmt.Errorf("%w: sql store requires a database connection", ErrInvalidInput)
		}
		return NewSQLConversationStore(deps.DB, deps.Logger)
	default:
		return nil, fmt.Errorf("unsupported conversation store type: %s", config.Type)
	}
}
