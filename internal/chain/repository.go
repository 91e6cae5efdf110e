// Package chain captures sequences of chat messages as segments and replays
// them later through a Sender.
package chain

import (
	"context"
	"fmt"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// SessionKey scopes a capture session to one user in one chat.
func SessionKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

type Repository struct {
	store  storage.ChainStore
	logger *zap.Logger
}

func NewRepository(store storage.ChainStore, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{store: store, logger: logger}
}

// Start drops whatever an earlier session left under key.
func (r *Repository) Start(ctx context.Context, key string) error {
	if err := r.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("start session %s: %w", key, err)
	}
	return nil
}

func (r *Repository) Append(ctx context.Context, key string, segment models.Segment) error {
	if err := segment.Validate(); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	if err := r.store.Append(ctx, key, segment); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

// Capture classifies one delivered unit and appends it to the session.
func (r *Repository) Capture(ctx context.Context, key string, messages []*tgbotapi.Message) (models.Segment, error) {
	segment, err := Classify(messages)
	if err != nil {
		return models.Segment{}, err
	}
	if err := r.Append(ctx, key, segment); err != nil {
		return models.Segment{}, err
	}
	return segment, nil
}

// Finish returns the session's segments in arrival order and clears it. An
// expired or unreadable session yields an empty list.
func (r *Repository) Finish(ctx context.Context, key string) []models.Segment {
	segments, err := r.store.Segments(ctx, key)
	if err != nil {
		r.logger.Error("failed to read capture session", zap.String("key", key), zap.Error(err))
		segments = []models.Segment{}
	}
	if err := r.store.Clear(ctx, key); err != nil {
		r.logger.Warn("failed to clear capture session", zap.String("key", key), zap.Error(err))
	}
	if segments == nil {
		segments = []models.Segment{}
	}
	return segments
}
