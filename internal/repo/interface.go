package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// SessionRepository определяет интерфейс для хранения сессий досок
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context) ([]uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Expired(ctx context.Context, before time.Time) ([]uuid.UUID, error)
	SaveIdempotencyKey(ctx context.Context, id uuid.UUID, key string, ref model.ItemRef) error
	GetIdempotencyKey(ctx context.Context, id uuid.UUID, key string) (model.ItemRef, error)
}
