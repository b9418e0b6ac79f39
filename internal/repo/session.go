package repo

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/gesture"
	"github.com/BuzzLyutic/kanban-board/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// Session - одна открытая доска. Board и Tracker меняются только из
// воркера, за которым закреплена сессия.
type Session struct {
	ID        uuid.UUID
	Board     *board.Board
	Tracker   *gesture.Tracker
	CreatedAt time.Time
}

func NewSession(threshold float64, now time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		Board:     board.New(),
		Tracker:   gesture.NewTracker(threshold),
		CreatedAt: now,
	}
}

// Snapshot возвращает состояние доски для клиента
func (s *Session) Snapshot() model.Snapshot {
	columns := s.Board.Columns()
	if columns == nil {
		columns = []model.Column{}
	}
	tasks := s.Board.Tasks()
	if tasks == nil {
		tasks = []model.Task{}
	}
	return model.Snapshot{
		ID:      s.ID.String(),
		Columns: columns,
		Tasks:   tasks,
		Active:  s.Tracker.Active(),
		Version: s.Board.Version(),
	}
}

type entry struct {
	session  *Session
	lastSeen time.Time
	keys     map[string]model.ItemRef
}

type SessionRepo struct { // Хранилище сессий в памяти процесса
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{
		sessions: make(map[uuid.UUID]*entry),
	}
}

func (r *SessionRepo) Create(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return ErrorConflict
	}
	r.sessions[s.ID] = &entry{
		session:  s,
		lastSeen: s.CreatedAt,
		keys:     make(map[string]model.ItemRef),
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrorNotFound
	}
	return e.session, nil
}

func (r *SessionRepo) List(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrorNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return ErrorNotFound
	}
	if at.After(e.lastSeen) {
		e.lastSeen = at
	}
	return nil
}

// Expired возвращает сессии, к которым не обращались с момента before
func (r *SessionRepo) Expired(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, e := range r.sessions {
		if e.lastSeen.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *SessionRepo) SaveIdempotencyKey(ctx context.Context, id uuid.UUID, key string, ref model.ItemRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return ErrorNotFound
	}
	if _, exists := e.keys[key]; !exists { // как ON CONFLICT DO NOTHING
		e.keys[key] = ref
	}
	return nil
}

func (r *SessionRepo) GetIdempotencyKey(ctx context.Context, id uuid.UUID, key string) (model.ItemRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return model.ItemRef{}, ErrorNotFound
	}
	ref, ok := e.keys[key]
	if !ok {
		return model.ItemRef{}, ErrorNotFound
	}
	return ref, nil
}
