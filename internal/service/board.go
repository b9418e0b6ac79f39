package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/gesture"
	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNoGesture  = errors.New("no drag in progress")
)

// Dispatcher выполняет работу последовательно для каждого ключа, реализован *worker.Pool
type Dispatcher interface {
	Do(ctx context.Context, key string, fn func()) error
}

type Options struct {
	DragThreshold float64
	SessionTTL    time.Duration
}

type BoardService struct {
	repo   repo.SessionRepository
	pool   Dispatcher
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

func NewBoardService(repo repo.SessionRepository, pool Dispatcher, logger *zap.Logger, opts Options) *BoardService {
	if opts.DragThreshold < 0 {
		opts.DragThreshold = gesture.DefaultThreshold
	}
	return &BoardService{
		repo:   repo,
		pool:   pool,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// PointerResult - события, которые породил указатель, и состояние доски после них
type PointerResult struct {
	Events     []gesture.Event `json:"events"`
	Board      model.Snapshot  `json:"board"`
	Applied    bool            `json:"applied"`
	Diagnostic string          `json:"diagnostic,omitempty"`
}

// withSession находит сессию и выполняет fn в воркере, закрепленном за ней
func (s *BoardService) withSession(ctx context.Context, id uuid.UUID, fn func(sess *repo.Session) error) error {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var fnErr error
	if err := s.pool.Do(ctx, id.String(), func() { fnErr = fn(sess) }); err != nil {
		return err
	}

	if err := s.repo.Touch(ctx, id, s.now()); err != nil && !errors.Is(err, repo.ErrorNotFound) {
		s.logger.Warn("failed to touch session", zap.String("board", id.String()), zap.Error(err))
	}
	return fnErr
}

func (s *BoardService) CreateBoard(ctx context.Context, titles []string) (model.Snapshot, error) {
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			return model.Snapshot{}, fmt.Errorf("%w: empty column title", ErrValidation)
		}
	}

	sess := repo.NewSession(s.opts.DragThreshold, s.now())
	for _, title := range titles {
		c := sess.Board.CreateColumn()
		sess.Board.UpdateColumn(c.ID, model.ColumnPatch{Title: &title})
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return model.Snapshot{}, err
	}
	s.logger.Info("board created", zap.String("board", sess.ID.String()), zap.Int("columns", len(titles)))
	return sess.Snapshot(), nil
}

func (s *BoardService) GetBoard(ctx context.Context, id uuid.UUID) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

func (s *BoardService) ListBoards(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.List(ctx)
}

func (s *BoardService) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("board deleted", zap.String("board", id.String()))
	return nil
}

func (s *BoardService) Stats(ctx context.Context, id uuid.UUID) (model.Stats, error) {
	var stats model.Stats
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		stats = sess.Board.Stats()
		return nil
	})
	return stats, err
}

func (s *BoardService) CreateColumn(ctx context.Context, id uuid.UUID, idempKey string) (model.Column, error) {
	var column model.Column
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		if idempKey != "" { // если ключ уже встречался - возвращаем ранее созданную колонку
			if ref, err := s.repo.GetIdempotencyKey(ctx, id, idempKey); err == nil {
				c, ok := sess.Board.Column(ref.ID)
				if ref.Kind != model.KindColumn || !ok {
					return fmt.Errorf("%w: idempotency key %q already used", repo.ErrorConflict, idempKey)
				}
				column = c
				return nil
			}
		}

		column = sess.Board.CreateColumn()

		if idempKey != "" {
			if err := s.repo.SaveIdempotencyKey(ctx, id, idempKey, model.ColumnRef(column.ID)); err != nil {
				s.logger.Warn("failed to save idempotency key", zap.String("key", idempKey), zap.Error(err))
			}
		}
		return nil
	})
	return column, err
}

func (s *BoardService) UpdateColumn(ctx context.Context, id uuid.UUID, columnID int64, patch model.ColumnPatch) (model.Column, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Column{}, fmt.Errorf("%w: empty column title", ErrValidation)
	}

	var column model.Column
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		c, ok := sess.Board.UpdateColumn(columnID, patch)
		if !ok {
			return fmt.Errorf("column %d: %w", columnID, repo.ErrorNotFound)
		}
		column = c
		return nil
	})
	return column, err
}

// DeleteColumn удаляет колонку и все ее задачи; неизвестный id - не ошибка
func (s *BoardService) DeleteColumn(ctx context.Context, id uuid.UUID, columnID int64) error {
	return s.withSession(ctx, id, func(sess *repo.Session) error {
		for _, t := range sess.Board.TasksIn(columnID) {
			sess.Tracker.Forget(model.TaskRef(t.ID))
		}
		sess.Tracker.Forget(model.ColumnRef(columnID))
		sess.Board.DeleteColumn(columnID)
		return nil
	})
}

func (s *BoardService) CreateTask(ctx context.Context, id uuid.UUID, columnID int64, idempKey string) (model.Task, error) {
	var task model.Task
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		if idempKey != "" {
			if ref, err := s.repo.GetIdempotencyKey(ctx, id, idempKey); err == nil {
				t, ok := sess.Board.Task(ref.ID)
				if ref.Kind != model.KindTask || !ok {
					return fmt.Errorf("%w: idempotency key %q already used", repo.ErrorConflict, idempKey)
				}
				task = t
				return nil
			}
		}

		t, ok := sess.Board.CreateTask(columnID)
		if !ok {
			return fmt.Errorf("column %d: %w", columnID, repo.ErrorNotFound)
		}
		task = t

		if idempKey != "" {
			if err := s.repo.SaveIdempotencyKey(ctx, id, idempKey, model.TaskRef(task.ID)); err != nil {
				s.logger.Warn("failed to save idempotency key", zap.String("key", idempKey), zap.Error(err))
			}
		}
		return nil
	})
	return task, err
}

func (s *BoardService) UpdateTask(ctx context.Context, id uuid.UUID, taskID int64, patch model.TaskPatch) (model.Task, error) {
	if patch.Priority != nil && !patch.Priority.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, *patch.Priority)
	}

	var task model.Task
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		t, ok := sess.Board.UpdateTask(taskID, patch)
		if !ok {
			return fmt.Errorf("task %d: %w", taskID, repo.ErrorNotFound)
		}
		task = t
		return nil
	})
	return task, err
}

func (s *BoardService) DeleteTask(ctx context.Context, id uuid.UUID, taskID int64) error {
	return s.withSession(ctx, id, func(sess *repo.Session) error {
		sess.Tracker.Forget(model.TaskRef(taskID))
		sess.Board.DeleteTask(taskID)
		return nil
	})
}

// Drop применяет перенос одним вызовом, без жеста
func (s *BoardService) Drop(ctx context.Context, id uuid.UUID, active model.ItemRef, over *model.ItemRef) (model.DragResult, error) {
	if err := validateRefs(active, over); err != nil {
		return model.DragResult{}, err
	}

	var res model.DragResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		res = s.apply(sess, active, over, sess.Board.Drop)
		return nil
	})
	return res, err
}

func (s *BoardService) DragStart(ctx context.Context, id uuid.UUID, active model.ItemRef) (model.Snapshot, error) {
	if err := validateRefs(active, nil); err != nil {
		return model.Snapshot{}, err
	}

	var snap model.Snapshot
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		if !sess.Board.Has(active) {
			return fmt.Errorf("%s: %w", active, repo.ErrorNotFound)
		}
		if !sess.Tracker.Begin(active) {
			return fmt.Errorf("%w: %s cannot be dragged now", repo.ErrorConflict, active)
		}
		s.logger.Debug("drag started", zap.String("board", id.String()), zap.Stringer("active", active))
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

func (s *BoardService) DragOver(ctx context.Context, id uuid.UUID, over *model.ItemRef) (model.DragResult, error) {
	if err := validateTarget(over); err != nil {
		return model.DragResult{}, err
	}

	var res model.DragResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		active := sess.Tracker.Active()
		if active == nil {
			return ErrNoGesture
		}
		res = s.apply(sess, *active, over, sess.Board.DragOver)
		return nil
	})
	return res, err
}

// DragEnd завершает жест; выделение снимается при любом исходе
func (s *BoardService) DragEnd(ctx context.Context, id uuid.UUID, over *model.ItemRef) (model.DragResult, error) {
	if err := validateTarget(over); err != nil {
		return model.DragResult{}, err
	}

	var res model.DragResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		ev, ok := sess.Tracker.Release(over)
		if !ok {
			return ErrNoGesture
		}
		res = s.apply(sess, ev.Active, ev.Over, sess.Board.DragEnd)
		return nil
	})
	return res, err
}

func (s *BoardService) PointerDown(ctx context.Context, id uuid.UUID, p gesture.Point, target model.ItemRef) (PointerResult, error) {
	if err := validateRefs(target, nil); err != nil {
		return PointerResult{}, err
	}

	var res PointerResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		if !sess.Board.Has(target) {
			return fmt.Errorf("%s: %w", target, repo.ErrorNotFound)
		}
		sess.Tracker.Press(p, target)
		res = PointerResult{Events: []gesture.Event{}, Board: sess.Snapshot()}
		return nil
	})
	return res, err
}

func (s *BoardService) PointerMove(ctx context.Context, id uuid.UUID, p gesture.Point, over *model.ItemRef) (PointerResult, error) {
	if err := validateTarget(over); err != nil {
		return PointerResult{}, err
	}

	var res PointerResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		res = s.dispatch(sess, sess.Tracker.Move(p, over))
		return nil
	})
	return res, err
}

func (s *BoardService) PointerUp(ctx context.Context, id uuid.UUID, p gesture.Point, over *model.ItemRef) (PointerResult, error) {
	if err := validateTarget(over); err != nil {
		return PointerResult{}, err
	}

	var res PointerResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		// последнее перемещение до отпускания тоже может сменить цель
		events := sess.Tracker.Move(p, over)
		if ev, ok := sess.Tracker.Release(over); ok {
			events = append(events, ev)
		}
		res = s.dispatch(sess, events)
		return nil
	})
	return res, err
}

func (s *BoardService) SetEditing(ctx context.Context, id uuid.UUID, item model.ItemRef, editing bool) (PointerResult, error) {
	if err := validateRefs(item, nil); err != nil {
		return PointerResult{}, err
	}

	var res PointerResult
	err := s.withSession(ctx, id, func(sess *repo.Session) error {
		if editing && !sess.Board.Has(item) {
			return fmt.Errorf("%s: %w", item, repo.ErrorNotFound)
		}
		var events []gesture.Event
		if ev, ok := sess.Tracker.SetEditing(item, editing); ok {
			events = append(events, ev)
		}
		res = s.dispatch(sess, events)
		return nil
	})
	return res, err
}

// Sweep удаляет сессии, простаивающие дольше SessionTTL
func (s *BoardService) Sweep(ctx context.Context) {
	if s.opts.SessionTTL <= 0 {
		return
	}
	ids, err := s.repo.Expired(ctx, s.now().Add(-s.opts.SessionTTL))
	if err != nil {
		s.logger.Error("failed to list expired boards", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, repo.ErrorNotFound) {
			s.logger.Error("failed to expire board", zap.String("board", id.String()), zap.Error(err))
			continue
		}
		s.logger.Info("board expired", zap.String("board", id.String()))
	}
}

func (s *BoardService) dispatch(sess *repo.Session, events []gesture.Event) PointerResult {
	res := PointerResult{Events: events}
	if res.Events == nil {
		res.Events = []gesture.Event{}
	}

	for _, ev := range events {
		var dr model.DragResult
		switch ev.Type {
		case gesture.Over:
			dr = s.apply(sess, ev.Active, ev.Over, sess.Board.DragOver)
		case gesture.End:
			dr = s.apply(sess, ev.Active, ev.Over, sess.Board.DragEnd)
		default:
			continue
		}
		res.Applied = res.Applied || dr.Applied
		if dr.Diagnostic != "" {
			res.Diagnostic = dr.Diagnostic
		}
	}
	res.Board = sess.Snapshot()
	return res
}

type applyFunc func(active model.ItemRef, over *model.ItemRef) (bool, error)

// apply выполняет перестановку; ненайденная цель - не ошибка для клиента, только диагностика
func (s *BoardService) apply(sess *repo.Session, active model.ItemRef, over *model.ItemRef, fn applyFunc) model.DragResult {
	applied, err := fn(active, over)

	res := model.DragResult{Applied: applied}
	if err != nil {
		fields := []zap.Field{
			zap.String("board", sess.ID.String()),
			zap.Stringer("active", active),
			zap.Error(err),
		}
		if over != nil {
			fields = append(fields, zap.Stringer("over", *over))
		}
		if errors.Is(err, board.ErrNotFound) {
			s.logger.Warn("drop not applied", fields...)
		} else {
			s.logger.Error("drop failed", fields...)
		}
		res.Diagnostic = err.Error()
	}
	res.Board = sess.Snapshot()
	return res
}

func validateRefs(active model.ItemRef, over *model.ItemRef) error {
	if !active.Kind.Valid() {
		return fmt.Errorf("%w: unknown item kind %q", ErrValidation, active.Kind)
	}
	return validateTarget(over)
}

func validateTarget(over *model.ItemRef) error {
	if over != nil && !over.Kind.Valid() {
		return fmt.Errorf("%w: unknown item kind %q", ErrValidation, over.Kind)
	}
	return nil
}
