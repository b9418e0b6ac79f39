package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/gesture"
	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
	"github.com/BuzzLyutic/kanban-board/internal/service"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
	"github.com/BuzzLyutic/kanban-board/pkg/respond"
)

var errBadRequest = errors.New("bad request")

type BoardHandler struct {
	service *service.BoardService
	logger  *zap.Logger
}

func NewBoardHandler(srv *service.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		service: srv,
		logger:  logger,
	}
}

type createBoardRequest struct {
	Columns []string `json:"columns"`
}

type dropRequest struct {
	Active model.ItemRef  `json:"active"`
	Over   *model.ItemRef `json:"over"`
}

type targetRequest struct {
	Over *model.ItemRef `json:"over"`
}

type pointerRequest struct {
	gesture.Point
	Target *model.ItemRef `json:"target"`
}

type editingRequest struct {
	Item    model.ItemRef `json:"item"`
	Editing bool          `json:"editing"`
}

func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req createBoardRequest
	if err := decodeOptional(r, &req); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	snap, err := h.service.CreateBoard(r.Context(), req.Columns)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/boards/"+snap.ID)
	respond.JSON(w, r, http.StatusCreated, snap)
}

func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ListBoards(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, ids)
}

func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	snap, err := h.service.GetBoard(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, snap)
}

func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	if err := h.service.DeleteBoard(r.Context(), id); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.NoContent(w, r)
}

func (h *BoardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	idempKey := r.Header.Get("Idempotency-Key")
	column, err := h.service.CreateColumn(r.Context(), id, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/boards/%s/columns/%d", id, column.ID))
	respond.JSON(w, r, http.StatusCreated, column)
}

func (h *BoardHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	id, columnID, err := boardAndItem(r, "column")
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var patch model.ColumnPatch
	if err := decode(r, &patch); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	column, err := h.service.UpdateColumn(r.Context(), id, columnID, patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, column)
}

func (h *BoardHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	id, columnID, err := boardAndItem(r, "column")
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	if err := h.service.DeleteColumn(r.Context(), id, columnID); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.NoContent(w, r)
}

func (h *BoardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id, columnID, err := boardAndItem(r, "column")
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	idempKey := r.Header.Get("Idempotency-Key")
	task, err := h.service.CreateTask(r.Context(), id, columnID, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/boards/%s/tasks/%d", id, task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *BoardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, taskID, err := boardAndItem(r, "task")
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var patch model.TaskPatch
	if err := decode(r, &patch); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	task, err := h.service.UpdateTask(r.Context(), id, taskID, patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *BoardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, taskID, err := boardAndItem(r, "task")
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	if err := h.service.DeleteTask(r.Context(), id, taskID); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.NoContent(w, r)
}

func (h *BoardHandler) Drop(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var req dropRequest
	if err := decode(r, &req); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	res, err := h.service.Drop(r.Context(), id, req.Active, req.Over)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *BoardHandler) DragStart(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var req dropRequest
	if err := decode(r, &req); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	snap, err := h.service.DragStart(r.Context(), id, req.Active)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, snap)
}

func (h *BoardHandler) DragOver(w http.ResponseWriter, r *http.Request) {
	h.dragTarget(w, r, h.service.DragOver)
}

func (h *BoardHandler) DragEnd(w http.ResponseWriter, r *http.Request) {
	h.dragTarget(w, r, h.service.DragEnd)
}

func (h *BoardHandler) PointerDown(w http.ResponseWriter, r *http.Request) {
	id, req, err := h.pointer(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	if req.Target == nil {
		h.handleErrors(w, r, fmt.Errorf("%w: target is required", service.ErrValidation))
		return
	}

	res, err := h.service.PointerDown(r.Context(), id, req.Point, *req.Target)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *BoardHandler) PointerMove(w http.ResponseWriter, r *http.Request) {
	id, req, err := h.pointer(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	res, err := h.service.PointerMove(r.Context(), id, req.Point, req.Target)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *BoardHandler) PointerUp(w http.ResponseWriter, r *http.Request) {
	id, req, err := h.pointer(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	res, err := h.service.PointerUp(r.Context(), id, req.Point, req.Target)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *BoardHandler) SetEditing(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var req editingRequest
	if err := decode(r, &req); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	res, err := h.service.SetEditing(r.Context(), id, req.Item, req.Editing)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

type targetFunc func(ctx context.Context, id uuid.UUID, over *model.ItemRef) (model.DragResult, error)

func (h *BoardHandler) dragTarget(w http.ResponseWriter, r *http.Request, fn targetFunc) {
	id, err := boardID(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	var req targetRequest
	if err := decodeOptional(r, &req); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	res, err := fn(r.Context(), id, req.Over)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *BoardHandler) pointer(r *http.Request) (uuid.UUID, pointerRequest, error) {
	var req pointerRequest
	id, err := boardID(r)
	if err != nil {
		return id, req, err
	}
	return id, req, decode(r, &req)
}

func (h *BoardHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, repo.ErrorConflict), errors.Is(err, service.ErrNoGesture):
		respond.Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, worker.ErrStopped): // сервер останавливается
		respond.Error(w, r, http.StatusServiceUnavailable, "service is shutting down")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

func boardID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "board"))
	if err != nil {
		return id, fmt.Errorf("%w: invalid board id", errBadRequest)
	}
	return id, nil
}

func boardAndItem(r *http.Request, param string) (uuid.UUID, int64, error) {
	id, err := boardID(r)
	if err != nil {
		return id, 0, err
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		return id, 0, fmt.Errorf("%w: invalid %s id", errBadRequest, param)
	}
	return id, itemID, nil
}

func decode(r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return fmt.Errorf("%w: empty request body", errBadRequest)
	}
	return decodeOptional(r, v)
}

// decodeOptional допускает пустое тело
func decodeOptional(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}
