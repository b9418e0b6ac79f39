package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
	"github.com/BuzzLyutic/kanban-board/internal/service"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

func setupHandler(t *testing.T) (*BoardHandler, func()) {
	logger := zap.NewNop()
	pool := worker.NewPool(logger, 2)
	pool.Start(context.Background())

	sessions := repo.NewSessionRepo()
	boardService := service.NewBoardService(sessions, pool, logger, service.Options{
		DragThreshold: 3,
		SessionTTL:    time.Hour,
	})
	handler := NewBoardHandler(boardService, logger)

	return handler, pool.Stop
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf []byte
	if body != nil {
		var err error
		buf, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createBoard(t *testing.T, handler *BoardHandler, columns ...string) model.Snapshot {
	t.Helper()
	req := jsonRequest(t, http.MethodPost, "/api/boards", createBoardRequest{Columns: columns})
	w := httptest.NewRecorder()
	handler.CreateBoard(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func TestBoardHandler_CreateBoard(t *testing.T) {
	handler, cleanup := setupHandler(t)
	defer cleanup()

	tests := []struct {
		name          string
		body          interface{}
		wantCode      int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:     "with columns",
			body:     createBoardRequest{Columns: []string{"Todo", "Done"}},
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var snap model.Snapshot
				json.NewDecoder(w.Body).Decode(&snap)
				assert.NotEmpty(t, snap.ID)
				require.Len(t, snap.Columns, 2)
				assert.Equal(t, "Todo", snap.Columns[0].Title)
				assert.Contains(t, w.Header().Get("Location"), "/api/boards/")
			},
		},
		{
			name:     "empty body",
			body:     nil,
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var snap model.Snapshot
				json.NewDecoder(w.Body).Decode(&snap)
				assert.Empty(t, snap.Columns)
			},
		},
		{
			name:     "blank title",
			body:     createBoardRequest{Columns: []string{" "}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid json",
			body:     "not an object",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPost, "/api/boards", tt.body)
			w := httptest.NewRecorder()
			handler.CreateBoard(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestBoardHandler_GetBoard(t *testing.T) {
	handler, cleanup := setupHandler(t)
	defer cleanup()

	created := createBoard(t, handler, "Todo")

	t.Run("existing board", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/boards/"+created.ID, nil), map[string]string{"board": created.ID})
		w := httptest.NewRecorder()
		handler.GetBoard(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var snap model.Snapshot
		json.NewDecoder(w.Body).Decode(&snap)
		assert.Equal(t, created, snap)
	})

	t.Run("unknown board", func(t *testing.T) {
		id := uuid.NewString()
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/boards/"+id, nil), map[string]string{"board": id})
		w := httptest.NewRecorder()
		handler.GetBoard(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/boards/42", nil), map[string]string{"board": "42"})
		w := httptest.NewRecorder()
		handler.GetBoard(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBoardHandler_Columns(t *testing.T) {
	handler, cleanup := setupHandler(t)
	defer cleanup()

	board := createBoard(t, handler)
	params := map[string]string{"board": board.ID}

	var column model.Column
	t.Run("create", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPost, "/columns", nil), params)
		w := httptest.NewRecorder()
		handler.CreateColumn(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		json.NewDecoder(w.Body).Decode(&column)
		assert.Equal(t, "Column 1", column.Title)
	})

	t.Run("create with idempotency key", func(t *testing.T) {
		send := func() model.Column {
			req := withParams(jsonRequest(t, http.MethodPost, "/columns", nil), params)
			req.Header.Set("Idempotency-Key", "col-key")
			w := httptest.NewRecorder()
			handler.CreateColumn(w, req)
			require.Equal(t, http.StatusCreated, w.Code)
			var c model.Column
			json.NewDecoder(w.Body).Decode(&c)
			return c
		}
		assert.Equal(t, send(), send(), "should return same column")
	})

	t.Run("rename", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPatch, "/columns/x", map[string]string{"title": "Backlog"}),
			map[string]string{"board": board.ID, "column": fmt.Sprint(column.ID)})
		w := httptest.NewRecorder()
		handler.UpdateColumn(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var updated model.Column
		json.NewDecoder(w.Body).Decode(&updated)
		assert.Equal(t, "Backlog", updated.Title)
	})

	t.Run("rename unknown", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPatch, "/columns/x", map[string]string{"title": "x"}),
			map[string]string{"board": board.ID, "column": "99999"})
		w := httptest.NewRecorder()
		handler.UpdateColumn(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("blank title", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPatch, "/columns/x", map[string]string{"title": "  "}),
			map[string]string{"board": board.ID, "column": fmt.Sprint(column.ID)})
		w := httptest.NewRecorder()
		handler.UpdateColumn(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rename without body", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodPatch, "/columns/x", nil),
			map[string]string{"board": board.ID, "column": fmt.Sprint(column.ID)})
		w := httptest.NewRecorder()
		handler.UpdateColumn(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodDelete, "/columns/x", nil),
			map[string]string{"board": board.ID, "column": fmt.Sprint(column.ID)})
		w := httptest.NewRecorder()
		handler.DeleteColumn(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("bad column id", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodDelete, "/columns/x", nil),
			map[string]string{"board": board.ID, "column": "abc"})
		w := httptest.NewRecorder()
		handler.DeleteColumn(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBoardHandler_Tasks(t *testing.T) {
	handler, cleanup := setupHandler(t)
	defer cleanup()

	board := createBoard(t, handler, "Todo")
	columnID := fmt.Sprint(board.Columns[0].ID)

	req := withParams(jsonRequest(t, http.MethodPost, "/tasks", nil), map[string]string{"board": board.ID, "column": columnID})
	w := httptest.NewRecorder()
	handler.CreateTask(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var task model.Task
	json.NewDecoder(w.Body).Decode(&task)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	taskParams := map[string]string{"board": board.ID, "task": fmt.Sprint(task.ID)}

	t.Run("missing column", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPost, "/tasks", nil), map[string]string{"board": board.ID, "column": "4242"})
		w := httptest.NewRecorder()
		handler.CreateTask(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPatch, "/tasks/x", map[string]string{"content": "Write tests", "priority": "high"}), taskParams)
		w := httptest.NewRecorder()
		handler.UpdateTask(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var updated model.Task
		json.NewDecoder(w.Body).Decode(&updated)
		assert.Equal(t, "Write tests", updated.Content)
		assert.Equal(t, model.PriorityHigh, updated.Priority)
	})

	t.Run("invalid priority", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPatch, "/tasks/x", map[string]string{"priority": "asap"}), taskParams)
		w := httptest.NewRecorder()
		handler.UpdateTask(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete twice", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req := withParams(httptest.NewRequest(http.MethodDelete, "/tasks/x", nil), taskParams)
			w := httptest.NewRecorder()
			handler.DeleteTask(w, req)

			assert.Equal(t, http.StatusNoContent, w.Code, "delete of unknown task is a silent no-op")
		}
	})
}

func TestBoardHandler_Drop(t *testing.T) {
	handler, cleanup := setupHandler(t)
	defer cleanup()

	board := createBoard(t, handler, "Todo", "Done")
	params := map[string]string{"board": board.ID}
	todo, done := board.Columns[0].ID, board.Columns[1].ID

	t.Run("columns", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPost, "/drop", dropRequest{
			Active: model.ColumnRef(todo),
			Over:   model.ColumnRef(done).Ref(),
		}), params)
		w := httptest.NewRecorder()
		handler.Drop(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var res model.DragResult
		json.NewDecoder(w.Body).Decode(&res)
		assert.True(t, res.Applied)
		assert.Equal(t, done, res.Board.Columns[0].ID)
	})

	t.Run("missing target", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPost, "/drop", dropRequest{
			Active: model.ColumnRef(todo),
			Over:   model.ColumnRef(31337).Ref(),
		}), params)
		w := httptest.NewRecorder()
		handler.Drop(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var res model.DragResult
		json.NewDecoder(w.Body).Decode(&res)
		assert.False(t, res.Applied)
		assert.Contains(t, res.Diagnostic, "not found")
	})

	t.Run("unknown kind", func(t *testing.T) {
		req := withParams(jsonRequest(t, http.MethodPost, "/drop", map[string]interface{}{
			"active": map[string]interface{}{"kind": "swimlane", "id": 1},
		}), params)
		w := httptest.NewRecorder()
		handler.Drop(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBoardHandler_DragOverWithoutStart(t *testing.T) {
	handler, cleanup := setupHandler(t)
	defer cleanup()

	board := createBoard(t, handler, "Todo")
	req := withParams(jsonRequest(t, http.MethodPost, "/drag/over", targetRequest{}), map[string]string{"board": board.ID})
	w := httptest.NewRecorder()
	handler.DragOver(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBoardHandler_PoolStopped(t *testing.T) {
	handler, cleanup := setupHandler(t)
	board := createBoard(t, handler, "Todo")
	cleanup()

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/boards/"+board.ID, nil), map[string]string{"board": board.ID})
	w := httptest.NewRecorder()
	handler.GetBoard(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBoardHandler_HandleErrors(t *testing.T) {
	handler := NewBoardHandler(nil, zap.NewNop())

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"bad request", fmt.Errorf("%w: invalid json", errBadRequest), http.StatusBadRequest},
		{"validation", fmt.Errorf("%w: empty title", service.ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("column 1: %w", repo.ErrorNotFound), http.StatusNotFound},
		{"conflict", repo.ErrorConflict, http.StatusConflict},
		{"no gesture", service.ErrNoGesture, http.StatusConflict},
		{"shutting down", worker.ErrStopped, http.StatusServiceUnavailable},
		{"job panicked", fmt.Errorf("%w: boom", worker.ErrPanicked), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.handleErrors(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
