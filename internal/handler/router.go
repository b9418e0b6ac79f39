package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/BuzzLyutic/kanban-board/pkg/respond"
)

type RouterOptions struct {
	CORSOrigins []string
	// RequestLog включает middleware.Logger, в тестах его выключаем
	RequestLog bool
}

func NewRouter(h *BoardHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Браузерный клиент доски ходит с другого origin
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/boards", func(r chi.Router) {
		r.Post("/", h.CreateBoard)
		r.Get("/", h.ListBoards)

		r.Route("/{board}", func(r chi.Router) {
			r.Get("/", h.GetBoard)
			r.Delete("/", h.DeleteBoard)
			r.Get("/stats", h.Stats)

			r.Post("/columns", h.CreateColumn)
			r.Patch("/columns/{column}", h.UpdateColumn)
			r.Delete("/columns/{column}", h.DeleteColumn)
			r.Post("/columns/{column}/tasks", h.CreateTask)

			r.Patch("/tasks/{task}", h.UpdateTask)
			r.Delete("/tasks/{task}", h.DeleteTask)

			r.Post("/drop", h.Drop)
			r.Post("/drag/start", h.DragStart)
			r.Post("/drag/over", h.DragOver)
			r.Post("/drag/end", h.DragEnd)

			r.Post("/pointer/down", h.PointerDown)
			r.Post("/pointer/move", h.PointerMove)
			r.Post("/pointer/up", h.PointerUp)

			r.Put("/editing", h.SetEditing)
		})
	})

	return r
}
