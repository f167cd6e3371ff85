package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"choreboard/internal/requestid"
)

// Store is the set of repository operations the handlers depend on.
type Store interface {
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Scores(ctx context.Context) (Scores, error)
	Create(ctx context.Context, in TaskInput) (Task, error)
	Update(ctx context.Context, id int64, in TaskInput) (Task, error)
	Delete(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64, completedBy string) (Completion, error)
}

// Renderer executes a named HTML template.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// IndexPage is the data handed to index.html.
type IndexPage struct {
	Tasks  []Task
	Scores Scores
}

// -------------------------------
// PAGES
// -------------------------------

func IndexPageHandler(store Store, views Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		scores, err := store.Scores(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		renderPage(w, r, views, "index.html", IndexPage{Tasks: list, Scores: scores})
	}
}

func CreateTaskPageHandler(views Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, r, views, "create_task.html", nil)
	}
}

// -------------------------------
// API
// -------------------------------

func ListTasksHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateTaskHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := DecodeTaskInput(r.Body)
		if err != nil {
			writeError(w, r, err)
			return
		}

		created, err := store.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetTaskHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, ErrNotFound)
			return
		}

		t, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateTaskHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, ErrNotFound)
			return
		}

		in, err := DecodeTaskInput(r.Body)
		if err != nil {
			writeError(w, r, err)
			return
		}

		updated, err := store.Update(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteTaskHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// a non-numeric id names no task, so there is nothing to delete
		if id, ok := pathID(r); ok {
			if err := store.Delete(r.Context(), id); err != nil {
				writeError(w, r, err)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CompleteTaskHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, ErrNotFound)
			return
		}

		completedBy, err := DecodeCompletedBy(r.Body)
		if err != nil {
			writeError(w, r, err)
			return
		}

		done, err := store.Complete(r.Context(), id, completedBy)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, done)
	}
}

func ScoresHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scores, err := store.Scores(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, scores)
	}
}

// -------------------------------
// HELPERS
// -------------------------------

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func renderPage(w http.ResponseWriter, r *http.Request, views Renderer, name string, data any) {
	var buf bytes.Buffer
	if err := views.Render(&buf, name, data); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps validation errors to 400, ErrNotFound to 404 and
// everything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Message, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	default:
		log.Printf("[ERROR] %s %s request_id=%s: %v", r.Method, r.URL.Path, requestid.FromContext(r.Context()), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
