package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"choreboard/internal/export"
	"choreboard/internal/requestid"
	"choreboard/internal/tasks"
)

type Server struct {
	handler http.Handler
}

// New wires every route of the service. staticDir is served under /static/.
func New(store tasks.Store, exporter *export.Exporter, views tasks.Renderer, staticDir string) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// ----- PAGES -----
	mux.HandleFunc("GET /{$}", tasks.IndexPageHandler(store, views))
	mux.HandleFunc("GET /create_task", tasks.CreateTaskPageHandler(views))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(filesOnly{http.Dir(staticDir)})))

	// ----- TASKS API -----
	mux.HandleFunc("GET /api/tasks", tasks.ListTasksHandler(store))
	mux.HandleFunc("POST /api/tasks", tasks.CreateTaskHandler(store))
	mux.HandleFunc("GET /api/tasks/export", export.Handler(exporter))
	mux.HandleFunc("GET /api/tasks/{id}", tasks.GetTaskHandler(store))
	mux.HandleFunc("PUT /api/tasks/{id}", tasks.UpdateTaskHandler(store))
	mux.HandleFunc("DELETE /api/tasks/{id}", tasks.DeleteTaskHandler(store))
	mux.HandleFunc("POST /api/tasks/{id}/complete", tasks.CompleteTaskHandler(store))
	mux.HandleFunc("GET /api/scores", tasks.ScoresHandler(store))

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", requestid.Header},
		ExposedHeaders: []string{requestid.Header},
	})

	return &Server{handler: requestid.Middleware(accessLog(c.Handler(mux)))}
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// filesOnly hides directories, so /static/ neither lists www nor falls
// back to the unrendered index.html template.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s request_id=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond), requestid.FromContext(r.Context()))
	})
}
