package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rendercue/internal/logger"
	"rendercue/internal/supervisor"
)

// Controller is the part of the supervisor the API drives.
type Controller interface {
	Snapshot() supervisor.Mirror
	Summary() (supervisor.Summary, bool)
	Pause() error
	Resume() error
	Stop()
}

type Deps struct {
	Controller Controller
	Logger     *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	h := &handler{ctl: d.Controller, log: logger.OrNop(d.Logger).WithComponent("statusapi")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)

	r.Get("/health", h.health)
	r.Get("/status", h.status)
	r.Get("/summary", h.summary)
	r.Post("/pause", h.pause)
	r.Post("/resume", h.resume)
	r.Post("/stop", h.stop)
	return r
}

type handler struct {
	ctl Controller
	log *logger.Logger
}

func (h *handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.WithRequestID(middleware.GetReqID(r.Context())).Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "latency_ms", time.Since(start).Milliseconds())
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "rendercue",
		"state":   h.ctl.Snapshot().State,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.ctl.Summary()
	if !ok {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "no render has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, "pause", h.ctl.Pause)
}

func (h *handler) resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, "resume", h.ctl.Resume)
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	if h.ctl.Snapshot().State != supervisor.StateRunning {
		writeErr(w, http.StatusConflict, "NOT_RUNNING", supervisor.ErrNotBusy.Error())
		return
	}
	h.ctl.Stop()
	writeJSON(w, http.StatusAccepted, map[string]any{"action": "stop", "accepted": true})
}

func (h *handler) control(w http.ResponseWriter, action string, fn func() error) {
	if err := fn(); err != nil {
		if errors.Is(err, supervisor.ErrNotBusy) {
			writeErr(w, http.StatusConflict, "NOT_RUNNING", err.Error())
			return
		}
		h.log.Error("control action failed", "action", action, "error", err)
		writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"action": action, "accepted": true})
}

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, log *logger.Logger) error {
	log = logger.OrNop(log).WithComponent("statusapi")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("status api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown status api: %w", err)
		}
		return nil
	}
}
