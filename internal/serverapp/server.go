package serverapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cybertodo/internal/app"
	"cybertodo/internal/httpmw"
	"cybertodo/internal/task"
	"cybertodo/internal/telemetry"
)

type Options struct {
	App *app.App
	// Now stamps health responses; defaults to time.Now.
	Now func() time.Time
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.App == nil || opts.App.Store == nil {
		return nil, errors.New("app is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := opts.App

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "cybertodo",
			"time":    opts.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, _, err := a.KV.Get(a.Slot.Key); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "task storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "cybertodo",
			"backend": a.Config.Storage.Backend,
		})
	})

	task.NewHandler(a.Store).Register(mux)

	if a.Activity != nil {
		mux.HandleFunc("/api/activity", telemetry.NewHandler(a.Activity).Activity)
	}

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, a.Config)
	})

	mux.Handle("/api/routes", apiRoutes())

	return httpmw.Chain(
		mux,
		httpmw.WithRequestID,
		httpmw.WithAccessLog(a.Logger),
		httpmw.WithRecover(a.Logger),
	), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
