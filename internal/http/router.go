package http

import (
	"net/http"
	"strings"
)

// HealthPath answers liveness probes without authentication.
const HealthPath = "/healthz"

type RouterConfig struct {
	Timer      *TimerHandler
	Activity   *ActivityHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	if cfg.Timer != nil {
		mux.HandleFunc("/timer/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Timer.StartOrSync(w, r)
		})
		mux.HandleFunc("/timer/sessions/active", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Timer.GetActive(w, r)
		})
		mux.HandleFunc("/timer/sessions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/timer/sessions/")
			id, action, _ := strings.Cut(rest, "/")
			if id == "" || strings.Contains(action, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithSessionID(r.Context(), id))

			switch action {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Timer.GetSession(w, r)
			case "events":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Timer.ListEvents(w, r)
			case "pause", "resume", "complete":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				switch action {
				case "pause":
					cfg.Timer.Pause(w, r)
				case "resume":
					cfg.Timer.Resume(w, r)
				default:
					cfg.Timer.Complete(w, r)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Activity != nil {
		mux.HandleFunc("/activity", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Activity.List(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
