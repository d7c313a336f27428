// Package adminapi is the per-process HTTP surface for operating a
// cmd/worker instance: a liveness check and per-queue stats/deletion,
// routed with chi the way the original API server is.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// QueueHandle is the subset of queue.Queue[T] the admin surface needs,
// kept non-generic so one router can front queues of differing payload
// types within the same process.
type QueueHandle interface {
	Stats(ctx context.Context) (Stats, error)
	DeleteQueue(ctx context.Context) error
}

// Stats mirrors queue.Stats's exported fields; adminapi does not import
// internal/queue so it stays usable against any QueueHandle
// implementation, not just *queue.Queue[T].
type Stats struct {
	Ready            int64  `json:"ready"`
	InFlight         int64  `json:"inFlight"`
	Dead             int64  `json:"dead"`
	Enqueued         uint64 `json:"enqueued"`
	Dequeued         uint64 `json:"dequeued"`
	Completed        uint64 `json:"completed"`
	Abandoned        uint64 `json:"abandoned"`
	WorkerErrors     uint64 `json:"workerErrors"`
	WorkItemTimeouts uint64 `json:"workItemTimeouts"`
}

// Registry is the set of queues this process exposes over HTTP,
// registered by name at startup (cmd/worker calls Register once per
// queue it services).
type Registry struct {
	mu     sync.RWMutex
	queues map[string]QueueHandle
	logger *zap.Logger
}

// NewRegistry returns an empty Registry. A nil logger uses zap.NewNop.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{queues: make(map[string]QueueHandle), logger: logger}
}

// Register makes name's queue visible to the admin surface.
func (r *Registry) Register(name string, q QueueHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[name] = q
}

func (r *Registry) get(name string) (QueueHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

func (r *Registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// Router builds the chi router: GET /healthz, GET /queues/{name}/stats,
// DELETE /queues/{name}.
func Router(reg *Registry) http.Handler {
	rtr := chi.NewRouter()

	rtr.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if reg.len() == 0 {
			http.Error(w, "no queues registered yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rtr.Get("/queues/{name}/stats", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		q, ok := reg.get(name)
		if !ok {
			http.Error(w, "unknown queue", http.StatusNotFound)
			return
		}
		stats, err := q.Stats(req.Context())
		if err != nil {
			reg.logger.Warn("adminapi: stats failed", zap.String("queue", name), zap.Error(err))
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	rtr.Delete("/queues/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		q, ok := reg.get(name)
		if !ok {
			http.Error(w, "unknown queue", http.StatusNotFound)
			return
		}
		if err := q.DeleteQueue(req.Context()); err != nil {
			reg.logger.Warn("adminapi: delete_queue failed", zap.String("queue", name), zap.Error(err))
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return rtr
}
