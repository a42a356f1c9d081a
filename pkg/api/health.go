package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/metrics"
)

// HealthServer provides the HTTP liveness/readiness/metrics endpoints
// every node exposes alongside its gRPC API.
type HealthServer struct {
	kernel *kernel.Kernel
	mux    *http.ServeMux
}

func NewHealthServer(k *kernel.Kernel) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{kernel: k, mux: mux}

	mux.HandleFunc("/live", hs.liveHandler)
	mux.HandleFunc("/health", hs.liveHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

func (hs *HealthServer) GetHandler() http.Handler { return hs.mux }

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// liveHandler is a bare process-alive check: it never touches Raft or
// storage, so it still answers while the kernel is in degraded mode or
// mid-election.
func (hs *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.kernel == nil {
		checks["raft"] = "not initialized"
		checks["storage"] = "not initialized"
		ready = false
		message = "kernel not initialized"
	} else if hs.kernel.IsLeader() {
		checks["raft"] = "leader"
	} else if leaderAddr := hs.kernel.LeaderAddr(); leaderAddr != "" {
		checks["raft"] = fmt.Sprintf("follower (leader: %s)", leaderAddr)
	} else if hs.kernel.Degraded() {
		checks["raft"] = "degraded (single-node)"
	} else {
		checks["raft"] = "no leader elected"
		ready = false
		message = "waiting for leader election"
	}

	if hs.kernel != nil {
		if _, err := hs.kernel.List("__readycheck__", 0, 1); err != nil {
			checks["storage"] = fmt.Sprintf("error: %v", err)
			ready = false
			if message == "" {
				message = "storage not accessible"
			}
		} else {
			checks["storage"] = "ok"
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	})
}
