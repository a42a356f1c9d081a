package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/horology/pkg/gateway"
	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/kernel"
)

// RESTServer is the thin HTTP mapping onto the scheduling RPC:
// POST /timers, GET /timers, GET /timers/:id,
// POST /timers/:id/cancel, GET /timers/stream (server-sent events).
// Every handler shares the same Command Gateway as the gRPC surface,
// so both transports enforce identical auth/quota semantics.
type RESTServer struct {
	gateway *gateway.Gateway
	kernel  *kernel.Kernel
	mux     *http.ServeMux
}

func NewRESTServer(gw *gateway.Gateway, k *kernel.Kernel) *RESTServer {
	mux := http.NewServeMux()
	rs := &RESTServer{gateway: gw, kernel: k, mux: mux}

	mux.HandleFunc("/timers", rs.handleTimersCollection)
	mux.HandleFunc("/timers/stream", rs.handleStream)
	mux.HandleFunc("/timers/", rs.handleTimerItem)

	return rs
}

func (rs *RESTServer) GetHandler() http.Handler { return rs.mux }

type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := herror.KindOf(err)
	msg := err.Error()
	var retryAfterMs int64
	var he *herror.Error
	if errors.As(err, &he) {
		msg = he.Message
		retryAfterMs = he.RetryAfterMs
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(kind))
	_ = json.NewEncoder(w).Encode(errorBody{Code: string(kind), Message: msg, RetryAfterMs: retryAfterMs})
}

func httpStatusFor(kind herror.Kind) int {
	switch kind {
	case herror.KindInvalidInput:
		return http.StatusBadRequest
	case herror.KindUnauthenticated:
		return http.StatusUnauthorized
	case herror.KindPermissionDenied:
		return http.StatusForbidden
	case herror.KindNotFound:
		return http.StatusNotFound
	case herror.KindDuplicate:
		return http.StatusConflict
	case herror.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case herror.KindNotLeader, herror.KindUnavailable:
		return http.StatusServiceUnavailable
	case herror.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func restCredential(r *http.Request) (tenantID, credential string) {
	tenantID = r.Header.Get("X-Tenant-Id")
	if v := r.Header.Get("X-Api-Key"); v != "" {
		return tenantID, v
	}
	if v := r.Header.Get("Authorization"); v != "" {
		if rest, ok := strings.CutPrefix(v, "Bearer "); ok {
			return tenantID, rest
		}
		return tenantID, v
	}
	return tenantID, ""
}

type scheduleBody struct {
	Name           string            `json:"name"`
	Labels         map[string]string `json:"labels,omitempty"`
	DurationMs     int64             `json:"duration_ms,omitempty"`
	FireTimeISO    *string           `json:"fire_time_iso,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

func (rs *RESTServer) handleTimersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rs.handleSchedule(w, r)
	case http.MethodGet:
		rs.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rs *RESTServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	tenantID, credential := restCredential(r)

	var body scheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, herror.InvalidInput("body", "malformed request body: %v", err))
		return
	}

	in := gateway.ScheduleInput{
		Name:           body.Name,
		Labels:         body.Labels,
		DurationMs:     body.DurationMs,
		Metadata:       body.Metadata,
		IdempotencyKey: body.IdempotencyKey,
	}
	if body.FireTimeISO != nil {
		t, err := parseISO(*body.FireTimeISO)
		if err != nil {
			writeError(w, herror.InvalidInput("fire_time_iso", "invalid timestamp: %v", err))
			return
		}
		in.FireAtISO = &t
	}

	timer, err := rs.gateway.Schedule(r.Context(), tenantID, credential, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, timer)
}

func (rs *RESTServer) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, credential := restCredential(r)

	var afterIndex uint64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, herror.InvalidInput("after", "invalid cursor"))
			return
		}
		afterIndex = parsed
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err == nil {
			limit = parsed
		}
	}

	timers, err := rs.gateway.List(r.Context(), tenantID, credential, afterIndex, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timers)
}

func (rs *RESTServer) handleTimerItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/timers/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/cancel"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rs.handleCancel(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rs.handleGet(w, r, rest)
}

func (rs *RESTServer) handleGet(w http.ResponseWriter, r *http.Request, timerID string) {
	tenantID, credential := restCredential(r)
	timer, err := rs.gateway.Get(r.Context(), tenantID, credential, timerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timer)
}

type cancelBody struct {
	Reason string `json:"reason,omitempty"`
}

func (rs *RESTServer) handleCancel(w http.ResponseWriter, r *http.Request, timerID string) {
	tenantID, credential := restCredential(r)

	var body cancelBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	timer, err := rs.gateway.Cancel(r.Context(), tenantID, credential, timerID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timer)
}

// handleStream serves GET /timers/stream as server-sent events, the
// REST-side equivalent of StreamTimerEvents: the handler drains a
// bounded broker subscription into the response.
func (rs *RESTServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID, credential := restCredential(r)
	fromCursor := r.URL.Query().Get("cursor")

	if _, err := rs.gateway.Subscribe(r.Context(), tenantID, credential, nil, fromCursor); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, herror.Internal(nil, "streaming unsupported by response writer"))
		return
	}

	sub, err := rs.kernel.EventBroker().Subscribe(tenantID, nil, fromCursor)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rs.kernel.EventBroker().Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\ndata: %s\n\n", ev.Cursor, data)
			flusher.Flush()
			sub.Ack(ev.Cursor)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
