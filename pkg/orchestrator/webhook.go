package orchestrator

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/horology/pkg/types"
)

// WebhookKey is the idempotency key an action dispatch forwards
// downstream so a receiver can dedupe at-least-once redeliveries.
type WebhookKey struct {
	TimerID  string
	FireIdx  uint64
}

func (k WebhookKey) String() string {
	return k.TimerID + ":" + strconv.FormatUint(k.FireIdx, 10)
}

// IdempotencyHeader is the header a webhook action forwards its
// (timer_id, fire_index) idempotency key on.
const IdempotencyHeader = "X-Horology-Idempotency-Key"

// WebhookDispatcher executes the "webhook" action kind: url, method,
// headers, body, timeout_ms parameters.
type WebhookDispatcher struct {
	Client *http.Client
}

func NewWebhookDispatcher() *WebhookDispatcher {
	return &WebhookDispatcher{Client: &http.Client{}}
}

func (d *WebhookDispatcher) Kind() types.ActionKind { return types.ActionKindWebhook }

func (d *WebhookDispatcher) Dispatch(ctx context.Context, action types.Action, key WebhookKey) error {
	url := action.Parameters["url"]
	if url == "" {
		return terminal("webhook action missing url parameter")
	}
	method := strings.ToUpper(action.Parameters["method"])
	if method == "" {
		method = http.MethodPost
	}
	body := action.Parameters["body"]

	timeout := 10 * time.Second
	if ms := action.Parameters["timeout_ms"]; ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			timeout = time.Duration(v) * time.Millisecond
		}
	}
	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dispatchCtx, method, url, strings.NewReader(body))
	if err != nil {
		return terminal("build webhook request: %v", err)
	}
	req.Header.Set(IdempotencyHeader, key.String())
	for _, pair := range strings.Split(action.Parameters["headers"], ";") {
		if name, value, ok := strings.Cut(pair, "="); ok && name != "" {
			req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return terminal("webhook dns permanently invalid: %v", err)
		}
		return retriable("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return retriable("webhook returned %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return retriable("webhook returned %d", resp.StatusCode)
	default:
		return terminal("webhook returned %d", resp.StatusCode)
	}
}
