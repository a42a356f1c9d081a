package orchestrator

import (
	"context"
	"sync"

	"github.com/cuemby/horology/pkg/types"
)

// AckStatus is the outcome an AgentAdapter reports for one agent_prompt
// dispatch.
type AckStatus string

const (
	// AckAcknowledged means the agent queued the prompt for processing.
	AckAcknowledged AckStatus = "acknowledged"
	// AckDeferred means the agent is temporarily unable to accept work
	// (e.g. at capacity); retriable.
	AckDeferred AckStatus = "deferred"
	// AckRejected means the agent permanently refuses the prompt (e.g.
	// malformed payload, unknown tool); terminal.
	AckRejected AckStatus = "rejected"
)

// Ack is what an AgentAdapter returns for a dispatched prompt.
type Ack struct {
	Status AckStatus
	Detail string
}

// AgentAdapter delivers an agent_prompt action to one kind of runtime
// (e.g. a local queue, a remote agent-control-plane RPC). Adapters are
// registered with an AgentDispatcher by name and selected via the
// action's "adapter" parameter.
type AgentAdapter interface {
	Name() string
	Deliver(ctx context.Context, action types.Action, key WebhookKey) (Ack, error)
}

// AgentDispatcher executes the "agent_prompt" action kind by looking up
// the named adapter and interpreting its Ack:
// acknowledged -> success, deferred/transport-error -> retriable,
// rejected/unknown-adapter -> terminal.
type AgentDispatcher struct {
	mu       sync.RWMutex
	adapters map[string]AgentAdapter
}

func NewAgentDispatcher(adapters ...AgentAdapter) *AgentDispatcher {
	d := &AgentDispatcher{adapters: make(map[string]AgentAdapter, len(adapters))}
	for _, a := range adapters {
		d.Register(a)
	}
	return d
}

func (d *AgentDispatcher) Register(a AgentAdapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[a.Name()] = a
}

func (d *AgentDispatcher) Kind() types.ActionKind { return types.ActionKindAgentPrompt }

func (d *AgentDispatcher) Dispatch(ctx context.Context, action types.Action, key WebhookKey) error {
	name := action.Parameters["adapter"]
	d.mu.RLock()
	adapter, ok := d.adapters[name]
	d.mu.RUnlock()
	if !ok {
		return terminal("agent_prompt: unknown adapter %q", name)
	}

	ack, err := adapter.Deliver(ctx, action, key)
	if err != nil {
		return retriable("agent_prompt: adapter %s transport error: %v", name, err)
	}

	switch ack.Status {
	case AckAcknowledged:
		return nil
	case AckDeferred:
		return retriable("agent_prompt: adapter %s deferred: %s", name, ack.Detail)
	case AckRejected:
		return terminal("agent_prompt: adapter %s rejected: %s", name, ack.Detail)
	default:
		return terminal("agent_prompt: adapter %s returned unknown ack status %q", name, ack.Status)
	}
}

// LoopbackAdapter is an in-process AgentAdapter used when no external
// agent runtime is configured (single-node/dev mode): it accepts every
// prompt and hands it to a caller-supplied handler, so the orchestrator
// pipeline is exercisable without standing up a real agent fleet.
type LoopbackAdapter struct {
	name    string
	handler func(ctx context.Context, action types.Action, key WebhookKey) error
}

func NewLoopbackAdapter(name string, handler func(ctx context.Context, action types.Action, key WebhookKey) error) *LoopbackAdapter {
	return &LoopbackAdapter{name: name, handler: handler}
}

func (a *LoopbackAdapter) Name() string { return a.name }

func (a *LoopbackAdapter) Deliver(ctx context.Context, action types.Action, key WebhookKey) (Ack, error) {
	if a.handler == nil {
		return Ack{Status: AckAcknowledged}, nil
	}
	if err := a.handler(ctx, action, key); err != nil {
		return Ack{Status: AckRejected, Detail: err.Error()}, nil
	}
	return Ack{Status: AckAcknowledged}, nil
}
