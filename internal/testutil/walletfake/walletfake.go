// Package walletfake provides a scriptable in-memory wallet provider for
// tests. Handlers are installed per method; events are emitted synchronously.
package walletfake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"faillapop/go-client/internal/provider"
)

// Handler answers one provider method. The returned value is marshalled to
// JSON; a blocking handler should watch ctx to model a stalled wallet.
type Handler func(ctx context.Context, params []any) (any, error)

type Call struct {
	Method string
	Params []any
}

type subscription struct {
	id      int
	handler func(json.RawMessage)
}

type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
	subs     map[string][]subscription
	nextSub  int
}

func New() *Fake {
	return &Fake{
		handlers: make(map[string]Handler),
		subs:     make(map[string][]subscription),
	}
}

// Handle installs (or replaces) the handler for method.
func (f *Fake) Handle(method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Returns installs a handler that always answers with a fixed value.
func (f *Fake) Returns(method string, value any) {
	f.Handle(method, func(context.Context, []any) (any, error) {
		return value, nil
	})
}

// Fails installs a handler that always answers with err.
func (f *Fake) Fails(method string, err error) {
	f.Handle(method, func(context.Context, []any) (any, error) {
		return nil, err
	})
}

func (f *Fake) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: params})
	h, ok := f.handlers[method]
	f.mu.Unlock()
	if !ok {
		return nil, &provider.Error{Code: provider.CodeUnsupportedMethod, Message: fmt.Sprintf("method %s not supported", method)}
	}
	value, err := h(ctx, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (f *Fake) Subscribe(event string, handler func(json.RawMessage)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	id := f.nextSub
	f.subs[event] = append(f.subs[event], subscription{id: id, handler: handler})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		kept := f.subs[event][:0]
		for _, s := range f.subs[event] {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		f.subs[event] = kept
	}, nil
}

// Emit delivers a provider event to every live subscriber.
func (f *Fake) Emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("walletfake: emit %s: %v", event, err))
	}
	f.mu.Lock()
	subs := append([]subscription(nil), f.subs[event]...)
	f.mu.Unlock()
	for _, s := range subs {
		s.handler(raw)
	}
}

// Calls returns how many requests were issued for method.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent request for method, if any.
func (f *Fake) LastCall(method string) (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i], true
		}
	}
	return Call{}, false
}

// Subscribers reports how many live subscriptions exist for event.
func (f *Fake) Subscribers(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[event])
}
