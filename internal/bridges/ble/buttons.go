package ble

import (
	"sync"
	"time"

	bleadv "github.com/nerrad567/gray-logic-radio/internal/ble"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
)

// DefaultLockDelay is how long a switch is ignored after one of its buttons
// fired, so the release edge of the same push does not fire again.
const DefaultLockDelay = 600 * time.Millisecond

// ButtonAction is one MQTT publish fired by a button.
type ButtonAction struct {
	Topic   string
	Payload string
	Retain  bool
}

// ButtonBinding maps the buttons of one PTM215B switch to actions.
type ButtonBinding struct {
	Address   string
	LockDelay time.Duration
	Actions   map[int]ButtonAction
}

// ButtonRouter turns PTM215B button events into actions, with a per-switch
// lock window.
//
// Thread Safety: safe for concurrent use.
type ButtonRouter struct {
	bindings map[string]ButtonBinding
	now      func() time.Time

	mu          sync.Mutex
	lockedUntil map[string]time.Time
}

// NewButtonRouter creates a router for the given bindings.
func NewButtonRouter(bindings []ButtonBinding) *ButtonRouter {
	r := &ButtonRouter{
		bindings:    make(map[string]ButtonBinding, len(bindings)),
		now:         time.Now,
		lockedUntil: make(map[string]time.Time),
	}
	for _, b := range bindings {
		if b.LockDelay <= 0 {
			b.LockDelay = DefaultLockDelay
		}
		r.bindings[bleadv.NormalizeAddress(b.Address)] = b
	}
	return r
}

// BindingsFromConfig converts configured bindings.
func BindingsFromConfig(in []config.ButtonBinding) []ButtonBinding {
	out := make([]ButtonBinding, 0, len(in))
	for _, b := range in {
		actions := make(map[int]ButtonAction, len(b.Actions))
		for n, a := range b.Actions {
			actions[n] = ButtonAction{Topic: a.Topic, Payload: a.Payload, Retain: a.Retain}
		}
		out = append(out, ButtonBinding{Address: b.Address, LockDelay: b.LockDelay, Actions: actions})
	}
	return out
}

// Len returns the number of bound switches.
func (r *ButtonRouter) Len() int { return len(r.bindings) }

// Route returns the action for ev from address, if one should fire.
//
// Both press and release edges fire; the lock window that follows an action
// swallows the other edge of the same push.
func (r *ButtonRouter) Route(address string, ev *bleadv.ButtonEvent) (ButtonAction, bool) {
	binding, ok := r.bindings[address]
	if !ok || ev.Button == 0 {
		return ButtonAction{}, false
	}
	action, ok := binding.Actions[ev.Button]
	if !ok {
		return ButtonAction{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Before(r.lockedUntil[address]) {
		return ButtonAction{}, false
	}
	r.lockedUntil[address] = now.Add(binding.LockDelay)
	return action, true
}
