package tracelog

import (
	"fmt"

	"github.com/womat/debug"
)

// DeadTime is the minimum spacing in seconds between two fires of the same trigger.
const DeadTime = 6 * 3600

// TriggerKind selects the predicate of a trigger.
type TriggerKind string

const (
	// RisingEdge fires when the value crosses Param1 upwards: prev <= p1 < cur.
	RisingEdge TriggerKind = "rising_edge"
	// FallingEdge fires when the value crosses Param1 downwards: prev >= p1 > cur.
	FallingEdge TriggerKind = "falling_edge"
)

// ParseTriggerKind checks the trigger type name.
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch k := TriggerKind(s); k {
	case RisingEdge, FallingEdge:
		return k, nil
	default:
		return "", fmt.Errorf("%w: bad trigger type %q", ErrInvalidArgument, s)
	}
}

// TriggerEvent is passed to the callback of a fired trigger.
type TriggerEvent struct {
	Logger    *Logger
	Kind      TriggerKind
	Param1    float64
	Param2    float64
	Prev      interface{}
	Current   interface{}
	Timestamp int64
}

// TriggerFunc is called synchronously from LogValue when a trigger fires.
type TriggerFunc func(TriggerEvent)

type trigger struct {
	kind     TriggerKind
	param1   float64
	param2   float64
	callback TriggerFunc
	// lastFire is the sample timestamp of the last fire, 0 if never fired.
	lastFire int64
}

// fires evaluates the predicate. Values without a numeric reading never fire.
func (t *trigger) fires(prev, cur interface{}) bool {
	p, ok := number(prev)
	if !ok {
		return false
	}
	c, ok := number(cur)
	if !ok {
		return false
	}

	switch t.kind {
	case RisingEdge:
		return p <= t.param1 && c > t.param1
	case FallingEdge:
		return p >= t.param1 && c < t.param1
	}
	return false
}

// AddTrigger registers callback for the given trigger kind.
// Param2 is passed through to the callback unchanged.
func (l *Logger) AddTrigger(callback TriggerFunc, kind TriggerKind, param1, param2 float64) error {
	if _, err := ParseTriggerKind(string(kind)); err != nil {
		return err
	}
	if callback == nil {
		return fmt.Errorf("%w: nil trigger callback", ErrInvalidArgument)
	}

	l.triggers = append(l.triggers, &trigger{
		kind:     kind,
		param1:   param1,
		param2:   param2,
		callback: callback,
	})
	return nil
}

// checkTriggers evaluates every trigger outside its dead time in registration order.
func (l *Logger) checkTriggers(timestamp int64, prev, cur interface{}) {
	for _, t := range l.triggers {
		if timestamp < t.lastFire+DeadTime {
			continue
		}
		if !t.fires(prev, cur) {
			continue
		}

		debug.DebugLog.Printf("field %d: %s trigger on %g fired (%v -> %v)", l.id, t.kind, t.param1, prev, cur)
		t.callback(TriggerEvent{
			Logger:    l,
			Kind:      t.kind,
			Param1:    t.param1,
			Param2:    t.param2,
			Prev:      prev,
			Current:   cur,
			Timestamp: timestamp,
		})
		t.lastFire = timestamp
	}
}
