package sdk

import "gonuorbit/types"

// EventSink receives the lifecycle events of a flow run, in order, on the
// goroutine running the flow. Emit must not block for long.
type EventSink interface {
	Emit(evt types.FlowEvent)
}

type EventSinkFunc func(evt types.FlowEvent)

func (f EventSinkFunc) Emit(evt types.FlowEvent) { f(evt) }

// MultiSink fans every event out to each non-nil sink in order.
type MultiSink []EventSink

func (m MultiSink) Emit(evt types.FlowEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(evt)
		}
	}
}

// EventRecorder keeps every event it receives.
type EventRecorder struct {
	Events []types.FlowEvent
}

func (r *EventRecorder) Emit(evt types.FlowEvent) {
	r.Events = append(r.Events, evt)
}

// Types returns the recorded event types in emission order.
func (r *EventRecorder) Types() []types.FlowEventType {
	res := make([]types.FlowEventType, len(r.Events))
	for i, e := range r.Events {
		res[i] = e.Type
	}
	return res
}
