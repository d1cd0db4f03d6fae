package types

import "time"

type FlowEventType string

const (
	EventFlowStarted       FlowEventType = "flow-started"
	EventSessionCreated    FlowEventType = "session-created"
	EventTransferRequested FlowEventType = "transfer-requested"
	EventTransferSubmitted FlowEventType = "transfer-submitted"
	EventTransferConfirmed FlowEventType = "transfer-confirmed"
	EventExecutionStarted  FlowEventType = "execution-started"
	EventExecutionComplete FlowEventType = "execution-complete"
	EventProofPending      FlowEventType = "proof-pending"
	EventProofReady        FlowEventType = "proof-ready"
	EventFlowCompleted     FlowEventType = "flow-completed"
	EventFlowError         FlowEventType = "flow-error"
)

// Terminal reports whether no further events follow in the same run.
func (t FlowEventType) Terminal() bool {
	return t == EventFlowCompleted || t == EventFlowError
}

// FlowEvent is one entry of the append-only stream emitted by a flow run.
// Only the fields relevant to Type are set.
type FlowEvent struct {
	Type      FlowEventType
	RunID     string
	Timestamp time.Time

	// flow-started
	Mode FlowMode
	// session-created
	SessionToken string
	// transfer-requested
	Transfer *TransferRequest
	// transfer-submitted
	TxHash string
	// flow-error
	Err error

	// Session is the snapshot current when the event was emitted, nil before
	// the session exists.
	Session *Session
}
