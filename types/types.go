package types

// FlowMode selects how a payment is routed to the registry.
// cross-chain runs an on-chain execution step through a provider call template,
// direct-proof skips execution and fetches the proof straight from the transfer.
type FlowMode string

const (
	FlowCrossChain  FlowMode = "cross-chain"
	FlowDirectProof FlowMode = "direct-proof"
)

// ParseFlowMode recognizes only the two known flow mode strings.
func ParseFlowMode(s string) (FlowMode, bool) {
	switch FlowMode(s) {
	case FlowCrossChain:
		return FlowCrossChain, true
	case FlowDirectProof:
		return FlowDirectProof, true
	}
	return "", false
}

// OrDefault returns cross-chain for an empty flow mode.
func (m FlowMode) OrDefault() FlowMode {
	if m == "" {
		return FlowCrossChain
	}
	return m
}

type StableSymbol string

const (
	StableUSDC StableSymbol = "USDC"
	StableUSDT StableSymbol = "USDT"
)

// SessionStatus is owned by the remote service, the order below is the order
// a session moves through
type SessionStatus string

const (
	StatusAwaitingTransfer  SessionStatus = "awaiting-transfer"
	StatusTransferConfirmed SessionStatus = "transfer-confirmed"
	StatusExecuted          SessionStatus = "executed"
	StatusProofReady        SessionStatus = "proof-ready"
	StatusCompleted         SessionStatus = "completed"
)

// SessionStatuses lists every known status in lifecycle order.
var SessionStatuses = []SessionStatus{
	StatusAwaitingTransfer,
	StatusTransferConfirmed,
	StatusExecuted,
	StatusProofReady,
	StatusCompleted,
}

// Rank is the position of the status in the lifecycle, -1 when unknown.
func (s SessionStatus) Rank() int {
	for i, st := range SessionStatuses {
		if st == s {
			return i
		}
	}
	return -1
}
