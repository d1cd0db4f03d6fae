package types

type CheckoutStatus string

const (
	CheckoutSuccess   CheckoutStatus = "success"
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutError     CheckoutStatus = "error"
	CheckoutCancelled CheckoutStatus = "cancelled"
)

const (
	DefaultCheckoutErrorMessage = "NuOrbit checkout failed."
	CheckoutClosedMessage       = "NuOrbit checkout popup closed before completion."
)

// CheckoutResult is the outcome of one checkout handshake. Status selects the
// active case; build values with the New*Result constructors so the per-case
// guarantees hold (success always has a flow mode, error always has a message).
type CheckoutResult struct {
	Status       CheckoutStatus `json:"status"`
	Message      string         `json:"message,omitempty"`
	FlowMode     FlowMode       `json:"flowMode,omitempty"`
	Network      string         `json:"network,omitempty"`
	NetworkLabel string         `json:"networkLabel,omitempty"`
	StableSymbol string         `json:"stableSymbol,omitempty"`

	// success only
	TargetNetwork string `json:"targetNetwork,omitempty"`
	TargetChainID *int64 `json:"targetChainId,omitempty"`
	SourceChainID *int64 `json:"sourceChainId,omitempty"`
	TransferTx    string `json:"transferTx,omitempty"`
	RegistryTx    string `json:"registryTx,omitempty"`
	ProofTx       string `json:"proofTx,omitempty"`
	ProofID       string `json:"proofId,omitempty"`
	CompletionID  string `json:"completionId,omitempty"`
	Contract      string `json:"contract,omitempty"`
	Amount        string `json:"amount,omitempty"`
	GoatAccount   string `json:"goatAccount,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	// TxHash is emitted by older checkout builds and kept for compatibility.
	TxHash string `json:"txHash,omitempty"`
}

func NewSuccessResult(r CheckoutResult) CheckoutResult {
	r.Status = CheckoutSuccess
	r.FlowMode = r.FlowMode.OrDefault()
	return r
}

func NewPendingResult(message string, mode FlowMode, network, networkLabel, stable string) CheckoutResult {
	return CheckoutResult{
		Status:       CheckoutPending,
		Message:      message,
		FlowMode:     mode,
		Network:      network,
		NetworkLabel: networkLabel,
		StableSymbol: stable,
	}
}

func NewErrorResult(message string, mode FlowMode, network, networkLabel, stable string) CheckoutResult {
	if message == "" {
		message = DefaultCheckoutErrorMessage
	}
	return CheckoutResult{
		Status:       CheckoutError,
		Message:      message,
		FlowMode:     mode,
		Network:      network,
		NetworkLabel: networkLabel,
		StableSymbol: stable,
	}
}

func NewCancelledResult(message string) CheckoutResult {
	return CheckoutResult{Status: CheckoutCancelled, Message: message}
}
