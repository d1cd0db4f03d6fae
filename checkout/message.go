package checkout

import (
	"encoding/json"
	"math"

	"gonuorbit/types"
)

// MessageType is the discriminator carried by checkout outcome messages.
const MessageType = "x402-payment"

// payload reads fields of an untrusted message. A field of the wrong type
// reads as absent.
type payload map[string]any

func (p payload) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p payload) chainID(key string) *int64 {
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil
	}
	id := int64(f)
	return &id
}

func (p payload) flowMode() types.FlowMode {
	mode, _ := types.ParseFlowMode(p.str("flowMode"))
	return mode
}

// ParseMessage turns an inbound message payload into a checkout result.
// ok is false when data is not a checkout outcome message at all.
func ParseMessage(data any) (res types.CheckoutResult, ok bool) {
	fields, isObject := data.(map[string]any)
	if !isObject {
		return res, false
	}
	p := payload(fields)
	if p.str("type") != MessageType {
		return res, false
	}

	status := types.CheckoutError
	if s, isString := p["status"].(string); isString {
		status = types.CheckoutStatus(s)
	}

	network := p.str("network")
	networkLabel := p.str("networkLabel")
	stable := p.str("stableSymbol")
	mode := p.flowMode()

	switch status {
	case types.CheckoutSuccess:
		// older checkout builds only post txHash
		transferTx, isString := p["transferTx"].(string)
		if !isString {
			transferTx = p.str("txHash")
		}
		return types.NewSuccessResult(types.CheckoutResult{
			FlowMode:      mode,
			Network:       network,
			NetworkLabel:  networkLabel,
			StableSymbol:  stable,
			TargetNetwork: p.str("targetNetwork"),
			TargetChainID: p.chainID("targetChainId"),
			SourceChainID: p.chainID("sourceChainId"),
			TransferTx:    transferTx,
			RegistryTx:    p.str("registryTx"),
			ProofTx:       p.str("proofTx"),
			ProofID:       p.str("proofId"),
			CompletionID:  p.str("completionId"),
			Contract:      p.str("contract"),
			Amount:        p.str("amount"),
			GoatAccount:   p.str("goatAccount"),
			SessionID:     p.str("sessionId"),
			TxHash:        p.str("txHash"),
		}), true
	case types.CheckoutPending:
		return types.NewPendingResult(p.str("message"), mode, network, networkLabel, stable), true
	default:
		return types.NewErrorResult(p.str("message"), mode, network, networkLabel, stable), true
	}
}
