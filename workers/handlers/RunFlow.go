package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gonuorbit/metrics"
	"gonuorbit/sdk"
	"gonuorbit/types"
)

// request bodies are small JSON objects
const maxBodySize = 64 << 10

func validAddress(addr string) bool {
	return common.IsHexAddress(addr) && ethav.Validate(common.HexToAddress(addr).Hex()) == nil
}

// RunFlow drives one payment session to completion and reports the outcome
// together with the emitted event sequence: POST /flow
func (e *Env) RunFlow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Warn().Err(err).Msg("Error reading request body")
		responseError(w, "Error reading request body", "", http.StatusBadRequest)
		return
	}

	var req FlowRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warn().Err(err).Msg("Error unmarshalling request body")
		responseError(w, "Cannot unmarshal input JSON", "", http.StatusBadRequest)
		return
	}

	if req.FlowMode != "" {
		if _, ok := types.ParseFlowMode(string(req.FlowMode)); !ok {
			responseError(w, "unknown flow mode", "flowMode", http.StatusBadRequest)
			return
		}
	}
	if !validAddress(req.PayTo) {
		responseError(w, "No payTo address or invalid address provided", "payTo", http.StatusBadRequest)
		return
	}
	if req.ParticipantAddress != "" && !validAddress(req.ParticipantAddress) {
		responseError(w, "Invalid participant address provided", "participantAddress", http.StatusBadRequest)
		return
	}
	if req.TransferTxHash == "" && e.Wallet == nil {
		responseError(w, "transferTxHash is required when no payer wallet is configured", "transferTxHash", http.StatusBadRequest)
		return
	}

	recorder := &sdk.EventRecorder{}
	opts := sdk.RunFlowOptions{
		SessionRequest: req.SessionRequest,
		TransferTxHash: req.TransferTxHash,
		Events:         sdk.MultiSink{recorder, &metrics.FlowSink{}, e.Events},
		StepDelay:      e.StepDelay,
		ProofDelay:     e.ProofDelay,
	}
	if req.ProviderCallID != nil {
		opts.ProviderCallID = *req.ProviderCallID
	}
	if e.Wallet != nil {
		opts.Transfer = e.Wallet.Transfer
	}

	result, err := e.Client.RunFlow(r.Context(), opts)

	resp := &FlowRunResponse{
		Status: "ok",
		Events: recorder.Types(),
		Result: result,
	}
	if len(recorder.Events) > 0 {
		resp.RunID = recorder.Events[0].RunID
	}
	if err != nil {
		resp.Status = "error"
		resp.Message = err.Error()
		responseJSON(w, resp, flowErrorCode(err))
		return
	}
	responseJSON(w, resp, http.StatusOK)
}

func flowErrorCode(err error) int {
	var apiErr *sdk.APIError
	switch {
	case errors.Is(err, sdk.ErrMissingProviderCall), errors.Is(err, sdk.ErrMissingTransfer), errors.Is(err, types.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.As(err, &apiErr), errors.Is(err, sdk.ErrUnparsable), errors.Is(err, sdk.ErrStatusRegression):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
