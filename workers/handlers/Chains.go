package handlers

import (
	"net/http"
	"strings"

	"gonuorbit/types"
)

// Chains lists the chain/stablecoin pairs a payer can use:
// GET /chains?stable=USDC&flow=direct-proof
func (e *Env) Chains(w http.ResponseWriter, r *http.Request) {
	stable := types.StableSymbol(strings.ToUpper(r.URL.Query().Get("stable")))
	if stable == "" {
		stable = types.StableUSDC
	}
	if stable != types.StableUSDC && stable != types.StableUSDT {
		responseError(w, "unsupported stablecoin", "stable", http.StatusBadRequest)
		return
	}

	flow := types.FlowCrossChain
	if raw := r.URL.Query().Get("flow"); raw != "" {
		mode, ok := types.ParseFlowMode(raw)
		if !ok {
			responseError(w, "unknown flow mode", "flow", http.StatusBadRequest)
			return
		}
		flow = mode
	}

	responseJSON(w, e.Client.SupportedChains(stable, flow), http.StatusOK)
}
