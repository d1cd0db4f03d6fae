package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"gonuorbit/types"
)

// BalanceEVM prints the payer wallet balance of one stablecoin in token units:
// GET /balance/{chainId}/{stable}
func (e *Env) BalanceEVM(w http.ResponseWriter, r *http.Request) {
	if e.Wallet == nil {
		responsePlain(w, []byte("no payer wallet configured"), http.StatusNotFound)
		return
	}

	chainID, err := strconv.ParseInt(chi.URLParam(r, "chainId"), 10, 64)
	if err != nil {
		responsePlain(w, []byte("invalid chain id"), http.StatusBadRequest)
		return
	}
	stable := types.StableSymbol(strings.ToUpper(chi.URLParam(r, "stable")))

	balance, err := e.Wallet.Balance(r.Context(), chainID, stable)
	if err != nil {
		responsePlain(w, []byte("error"), http.StatusInternalServerError)
		return
	}

	responsePlain(w, []byte(balance.String()), http.StatusOK)
}
