package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gonuorbit/checkout"
	"gonuorbit/types"
)

const (
	maxCheckoutWait = 60 * time.Second
	// settled checkouts nobody collects are dropped after this long
	DefaultCheckoutRetention = 10 * time.Minute
)

func (e *Env) trackCheckout(name string, h *checkout.Handle) {
	e.checkoutsMu.Lock()
	if e.checkouts == nil {
		e.checkouts = make(map[string]*checkout.Handle)
	}
	e.checkouts[name] = h
	e.checkoutsMu.Unlock()

	retention := e.CheckoutRetention
	if retention <= 0 {
		retention = DefaultCheckoutRetention
	}
	go func() {
		<-h.Done()
		time.Sleep(retention)
		e.dropCheckout(name, h)
	}()
}

func (e *Env) findCheckout(name string) *checkout.Handle {
	e.checkoutsMu.Lock()
	defer e.checkoutsMu.Unlock()
	return e.checkouts[name]
}

func (e *Env) dropCheckout(name string, h *checkout.Handle) {
	e.checkoutsMu.Lock()
	defer e.checkoutsMu.Unlock()
	if e.checkouts[name] == h {
		delete(e.checkouts, name)
	}
}

// StartCheckout opens a checkout window through the relay: POST /checkout
func (e *Env) StartCheckout(w http.ResponseWriter, r *http.Request) {
	if e.Relay == nil {
		responseError(w, "checkout relay disabled", "", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		responseError(w, "Error reading request body", "", http.StatusBadRequest)
		return
	}
	var req CheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warn().Err(err).Msg("Error unmarshalling checkout request")
		responseError(w, "Cannot unmarshal input JSON", "", http.StatusBadRequest)
		return
	}

	if req.PayTo != "" && !validAddress(req.PayTo) {
		responseError(w, "Invalid payTo address provided", "payTo", http.StatusBadRequest)
		return
	}
	if req.FlowMode != "" {
		if _, ok := types.ParseFlowMode(string(req.FlowMode)); !ok {
			responseError(w, "unknown flow mode", "flowMode", http.StatusBadRequest)
			return
		}
	}
	if req.PrefillStable != "" {
		if st := types.StableSymbol(strings.ToUpper(req.PrefillStable)); st != types.StableUSDC && st != types.StableUSDT {
			responseError(w, "unsupported stablecoin", "prefillStable", http.StatusBadRequest)
			return
		}
	}

	opts := checkout.Options{
		BaseURL:        req.BaseURL,
		WindowName:     "nuorbit-checkout-" + uuid.NewString(),
		Price:          checkout.PriceText(req.Price),
		PayTo:          req.PayTo,
		Description:    req.Description,
		PrefillNetwork: req.PrefillNetwork,
		PrefillStable:  req.PrefillStable,
		FlowMode:       req.FlowMode,
	}
	if req.PriceUSD != nil {
		opts.Price = checkout.USD(*req.PriceUSD)
	}

	h, err := checkout.Launch(e.Relay, opts)
	if err != nil {
		log.Error().Err(err).Msg("Error launching checkout")
		responseError(w, err.Error(), "", http.StatusBadRequest)
		return
	}
	e.trackCheckout(opts.WindowName, h)

	resp := &CheckoutStartResponse{Status: "ok", Window: opts.WindowName}
	if u, ok := h.Window().(interface{ URL() string }); ok {
		resp.URL = u.URL()
	}
	responseJSON(w, resp, http.StatusOK)
}

// CheckoutResult reports the outcome of a launched checkout, waiting up to
// the "wait" query seconds for it: GET /checkout/{window}
// A settled result is handed out once.
func (e *Env) CheckoutResult(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "window")
	h := e.findCheckout(name)
	if h == nil {
		responseError(w, "unknown checkout", "window", http.StatusNotFound)
		return
	}

	var wait time.Duration
	if q := r.URL.Query().Get("wait"); q != "" {
		secs, err := strconv.ParseFloat(q, 64)
		if err != nil || secs < 0 {
			responseError(w, "invalid wait", "wait", http.StatusBadRequest)
			return
		}
		wait = min(time.Duration(secs*float64(time.Second)), maxCheckoutWait)
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	select {
	case <-h.Done():
	case <-ctx.Done():
		responseJSON(w, &CheckoutResultResponse{Status: "pending", Window: name, Connected: connected(h)}, http.StatusAccepted)
		return
	}

	res, _ := h.Result(context.Background())
	e.dropCheckout(name, h)
	responseJSON(w, &CheckoutResultResponse{Status: "ok", Window: name, Connected: connected(h), Result: &res}, http.StatusOK)
}

func connected(h *checkout.Handle) bool {
	win, ok := h.Window().(interface{ Connected() <-chan struct{} })
	if !ok {
		return false
	}
	select {
	case <-win.Connected():
		return true
	default:
		return false
	}
}

// CancelCheckout closes the checkout window: DELETE /checkout/{window}
func (e *Env) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "window")
	h := e.findCheckout(name)
	if h == nil {
		responseError(w, "unknown checkout", "window", http.StatusNotFound)
		return
	}
	h.Close()
	responseJSON(w, &CheckoutResultResponse{Status: "ok", Window: name}, http.StatusOK)
}
