package sdk

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonuorbit/config"
	"gonuorbit/types"
)

func int64Ptr(v int64) *int64 { return &v }

func baseSession(status types.SessionStatus, mode types.FlowMode) *types.Session {
	return &types.Session{
		SessionID:     "sess-1",
		SessionHash:   "0xhash",
		FlowMode:      mode,
		Status:        status,
		SourceChainID: int64Ptr(8453),
		AssetSymbol:   "USDC",
		AssetDecimals: 6,
		AssetAddress:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		AmountAtomic:  "1250000000000000000000001",
		SourceAddress: "0x5555555555555555555555555555555555555555",
	}
}

// crossChainService answers every route with a rotating token and an advancing status.
func crossChainService(t *testing.T) (*fakeService, *Client) {
	f, srv := newFakeService(t)
	f.respond(config.DefaultRoutes.Session, "tok-1", baseSession(types.StatusAwaitingTransfer, types.FlowCrossChain))
	f.respond(config.DefaultRoutes.Transfer, "tok-2", baseSession(types.StatusTransferConfirmed, types.FlowCrossChain))

	executed := baseSession(types.StatusExecuted, types.FlowCrossChain)
	executed.ContractCall = &types.ContractCall{TxHash: "0xexec"}
	f.respond(config.DefaultRoutes.Execute, "tok-3", executed)

	proofReady := baseSession(types.StatusProofReady, types.FlowCrossChain)
	proofReady.ContractCall = &types.ContractCall{TxHash: "0xexec"}
	proofReady.Proof = &types.Proof{ProofID: "proof-1", TxHash: "0xproof"}
	f.respond(config.DefaultRoutes.Proof, "tok-4", proofReady)

	completed := baseSession(types.StatusCompleted, types.FlowCrossChain)
	completed.ContractCall = &types.ContractCall{TxHash: "0xexec"}
	completed.Completion = &types.Completion{SubmissionID: "sub-1"}
	f.respond(config.DefaultRoutes.Complete, "tok-5", completed)

	return f, newTestClient(t, srv, nil)
}

func TestRunFlowCrossChainEndToEnd(t *testing.T) {
	f, c := crossChainService(t)
	rec := &EventRecorder{}

	var transferReq types.TransferRequest
	res, err := c.RunFlow(context.Background(), RunFlowOptions{
		SessionRequest: SessionRequest{Network: "base", ChainID: 1},
		Transfer: func(ctx context.Context, req types.TransferRequest) (string, error) {
			transferReq = req
			return "0xsource", nil
		},
		Events: rec,
	})
	require.NoError(t, err)

	assert.Equal(t, "0xexec", res.RegistryTx)
	assert.Equal(t, "0xsource", res.TransferTx)
	assert.Equal(t, "tok-5", res.SessionToken)
	assert.Equal(t, types.StatusCompleted, res.Session.Status)

	assert.Equal(t, []types.FlowEventType{
		types.EventFlowStarted,
		types.EventSessionCreated,
		types.EventTransferRequested,
		types.EventTransferSubmitted,
		types.EventTransferConfirmed,
		types.EventExecutionStarted,
		types.EventExecutionComplete,
		types.EventProofPending,
		types.EventProofReady,
		types.EventFlowCompleted,
	}, rec.Types())

	assert.Equal(t, []string{
		config.DefaultRoutes.Session,
		config.DefaultRoutes.Transfer,
		config.DefaultRoutes.Execute,
		config.DefaultRoutes.Proof,
		config.DefaultRoutes.Complete,
	}, f.Calls())

	// each call used the token returned by the previous one
	assert.Equal(t, "tok-1", f.bodies[config.DefaultRoutes.Transfer]["sessionToken"])
	assert.Equal(t, "tok-2", f.bodies[config.DefaultRoutes.Execute]["sessionToken"])
	assert.Equal(t, "tok-3", f.bodies[config.DefaultRoutes.Proof]["sessionToken"])
	assert.Equal(t, "tok-4", f.bodies[config.DefaultRoutes.Complete]["sessionToken"])
	assert.Equal(t, "registry-permit", f.bodies[config.DefaultRoutes.Session]["providerCallId"])
	assert.Equal(t, "cross-chain", f.bodies[config.DefaultRoutes.Session]["flowMode"])

	// session chain id wins over the caller's, amount keeps full precision
	assert.Equal(t, int64(8453), transferReq.ChainID)
	assert.Equal(t, "1250000000000000000000001", transferReq.AmountAtomic.String())
	assert.Equal(t, "0x5555555555555555555555555555555555555555", transferReq.Recipient)

	runID := rec.Events[0].RunID
	assert.NotEmpty(t, runID)
	for _, evt := range rec.Events {
		assert.Equal(t, runID, evt.RunID)
	}
	assert.Equal(t, types.FlowCrossChain, rec.Events[0].Mode)
	assert.Equal(t, "tok-1", rec.Events[1].SessionToken)
	assert.Equal(t, "0xsource", rec.Events[3].TxHash)
	assert.Equal(t, types.StatusExecuted, rec.Events[6].Session.Status)
}

func TestRunFlowDirectProofSkipsExecution(t *testing.T) {
	f, srv := newFakeService(t)
	f.respond(config.DefaultRoutes.Session, "tok-1", baseSession(types.StatusAwaitingTransfer, types.FlowDirectProof))
	f.respond(config.DefaultRoutes.Transfer, "tok-2", baseSession(types.StatusTransferConfirmed, types.FlowDirectProof))
	f.respond(config.DefaultRoutes.DirectProof, "tok-3", baseSession(types.StatusProofReady, types.FlowDirectProof))
	f.respond(config.DefaultRoutes.Complete, "tok-4", baseSession(types.StatusCompleted, types.FlowDirectProof))
	c := newTestClient(t, srv, func(o *Options) { o.DefaultProviderCallID = "" })
	rec := &EventRecorder{}

	res, err := c.RunFlow(context.Background(), RunFlowOptions{
		SessionRequest: SessionRequest{FlowMode: types.FlowDirectProof},
		TransferTxHash: "0xprepaid",
		Events:         rec,
		StepDelay:      time.Millisecond,
	})
	require.NoError(t, err)

	assert.Empty(t, res.RegistryTx)
	assert.Equal(t, "0xprepaid", res.TransferTx)
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.Execute)
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.Proof)
	assert.Equal(t, "0xprepaid", f.bodies[config.DefaultRoutes.DirectProof]["txHash"])
	assert.Nil(t, f.bodies[config.DefaultRoutes.Session]["providerCallId"])

	assert.Equal(t, []types.FlowEventType{
		types.EventFlowStarted,
		types.EventSessionCreated,
		types.EventTransferRequested,
		types.EventTransferSubmitted,
		types.EventTransferConfirmed,
		types.EventProofReady,
		types.EventFlowCompleted,
	}, rec.Types())
}

func TestRunFlowFollowsServerFlowMode(t *testing.T) {
	f, c := crossChainService(t)
	// requested direct-proof, the service answers with a cross-chain session
	rec := &EventRecorder{}

	_, err := c.RunFlow(context.Background(), RunFlowOptions{
		SessionRequest: SessionRequest{FlowMode: types.FlowDirectProof},
		TransferTxHash: "0xsource",
		Events:         rec,
	})
	require.NoError(t, err)
	assert.Contains(t, f.Calls(), config.DefaultRoutes.Execute)
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.DirectProof)
}

func TestRunFlowMissingProviderCall(t *testing.T) {
	f, c := crossChainService(t)
	c.defaultProviderCallID = ""
	rec := &EventRecorder{}

	_, err := c.RunFlow(context.Background(), RunFlowOptions{TransferTxHash: "0x1", Events: rec})
	assert.ErrorIs(t, err, ErrMissingProviderCall)
	assert.Empty(t, f.Calls())
	assert.Equal(t, []types.FlowEventType{types.EventFlowError}, rec.Types())
	assert.Nil(t, rec.Events[0].Session)
}

func TestRunFlowProviderCallOverride(t *testing.T) {
	f, c := crossChainService(t)
	c.defaultProviderCallID = ""

	_, err := c.RunFlow(context.Background(), RunFlowOptions{TransferTxHash: "0x1", ProviderCallID: "custom-call"})
	require.NoError(t, err)
	assert.Equal(t, "custom-call", f.bodies[config.DefaultRoutes.Session]["providerCallId"])
}

func TestRunFlowMissingTransfer(t *testing.T) {
	f, c := crossChainService(t)
	rec := &EventRecorder{}

	_, err := c.RunFlow(context.Background(), RunFlowOptions{Events: rec})
	assert.ErrorIs(t, err, ErrMissingTransfer)
	assert.Equal(t, []string{config.DefaultRoutes.Session}, f.Calls())
	assert.Equal(t, []types.FlowEventType{
		types.EventFlowStarted,
		types.EventSessionCreated,
		types.EventTransferRequested,
		types.EventFlowError,
	}, rec.Types())

	last := rec.Events[len(rec.Events)-1]
	require.NotNil(t, last.Session)
	assert.Equal(t, types.StatusAwaitingTransfer, last.Session.Status)
	assert.ErrorIs(t, last.Err, ErrMissingTransfer)
}

func TestRunFlowTransferFailure(t *testing.T) {
	f, c := crossChainService(t)
	rec := &EventRecorder{}
	walletErr := errors.New("user rejected")

	_, err := c.RunFlow(context.Background(), RunFlowOptions{
		Transfer: func(ctx context.Context, req types.TransferRequest) (string, error) { return "", walletErr },
		Events:   rec,
	})
	assert.ErrorIs(t, err, walletErr)
	assert.Equal(t, []string{config.DefaultRoutes.Session}, f.Calls())
	assert.Equal(t, types.EventFlowError, rec.Types()[len(rec.Events)-1])
}

func TestRunFlowRemoteFailureStopsSequence(t *testing.T) {
	f, c := crossChainService(t)
	f.on(config.DefaultRoutes.Execute, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"provider call reverted"}`))
	})
	rec := &EventRecorder{}

	_, err := c.RunFlow(context.Background(), RunFlowOptions{TransferTxHash: "0x1", Events: rec})
	require.Error(t, err)
	assert.Equal(t, "provider call reverted", err.Error())
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.Proof)
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.Complete)

	errorEvents := 0
	for _, evt := range rec.Events {
		if evt.Type == types.EventFlowError {
			errorEvents++
			assert.Equal(t, types.StatusTransferConfirmed, evt.Session.Status)
		}
	}
	assert.Equal(t, 1, errorEvents)
	assert.Equal(t, types.EventExecutionStarted, rec.Events[len(rec.Events)-2].Type)
}

func TestRunFlowCreateFailureHasNoSession(t *testing.T) {
	f, c := crossChainService(t)
	f.on(config.DefaultRoutes.Session, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	rec := &EventRecorder{}

	_, err := c.RunFlow(context.Background(), RunFlowOptions{TransferTxHash: "0x1", Events: rec})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, []types.FlowEventType{types.EventFlowStarted, types.EventFlowError}, rec.Types())
	assert.Nil(t, rec.Events[1].Session)
}

func TestRunFlowRejectsStatusRegression(t *testing.T) {
	f, c := crossChainService(t)
	f.respond(config.DefaultRoutes.Execute, "tok-3", baseSession(types.StatusAwaitingTransfer, types.FlowCrossChain))

	_, err := c.RunFlow(context.Background(), RunFlowOptions{TransferTxHash: "0x1"})
	assert.ErrorIs(t, err, ErrStatusRegression)
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.Proof)
}

func TestRunFlowInvalidAmount(t *testing.T) {
	f, c := crossChainService(t)
	bad := baseSession(types.StatusAwaitingTransfer, types.FlowCrossChain)
	bad.AmountAtomic = "12.5"
	f.respond(config.DefaultRoutes.Session, "tok-1", bad)

	_, err := c.RunFlow(context.Background(), RunFlowOptions{TransferTxHash: "0x1"})
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestRunFlowFallsBackToCallerChainID(t *testing.T) {
	f, c := crossChainService(t)
	unassigned := baseSession(types.StatusAwaitingTransfer, types.FlowCrossChain)
	unassigned.SourceChainID = nil
	f.respond(config.DefaultRoutes.Session, "tok-1", unassigned)

	var got int64
	_, err := c.RunFlow(context.Background(), RunFlowOptions{
		SessionRequest: SessionRequest{ChainID: 42161},
		Transfer: func(ctx context.Context, req types.TransferRequest) (string, error) {
			got = req.ChainID
			return "0x1", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42161), got)
}

func TestRunFlowPacing(t *testing.T) {
	_, c := crossChainService(t)

	started := time.Now()
	_, err := c.RunFlow(context.Background(), RunFlowOptions{
		TransferTxHash: "0x1",
		StepDelay:      20 * time.Millisecond,
		ProofDelay:     40 * time.Millisecond,
	})
	require.NoError(t, err)
	// confirm->execute, proof wait, proof->complete
	assert.GreaterOrEqual(t, time.Since(started), 80*time.Millisecond)

	_, err = c.RunFlow(context.Background(), RunFlowOptions{
		TransferTxHash: "0x1",
		StepDelay:      -time.Second,
		ProofDelay:     -time.Second,
	})
	require.NoError(t, err)
}

func TestRunFlowCancelledDuringPause(t *testing.T) {
	f, c := crossChainService(t)
	ctx, cancel := context.WithCancel(context.Background())
	rec := &EventRecorder{}

	_, err := c.RunFlow(ctx, RunFlowOptions{
		TransferTxHash: "0x1",
		StepDelay:      time.Hour,
		Events: EventSinkFunc(func(evt types.FlowEvent) {
			rec.Emit(evt)
			if evt.Type == types.EventTransferConfirmed {
				cancel()
			}
		}),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, f.Calls(), config.DefaultRoutes.Execute)
	assert.Equal(t, types.EventFlowError, rec.Types()[len(rec.Events)-1])
}

func TestMultiSink(t *testing.T) {
	a, b := &EventRecorder{}, &EventRecorder{}
	MultiSink{a, nil, b}.Emit(types.FlowEvent{Type: types.EventFlowStarted})
	assert.Len(t, a.Events, 1)
	assert.Len(t, b.Events, 1)
}
