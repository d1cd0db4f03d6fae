package sdk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gonuorbit/types"
)

// flowRun holds the state of one RunFlow call. The token and session are
// replaced after every remote response and never shared with another run.
type flowRun struct {
	id      string
	sink    EventSink
	token   string
	session *types.Session
}

func (r *flowRun) emit(evt types.FlowEvent) {
	evt.RunID = r.id
	evt.Timestamp = time.Now()
	if evt.Session == nil && evt.Type != types.EventFlowStarted {
		evt.Session = r.session
	}
	if r.sink != nil {
		r.sink.Emit(evt)
	}
}

// advance makes resp the current snapshot.
func (r *flowRun) advance(resp *SessionResponse) error {
	if resp == nil || resp.Session == nil {
		return errors.New("NuOrbit response is missing the session")
	}
	if r.session != nil {
		prev, next := r.session.Status.Rank(), resp.Session.Status.Rank()
		if prev >= 0 && next >= 0 && next < prev {
			return errors.Wrapf(ErrStatusRegression, "%s -> %s", r.session.Status, resp.Session.Status)
		}
	}
	r.token = resp.SessionToken
	r.session = resp.Session
	return nil
}

func (r *flowRun) fail(err error) error {
	log.Error().Err(err).Str("run", r.id).Msg("NuOrbit flow failed")
	r.emit(types.FlowEvent{Type: types.EventFlowError, Err: err})
	return err
}

// RunFlow drives one session from creation to completion:
//
//	create -> transfer -> confirm -> (execute -> proof | direct proof) -> complete
//
// The first failure aborts the run; it is reported once as a flow-error event
// and returned. Nothing is retried or rolled back.
func (c *Client) RunFlow(ctx context.Context, opts RunFlowOptions) (*FlowResult, error) {
	run := &flowRun{id: uuid.NewString(), sink: opts.Events}
	mode := opts.FlowMode.OrDefault()

	var providerCallID *string
	if mode == types.FlowCrossChain {
		id := opts.ProviderCallID
		if id == "" {
			id = c.defaultProviderCallID
		}
		if id == "" {
			return nil, run.fail(ErrMissingProviderCall)
		}
		providerCallID = &id
	}

	log.Info().Str("run", run.id).Str("mode", string(mode)).Str("network", opts.Network).Msg("Starting NuOrbit flow")
	run.emit(types.FlowEvent{Type: types.EventFlowStarted, Mode: mode})

	res, err := c.runSteps(ctx, run, opts, mode, providerCallID)
	if err != nil {
		return nil, run.fail(err)
	}

	log.Info().Str("run", run.id).Str("session", res.Session.SessionID).Str("transferTx", res.TransferTx).Str("registryTx", res.RegistryTx).Msg("NuOrbit flow completed")
	return res, nil
}

func (c *Client) runSteps(ctx context.Context, run *flowRun, opts RunFlowOptions, mode types.FlowMode, providerCallID *string) (*FlowResult, error) {
	req := opts.SessionRequest
	req.FlowMode = mode
	req.ProviderCallID = providerCallID

	created, err := c.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := run.advance(created); err != nil {
		return nil, err
	}
	run.emit(types.FlowEvent{Type: types.EventSessionCreated, SessionToken: run.token})

	transfer, err := transferRequest(run.session, opts.ChainID)
	if err != nil {
		return nil, err
	}
	run.emit(types.FlowEvent{Type: types.EventTransferRequested, Transfer: &transfer})

	txHash := opts.TransferTxHash
	if txHash == "" {
		if opts.Transfer == nil {
			return nil, ErrMissingTransfer
		}
		txHash, err = opts.Transfer(ctx, transfer)
		if err != nil {
			return nil, errors.Wrap(err, "transfer")
		}
	}
	run.emit(types.FlowEvent{Type: types.EventTransferSubmitted, TxHash: txHash})

	confirmed, err := c.ConfirmTransfer(ctx, run.token, txHash)
	if err != nil {
		return nil, err
	}
	if err := run.advance(confirmed); err != nil {
		return nil, err
	}
	run.emit(types.FlowEvent{Type: types.EventTransferConfirmed})

	if err := pause(ctx, opts.StepDelay); err != nil {
		return nil, err
	}

	// the server may have switched the flow mode, its session decides
	var registryTx string
	if run.session.FlowMode == types.FlowCrossChain {
		run.emit(types.FlowEvent{Type: types.EventExecutionStarted})
		executed, err := c.ExecuteSession(ctx, run.token)
		if err != nil {
			return nil, err
		}
		if err := run.advance(executed); err != nil {
			return nil, err
		}
		registryTx = run.session.RegistryTx()
		run.emit(types.FlowEvent{Type: types.EventExecutionComplete})

		if err := pause(ctx, opts.ProofDelay); err != nil {
			return nil, err
		}
		run.emit(types.FlowEvent{Type: types.EventProofPending})

		proof, err := c.FetchProof(ctx, run.token)
		if err != nil {
			return nil, err
		}
		if err := run.advance(proof); err != nil {
			return nil, err
		}
	} else {
		if err := pause(ctx, opts.StepDelay); err != nil {
			return nil, err
		}
		proof, err := c.FetchDirectProof(ctx, run.token, txHash)
		if err != nil {
			return nil, err
		}
		if err := run.advance(proof); err != nil {
			return nil, err
		}
	}
	run.emit(types.FlowEvent{Type: types.EventProofReady})

	if err := pause(ctx, opts.StepDelay); err != nil {
		return nil, err
	}
	completed, err := c.CompleteSession(ctx, run.token)
	if err != nil {
		return nil, err
	}
	if err := run.advance(completed); err != nil {
		return nil, err
	}
	run.emit(types.FlowEvent{Type: types.EventFlowCompleted})

	if tx := run.session.RegistryTx(); tx != "" {
		registryTx = tx
	}
	return &FlowResult{
		Session:      run.session,
		SessionToken: run.token,
		TransferTx:   txHash,
		RegistryTx:   registryTx,
	}, nil
}

func transferRequest(session *types.Session, fallbackChainID int64) (types.TransferRequest, error) {
	amount, err := session.Amount()
	if err != nil {
		return types.TransferRequest{}, err
	}
	chainID := fallbackChainID
	if session.SourceChainID != nil {
		chainID = *session.SourceChainID
	}
	return types.TransferRequest{
		ChainID:      chainID,
		TokenAddress: session.AssetAddress,
		Recipient:    session.SourceAddress,
		AmountAtomic: amount,
		Decimals:     session.AssetDecimals,
		Symbol:       session.AssetSymbol,
		Session:      session,
	}, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
