package types

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("session amountAtomic is not a base-10 integer")

type PermitDomain struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           int64  `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type PermitTypedData struct {
	Domain  PermitDomain                `json:"domain"`
	Types   map[string][]TypedDataField `json:"types"`
	Message map[string]string           `json:"message"`
}

// Permit is the signed erc20-permit authorization attached once the transfer is confirmed.
type Permit struct {
	AssetSymbol     string          `json:"assetSymbol"`
	AssetAddress    string          `json:"assetAddress"`
	AmountAtomic    string          `json:"amountAtomic"`
	AmountFormatted string          `json:"amountFormatted"`
	Decimals        int             `json:"decimals"`
	Deadline        int64           `json:"deadline"`
	Signature       string          `json:"signature"`
	Signer          string          `json:"signer"`
	Spender         string          `json:"spender"`
	PermitType      string          `json:"permitType"`
	IssuedBy        string          `json:"issuedBy"`
	TypedData       PermitTypedData `json:"typedData"`
	Nonce           string          `json:"nonce"`
	ValueAtomic     string          `json:"valueAtomic"`
}

// ContractCall is the receipt of the cross-chain execution step.
type ContractCall struct {
	To          string `json:"to"`
	Data        string `json:"data"`
	Description string `json:"description"`
	TxHash      string `json:"txHash"`
	BlockNumber *int64 `json:"blockNumber,omitempty"`
}

// Proof is the registry receipt attesting the payment was recorded.
type Proof struct {
	ProofID         string `json:"proofId"`
	ContractAddress string `json:"contractAddress"`
	GoatAccount     string `json:"goatAccount"`
	Payer           string `json:"payer"`
	AmountAtomic    string `json:"amountAtomic"`
	AmountFormatted string `json:"amountFormatted"`
	Stablecoin      string `json:"stablecoin"`
	SessionHash     string `json:"sessionHash"`
	RecordedAt      int64  `json:"recordedAt"`
	TxHash          string `json:"txHash"`
	BlockNumber     *int64 `json:"blockNumber,omitempty"`
}

// PendingProof marks a direct proof that was submitted but not yet recorded.
type PendingProof struct {
	ProofHash   string `json:"proofHash"`
	TxHash      string `json:"txHash"`
	InitiatedAt int64  `json:"initiatedAt"`
}

type Completion struct {
	SubmissionID   string `json:"submissionId"`
	SubmittedAt    int64  `json:"submittedAt"`
	AcknowledgedBy string `json:"acknowledgedBy"`
}

// Session is a snapshot of the server-owned payment session. It is replaced
// wholesale by every remote response and never mutated locally.
type Session struct {
	SessionID       string        `json:"sessionId"`
	SessionHash     string        `json:"sessionHash"`
	FlowMode        FlowMode      `json:"flowMode"`
	StableSymbol    StableSymbol  `json:"stableSymbol"`
	Network         string        `json:"network"`
	ChainLabel      string        `json:"chainLabel"`
	SourceChainID   *int64        `json:"sourceChainId"`
	PriceUSD        float64       `json:"priceUsd"`
	PayTo           string        `json:"payTo"`
	Description     string        `json:"description"`
	AssetSymbol     string        `json:"assetSymbol"`
	AssetDecimals   int           `json:"assetDecimals"`
	AssetAddress    string        `json:"assetAddress"`
	AmountAtomic    string        `json:"amountAtomic"`
	AmountFormatted string        `json:"amountFormatted"`
	GoatAccount     string        `json:"goatAccount"`
	SourceAddress   string        `json:"sourceAddress"`
	TargetAddress   string        `json:"targetAddress"`
	TargetChainID   int64         `json:"targetChainId"`
	TargetNetwork   string        `json:"targetNetwork"`
	Status          SessionStatus `json:"status"`
	ProviderCallID  *string       `json:"providerCallId,omitempty"`
	CreatedAt       int64         `json:"createdAt"`
	UpdatedAt       int64         `json:"updatedAt"`
	SourceTxHash    string        `json:"sourceTxHash,omitempty"`

	Permit       *Permit       `json:"permit,omitempty"`
	ContractCall *ContractCall `json:"contractCall,omitempty"`
	Proof        *Proof        `json:"proof,omitempty"`
	PendingProof *PendingProof `json:"pendingProof,omitempty"`
	Completion   *Completion   `json:"completion,omitempty"`
}

// Amount parses the atomic amount as an arbitrary precision integer.
func (s *Session) Amount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s.AmountAtomic, 10)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", s.AmountAtomic)
	}
	return amount, nil
}

// AmountDecimal scales the atomic amount by the asset decimals.
func (s *Session) AmountDecimal() (decimal.Decimal, error) {
	amount, err := s.Amount()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(amount, -int32(s.AssetDecimals)), nil
}

// RegistryTx is the execution receipt hash, empty when there is none.
func (s *Session) RegistryTx() string {
	if s == nil || s.ContractCall == nil {
		return ""
	}
	return s.ContractCall.TxHash
}

// TransferRequest is what the payer's wallet has to send on the source chain.
type TransferRequest struct {
	ChainID      int64    `json:"chainId"`
	TokenAddress string   `json:"tokenAddress"`
	Recipient    string   `json:"recipient"`
	AmountAtomic *big.Int `json:"amountAtomic"`
	Decimals     int      `json:"decimals"`
	Symbol       string   `json:"symbol"`
	Session      *Session `json:"session"`
}
