package httpinterface

import (
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
)

type errorResponse struct {
	Error string `json:"error"`
}

type fingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
}

type sessionInfo struct {
	ID              string `json:"id"`
	Fingerprint     string `json:"fingerprint"`
	Address         string `json:"address"`
	RequestedAmount string `json:"requestedAmount"`
	CreatedAt       int64  `json:"createdAt"`
	ConfirmedTxID   string `json:"confirmedTxId,omitempty"`
	ConfirmedAt     int64  `json:"confirmedAt,omitempty"`
	Unlocked        bool   `json:"unlocked"`
}

func newSessionInfo(s domain.Session) sessionInfo {
	return sessionInfo{
		ID:              s.ID,
		Fingerprint:     s.Fingerprint,
		Address:         s.Address,
		RequestedAmount: s.RequestedAmount.String(),
		CreatedAt:       s.CreatedAt,
		ConfirmedTxID:   s.ConfirmedTxID,
		ConfirmedAt:     s.ConfirmedAt,
		Unlocked:        s.IsUnlocked(),
	}
}

type listSessionsResponse struct {
	Sessions []sessionInfo `json:"sessions"`
}

type payResponse struct {
	TxID string `json:"txid"`
}

type transactionsResponse struct {
	Address      string               `json:"address"`
	Transactions []domain.Transaction `json:"transactions"`
}

type transactionListResponse struct {
	Count        int                  `json:"count"`
	Skip         int                  `json:"skip"`
	Transactions []domain.Transaction `json:"transactions"`
}

type outputInfo struct {
	Index   int    `json:"index"`
	Address string `json:"address,omitempty"`
	Amount  string `json:"amount"`
	Script  string `json:"script,omitempty"`
	Data    string `json:"data,omitempty"`
}

type transactionDetailInfo struct {
	TxID          string       `json:"id"`
	Confirmations int          `json:"confirmations"`
	BlockHash     string       `json:"blockHash,omitempty"`
	BlockTime     int64        `json:"blockTime,omitempty"`
	Outputs       []outputInfo `json:"outputs"`
}

func newTransactionDetailInfo(d explorer.TransactionDetail) *transactionDetailInfo {
	outputs := make([]outputInfo, 0, len(d.Outputs))
	for _, out := range d.Outputs {
		outputs = append(outputs, outputInfo{
			Index:   out.Index,
			Address: out.Address,
			Amount:  out.Amount.String(),
			Script:  out.Script,
			Data:    out.Data,
		})
	}
	return &transactionDetailInfo{
		TxID:          d.TxID,
		Confirmations: d.Confirmations,
		BlockHash:     d.BlockHash,
		BlockTime:     d.BlockTime,
		Outputs:       outputs,
	}
}

type transactionResponse struct {
	Transaction *domain.Transaction    `json:"transaction,omitempty"`
	Detail      *transactionDetailInfo `json:"detail,omitempty"`
}

type anchorResponse struct {
	TxID        string `json:"txid"`
	Fingerprint string `json:"fingerprint"`
	Anchored    bool   `json:"anchored"`
	Reason      string `json:"reason,omitempty"`
}

type addWebhookRequest struct {
	Topic    string `json:"topic"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret"`
}

type addWebhookResponse struct {
	ID string `json:"id"`
}

type webhookInfo struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"isSecured"`
}

type listWebhooksResponse struct {
	Webhooks []webhookInfo `json:"webhooks"`
}

func newWebhookInfo(s ports.Subscription) webhookInfo {
	return webhookInfo{
		ID:        s.Id(),
		Topic:     s.Topic(),
		Endpoint:  s.NotifyAt(),
		IsSecured: s.IsSecured(),
	}
}
