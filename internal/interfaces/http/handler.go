package httpinterface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
	"github.com/tdex-network/tdex-notary/pkg/fingerprint"
)

const uploadFormField = "file"

// WebhookService is the subset of the webhook publisher exposed through the
// HTTP interface.
type WebhookService interface {
	AddWebhook(ctx context.Context, topic, endpoint, secret string) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, topic string) ([]ports.Subscription, error)
}

type handler struct {
	registrationSvc   application.RegistrationService
	reconciliationSvc application.ReconciliationService
	webhookSvc        WebhookService
}

func newHandler(
	registrationSvc application.RegistrationService,
	reconciliationSvc application.ReconciliationService,
	webhookSvc WebhookService,
) *handler {
	return &handler{registrationSvc, reconciliationSvc, webhookSvc}
}

// fingerprint returns the digest of the request body without registering it.
func (h *handler) fingerprint(w http.ResponseWriter, req *http.Request) {
	digest, err := fingerprint.FromSizedReader(
		req.Context(), req.Body, req.ContentLength,
	)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, fingerprintResponse{digest.String()})
}

// uploadDocument fingerprints the multipart file while it's streamed and
// opens a registration session for it. A client disconnecting before the
// upload completes cancels the job.
func (h *handler) uploadDocument(w http.ResponseWriter, req *http.Request) {
	reader, err := req.MultipartReader()
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	size := int64(-1)
	if str := req.URL.Query().Get("size"); len(str) > 0 {
		size, err = strconv.ParseInt(str, 10, 64)
		if err != nil || size < 0 {
			writeError(w, fmt.Errorf("invalid size %s", str), http.StatusBadRequest)
			return
		}
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			writeError(
				w, fmt.Errorf("missing form field %s", uploadFormField),
				http.StatusBadRequest,
			)
			return
		}
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		if part.FormName() != uploadFormField {
			part.Close()
			continue
		}

		job := h.registrationSvc.StartUpload(req.Context(), part, size)
		result := <-job.Done()
		part.Close()

		if result.Err != nil {
			writeError(w, result.Err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, newSessionInfo(*result.Session))
		return
	}
}

func (h *handler) listSessions(w http.ResponseWriter, req *http.Request) {
	sessions, err := h.registrationSvc.ListSessions(req.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	infos := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, newSessionInfo(s))
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{infos})
}

func (h *handler) getSession(w http.ResponseWriter, req *http.Request) {
	session, err := h.registrationSvc.GetSession(
		req.Context(), chi.URLParam(req, "id"),
	)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newSessionInfo(*session))
}

func (h *handler) closeSession(w http.ResponseWriter, req *http.Request) {
	if err := h.registrationSvc.Close(
		req.Context(), chi.URLParam(req, "id"),
	); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) paySession(w http.ResponseWriter, req *http.Request) {
	txid, err := h.registrationSvc.Pay(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		writeError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, payResponse{txid})
}

func (h *handler) listTransactions(w http.ResponseWriter, req *http.Request) {
	address := chi.URLParam(req, "address")
	writeJSON(w, http.StatusOK, transactionsResponse{
		Address:      address,
		Transactions: h.reconciliationSvc.Snapshot(address),
	})
}

// listAllTransactions pages through the records of every address, most
// recently observed first. count defaults to 10 and skip to 0.
func (h *handler) listAllTransactions(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	count, err := parseIntParam(query.Get("count"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	skip, err := parseIntParam(query.Get("skip"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	page := domain.NewPage(count, skip)
	writeJSON(w, http.StatusOK, transactionListResponse{
		Count:        page.Count,
		Skip:         page.Skip,
		Transactions: h.reconciliationSvc.ListTransactions(page),
	})
}

func (h *handler) refreshAddress(w http.ResponseWriter, req *http.Request) {
	address := chi.URLParam(req, "address")
	txs, err := h.reconciliationSvc.Refresh(req.Context(), address)
	if err != nil {
		writeError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{
		Address:      address,
		Transactions: txs,
	})
}

// getTransaction returns the merged state of the tx. With detail=true, the
// full tx is fetched from the ledger service and merged first.
func (h *handler) getTransaction(w http.ResponseWriter, req *http.Request) {
	txid := chi.URLParam(req, "id")

	resp := transactionResponse{}
	if detail, _ := strconv.ParseBool(req.URL.Query().Get("detail")); detail {
		d, err := h.reconciliationSvc.GetTransactionDetail(req.Context(), txid)
		if err != nil {
			writeError(w, err, http.StatusBadGateway)
			return
		}
		resp.Detail = newTransactionDetailInfo(*d)
	}

	if tx, ok := h.reconciliationSvc.Lookup(txid); ok {
		resp.Transaction = tx
	}
	if resp.Transaction == nil && resp.Detail == nil {
		writeError(w, errTransactionNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) verifyAnchor(w http.ResponseWriter, req *http.Request) {
	txid := chi.URLParam(req, "id")
	digest := req.URL.Query().Get("fingerprint")

	resp := anchorResponse{TxID: txid, Fingerprint: digest, Anchored: true}
	err := h.registrationSvc.VerifyAnchor(req.Context(), txid, digest)
	if err != nil {
		if !errors.Is(err, application.ErrAnchorNotFound) &&
			!errors.Is(err, application.ErrAnchorMismatch) {
			writeError(w, err, http.StatusBadGateway)
			return
		}
		resp.Anchored = false
		resp.Reason = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listWebhooks(w http.ResponseWriter, req *http.Request) {
	hooks, err := h.webhookSvc.ListWebhooks(
		req.Context(), req.URL.Query().Get("topic"),
	)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	infos := make([]webhookInfo, 0, len(hooks))
	for _, hook := range hooks {
		infos = append(infos, newWebhookInfo(hook))
	}
	writeJSON(w, http.StatusOK, listWebhooksResponse{infos})
}

func (h *handler) addWebhook(w http.ResponseWriter, req *http.Request) {
	var body addWebhookRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	id, err := h.webhookSvc.AddWebhook(
		req.Context(), body.Topic, body.Endpoint, body.Secret,
	)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	log.Debugf("http: added webhook %s for topic %s", id, body.Topic)
	writeJSON(w, http.StatusOK, addWebhookResponse{id})
}

func (h *handler) removeWebhook(w http.ResponseWriter, req *http.Request) {
	if err := h.webhookSvc.RemoveWebhook(
		req.Context(), chi.URLParam(req, "id"),
	); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
