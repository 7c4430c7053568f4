package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"cipcagent/internal/domain"
	"cipcagent/internal/payment"
)

type PaymentProcessor interface {
	Process(ctx context.Context, n payment.Notification) (payment.Result, error)
}

type Webhook struct {
	Processor PaymentProcessor
}

type webhookResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	LeadID        string `json:"lead_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (wh *Webhook) Register(m *mux.Router) {
	m.HandleFunc("/v1/webhooks/payment", wh.handlePayment).Methods(http.MethodPost)
}

func (wh *Webhook) handlePayment(w http.ResponseWriter, r *http.Request) {
	n, err := payment.ParseNotification(http.MaxBytesReader(w, r.Body, payment.MaxBodyBytes))
	if err != nil {
		slog.Warn("malformed payment notification", "err", err, "request_id", RequestIDFrom(r.Context()))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := wh.Processor.Process(r.Context(), n)
	switch {
	case errors.Is(err, domain.ErrSignatureMismatch):
		writeError(w, http.StatusUnauthorized, ErrInvalidSignature)
		return
	case err != nil:
		slog.Error("payment notification processing failed",
			"err", err,
			"transaction_id", n.TransactionID(),
			"request_id", RequestIDFrom(r.Context()),
		)
		// 5xx makes the provider retry later
		writeError(w, http.StatusInternalServerError, ErrDependency)
		return
	}

	if res.Outcome == payment.OutcomePending {
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "Payment not completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Success:       true,
		Message:       "Payment processed successfully",
		LeadID:        res.LeadID,
		TransactionID: res.TransactionID,
	})
}
