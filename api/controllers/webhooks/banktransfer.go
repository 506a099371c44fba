package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tabletally/tabletally-backend/api/responses"
	"github.com/tabletally/tabletally-backend/api/validators"
	"github.com/tabletally/tabletally-backend/internal/reconcile"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

const apiKeyHeader = "X-Bank-Api-Key"

type reconcileService interface {
	ProcessTransfer(ctx context.Context, event reconcile.TransferEvent) (*reconcile.Result, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// bankTransferPayload mirrors the provider's settled-transfer notification;
// fields the reconciler does not use are ignored by the decoder.
type bankTransferPayload struct {
	ID              int64   `json:"id" validate:"required"`
	TransferAmount  float64 `json:"transferAmount" validate:"gt=0"`
	Content         string  `json:"content" validate:"required"`
	ReferenceCode   string  `json:"referenceCode"`
	TransactionDate string  `json:"transactionDate"`
}

// BankTransfer handles the provider's settled-transfer callback.
func BankTransfer(svc reconcileService, guard webhookGuard, apiKey string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		provided := r.Header.Get(apiKeyHeader)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
			return
		}

		var payload bankTransferPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventID := strconv.FormatInt(payload.ID, 10)
		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, reconcile.Result{
				UpdatedGroups:   []models.OrderGroup{},
				SkippedGroupIDs: []string{},
			})
			return
		}

		result, err := svc.ProcessTransfer(ctx, toTransferEvent(payload))
		if err != nil {
			// release the claim so the provider's retry is not swallowed
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithProviderTxnID(ctx, payload.ID), "bank transfer processed")
		}
		responses.WriteSuccess(w, result)
	}
}

func toTransferEvent(payload bankTransferPayload) reconcile.TransferEvent {
	event := reconcile.TransferEvent{
		ProviderTxnID: payload.ID,
		Amount:        decimal.NewFromFloat(payload.TransferAmount),
		Description:   payload.Content,
		ReferenceCode: payload.ReferenceCode,
	}
	if payload.TransactionDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, payload.TransactionDate); err == nil {
				event.TransactionAt = t
				break
			}
		}
	}
	return event
}
