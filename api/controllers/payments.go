package controllers

import (
	"net/http"
	"strconv"

	"github.com/tabletally/tabletally-backend/api/responses"
	"github.com/tabletally/tabletally-backend/api/validators"
	checkoutsvc "github.com/tabletally/tabletally-backend/internal/checkout"
	"github.com/tabletally/tabletally-backend/internal/ledger"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

// PaymentsList returns the ledger, newest first, cursor-paginated.
func PaymentsList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err == nil {
				limit = parsed
			}
		}

		records, err := svc.ListRecords(ctx, ledger.ListRecordsInput{
			Cursor: r.URL.Query().Get("cursor"),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": records})
	}
}

type paymentInstructionBody struct {
	OrderGroupIDs []string `json:"order_group_ids" validate:"required,min=1,dive,len=24,hexadecimal"`
}

// CheckoutPaymentInstruction issues a bank-transfer instruction for a set of
// open order groups.
func CheckoutPaymentInstruction(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body paymentInstructionBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		instruction, err := svc.CreateInstruction(ctx, body.OrderGroupIDs)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, instruction)
	}
}
