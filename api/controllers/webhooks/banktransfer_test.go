package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tabletally/tabletally-backend/internal/reconcile"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

type stubReconcile struct {
	result *reconcile.Result
	err    error
	events []reconcile.TransferEvent
}

func (s *stubReconcile) ProcessTransfer(_ context.Context, event reconcile.TransferEvent) (*reconcile.Result, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubGuard struct {
	duplicate bool
	err       error
	marked    []string
	released  []string
}

func (s *stubGuard) CheckAndMark(_ context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.marked = append(s.marked, key)
	return s.duplicate, nil
}

func (s *stubGuard) Delete(_ context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

func postTransfer(t *testing.T, handler http.HandlerFunc, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bank-transfer", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Bank-Api-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func validPayload() map[string]any {
	return map[string]any{
		"id":              int64(9001),
		"transferAmount":  42.50,
		"content":         "ORDER_64f1aa09c2d3e4f5a6b7c8d9",
		"referenceCode":   "FT20260815",
		"transactionDate": "2026-08-15 11:32:00",
	}
}

func TestBankTransferSettlesAndResponds(t *testing.T) {
	svc := &stubReconcile{result: &reconcile.Result{
		PaymentRecordID: "rec-1",
		UpdatedGroups:   []models.OrderGroup{{ID: "64f1aa09c2d3e4f5a6b7c8d9"}},
		SkippedGroupIDs: []string{},
	}}
	guard := &stubGuard{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	rec := postTransfer(t, BankTransfer(svc, guard, "secret", logg), "secret", validPayload())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected 1 reconcile call, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.ProviderTxnID != 9001 {
		t.Fatalf("unexpected provider txn id %d", event.ProviderTxnID)
	}
	if !event.Amount.Equal(decimal.NewFromFloat(42.50)) {
		t.Fatalf("unexpected amount %s", event.Amount)
	}
	if event.TransactionAt.IsZero() {
		t.Fatalf("expected parsed transaction date")
	}
	var envelope struct {
		Data struct {
			UpdatedGroups []models.OrderGroup `json:"updatedOrderGroups"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.UpdatedGroups) != 1 {
		t.Fatalf("expected 1 updated group in response, got %d", len(envelope.Data.UpdatedGroups))
	}
	if len(guard.marked) != 1 || guard.marked[0] != "9001" {
		t.Fatalf("expected idempotency mark for 9001, got %v", guard.marked)
	}
}

func TestBankTransferRejectsBadAPIKey(t *testing.T) {
	svc := &stubReconcile{}
	guard := &stubGuard{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	rec := postTransfer(t, BankTransfer(svc, guard, "secret", logg), "wrong", validPayload())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("expected no reconcile call")
	}
}

func TestBankTransferRejectsWhenNoKeyConfigured(t *testing.T) {
	svc := &stubReconcile{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	rec := postTransfer(t, BankTransfer(svc, &stubGuard{}, "", logg), "", validPayload())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with unset key, got %d", rec.Code)
	}
}

func TestBankTransferDuplicateShortCircuits(t *testing.T) {
	svc := &stubReconcile{}
	guard := &stubGuard{duplicate: true}
	logg := logger.New(logger.Options{ServiceName: "test"})

	rec := postTransfer(t, BankTransfer(svc, guard, "secret", logg), "secret", validPayload())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate delivery, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("duplicate delivery must not reach reconciliation")
	}
	var envelope struct {
		Data struct {
			UpdatedGroups []models.OrderGroup `json:"updatedOrderGroups"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.UpdatedGroups == nil || len(envelope.Data.UpdatedGroups) != 0 {
		t.Fatalf("expected empty updatedOrderGroups array, got %v", envelope.Data.UpdatedGroups)
	}
}

func TestBankTransferMalformedReference(t *testing.T) {
	svc := &stubReconcile{err: pkgerrors.New(pkgerrors.CodeMalformedReference, "no order reference found in transfer description")}
	guard := &stubGuard{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	payload := validPayload()
	payload["content"] = "coffee money"
	rec := postTransfer(t, BankTransfer(svc, guard, "secret", logg), "secret", payload)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(guard.released) != 1 {
		t.Fatalf("expected idempotency claim released on failure, got %v", guard.released)
	}
}

func TestBankTransferValidatesPayload(t *testing.T) {
	svc := &stubReconcile{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	payload := validPayload()
	payload["transferAmount"] = 0
	rec := postTransfer(t, BankTransfer(svc, &stubGuard{}, "secret", logg), "secret", payload)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("invalid payload must not reach reconciliation")
	}
}
