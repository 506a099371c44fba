package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tabletally/tabletally-backend/internal/reference"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Service defines operations on the payment ledger. One record exists per
// distinct set of order groups; a successful transfer for a set that already
// holds a pending instruction upgrades that row instead of creating a second
// one.
type Service interface {
	RecordSuccess(ctx context.Context, tx *gorm.DB, input RecordSuccessInput) (*models.PaymentRecord, error)
	CreatePending(ctx context.Context, tx *gorm.DB, input CreatePendingInput) (*models.PaymentRecord, error)
	HasSuccessFor(ctx context.Context, tx *gorm.DB, groupID string) (bool, error)
	ListRecords(ctx context.Context, input ListRecordsInput) ([]models.PaymentRecord, error)
}

// RecordSuccessInput captures the settled-transfer data the ledger keeps.
type RecordSuccessInput struct {
	OrderGroupIDs  []string
	Amount         decimal.Decimal
	ProviderTxnID  *int64
	ReferenceCode  *string
	TransactionAt  *time.Time
	InstructionURL string
}

// CreatePendingInput captures a payment instruction at issue time.
type CreatePendingInput struct {
	OrderGroupIDs  []string
	Amount         decimal.Decimal
	InstructionURL string
}

// ListRecordsInput pages through the ledger, newest first.
type ListRecordsInput struct {
	Cursor string
	Limit  int
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordSuccess upserts the success record for the group set inside the
// caller's transaction. Calling it twice for the same set leaves a single
// row; the second call refreshes the provider fields and is otherwise a
// no-op.
func (s *service) RecordSuccess(ctx context.Context, tx *gorm.DB, input RecordSuccessInput) (*models.PaymentRecord, error) {
	setKey := reference.GroupSetKey(input.OrderGroupIDs)
	if setKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order group id is required")
	}

	repo := s.repo.WithTx(tx)

	record, err := repo.FindBySetKey(ctx, setKey)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment record")
	}

	if record == nil {
		record = &models.PaymentRecord{
			GroupSetKey:    setKey,
			OrderGroupIDs:  input.OrderGroupIDs,
			Amount:         input.Amount,
			Method:         enums.PaymentMethodBankTransfer,
			InstructionURL: input.InstructionURL,
		}
		record.Status = enums.PaymentStatusSuccess
		record.ProviderTxnID = input.ProviderTxnID
		record.ReferenceCode = input.ReferenceCode
		record.TransactionAt = input.TransactionAt
		if err := repo.Create(ctx, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
		}
		return record, nil
	}

	record.Status = enums.PaymentStatusSuccess
	record.Amount = input.Amount
	record.ProviderTxnID = input.ProviderTxnID
	record.ReferenceCode = input.ReferenceCode
	record.TransactionAt = input.TransactionAt
	if input.InstructionURL != "" {
		record.InstructionURL = input.InstructionURL
	}
	if err := repo.Update(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment record")
	}
	return record, nil
}

// CreatePending records an issued payment instruction. A second instruction
// for the same set of groups is rejected so two QR codes can never race for
// one bill.
func (s *service) CreatePending(ctx context.Context, tx *gorm.DB, input CreatePendingInput) (*models.PaymentRecord, error) {
	setKey := reference.GroupSetKey(input.OrderGroupIDs)
	if setKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order group id is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}

	repo := s.repo.WithTx(tx)

	existing, err := repo.FindBySetKey(ctx, setKey)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment record")
	}
	if existing != nil {
		if existing.Status == enums.PaymentStatusSuccess {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadySettled, "group set already settled")
		}
		return existing, nil
	}

	record := &models.PaymentRecord{
		GroupSetKey:    setKey,
		OrderGroupIDs:  input.OrderGroupIDs,
		Amount:         input.Amount,
		Method:         enums.PaymentMethodBankTransfer,
		Status:         enums.PaymentStatusPending,
		InstructionURL: input.InstructionURL,
	}
	if err := repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
	}
	return record, nil
}

func (s *service) HasSuccessFor(ctx context.Context, tx *gorm.DB, groupID string) (bool, error) {
	if groupID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}
	ok, err := s.repo.WithTx(tx).ExistsSuccessForGroup(ctx, groupID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settled records")
	}
	return ok, nil
}

func (s *service) ListRecords(ctx context.Context, input ListRecordsInput) ([]models.PaymentRecord, error) {
	limit := pagination.NormalizeLimit(input.Limit)
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	records, err := s.repo.List(ctx, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return records, nil
}
