// Package checkout issues bank-transfer payment instructions for open order
// groups. The instruction memo embeds one reference token per group; the
// reconciler later parses those tokens back out of the provider's transfer
// description.
package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tabletally/tabletally-backend/internal/ledger"
	"github.com/tabletally/tabletally-backend/internal/ordergroups"
	"github.com/tabletally/tabletally-backend/pkg/config"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/outbox"
	"github.com/tabletally/tabletally-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Instruction is the rendered payment instruction handed to the client for
// QR display.
type Instruction struct {
	PaymentRecordID   string          `json:"payment_record_id"`
	Amount            decimal.Decimal `json:"amount"`
	Memo              string          `json:"memo"`
	InstructionURL    string          `json:"instruction_url"`
	BankAccountNumber string          `json:"bank_account_number"`
	BankCode          string          `json:"bank_code"`
}

type ServiceParams struct {
	TxRunner txRunner
	Groups   ordergroups.Service
	Ledger   ledger.Service
	Outbox   outboxEmitter
	Payments config.PaymentsConfig
}

type Service struct {
	txRunner txRunner
	groups   ordergroups.Service
	ledger   ledger.Service
	outbox   outboxEmitter
	payments config.PaymentsConfig
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Groups == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order-group service required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Payments.InstructionBaseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "instruction base url required")
	}
	return &Service{
		txRunner: params.TxRunner,
		groups:   params.Groups,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		payments: params.Payments,
	}, nil
}

// CreateInstruction sums the referenced groups and records a pending ledger
// row for the set. Every group must exist and still be payable; asking to
// pay a settled bill is a client error, not a partial success.
func (s *Service) CreateInstruction(ctx context.Context, groupIDs []string) (*Instruction, error) {
	if len(groupIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order group id is required")
	}

	total := decimal.Zero
	for _, groupID := range groupIDs {
		group, err := s.groups.Get(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if group.Status != enums.OrderGroupStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order group is not payable").
				WithDetails(map[string]any{"group_id": groupID})
		}
		total = total.Add(groupTotal(group))
	}

	memo := buildMemo(groupIDs)
	instructionURL, err := s.buildInstructionURL(total, memo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render instruction url")
	}

	var record *models.PaymentRecord
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		record, err = s.ledger.CreatePending(ctx, tx, ledger.CreatePendingInput{
			OrderGroupIDs:  groupIDs,
			Amount:         total,
			InstructionURL: instructionURL,
		})
		if err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentInstructionCreated,
			AggregateType: enums.AggregatePaymentRecord,
			AggregateID:   record.GroupSetKey,
			Data: payloads.PaymentInstructionCreated{
				PaymentRecordID: record.ID.String(),
				OrderGroupIDs:   groupIDs,
				Amount:          total,
				InstructionURL:  instructionURL,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Instruction{
		PaymentRecordID:   record.ID.String(),
		Amount:            total,
		Memo:              memo,
		InstructionURL:    instructionURL,
		BankAccountNumber: s.payments.BankAccountNumber,
		BankCode:          s.payments.BankCode,
	}, nil
}

// groupTotal prefers the stored total and falls back to summing line items
// for groups created before totals were denormalized.
func groupTotal(group *models.OrderGroup) decimal.Decimal {
	if !group.TotalAmount.IsZero() {
		return group.TotalAmount
	}
	total := decimal.Zero
	for _, order := range group.Orders {
		total = total.Add(order.Price.Mul(decimal.NewFromInt(int64(order.Quantity))))
	}
	return total
}

func buildMemo(groupIDs []string) string {
	tokens := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		tokens = append(tokens, "ORDER_"+strings.ToLower(id))
	}
	return strings.Join(tokens, " ")
}

func (s *Service) buildInstructionURL(amount decimal.Decimal, memo string) (string, error) {
	base, err := url.Parse(s.payments.InstructionBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	query := base.Query()
	query.Set("amount", amount.StringFixed(2))
	query.Set("memo", memo)
	if s.payments.BankAccountNumber != "" {
		query.Set("account", s.payments.BankAccountNumber)
	}
	if s.payments.BankCode != "" {
		query.Set("bank", s.payments.BankCode)
	}
	base.RawQuery = query.Encode()
	return base.String(), nil
}
