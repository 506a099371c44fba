// Package reconcile matches inbound bank transfers to open order groups.
// It is the single entry point behind the bank webhook: parse the transfer
// description, settle every referenced group in one transaction, then fan
// the outcome out to live clients.
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tabletally/tabletally-backend/internal/ledger"
	"github.com/tabletally/tabletally-backend/internal/notifications"
	"github.com/tabletally/tabletally-backend/internal/notify"
	"github.com/tabletally/tabletally-backend/internal/ordergroups"
	"github.com/tabletally/tabletally-backend/internal/reference"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/logger"
	"github.com/tabletally/tabletally-backend/pkg/metrics"
	"github.com/tabletally/tabletally-backend/pkg/outbox"
	"github.com/tabletally/tabletally-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

const (
	skipReasonAlreadyPaid   = "already_paid"
	skipReasonUnknownGroup  = "unknown_group"
	skipReasonNotPayable    = "not_payable"
	skipReasonLedgerSettled = "ledger_settled"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settlementNotifier interface {
	NotifySettlement(ctx context.Context, event notify.SettlementEvent) error
}

// TransferEvent is a settled inbound bank transfer as reported by the
// provider webhook.
type TransferEvent struct {
	ProviderTxnID int64
	Amount        decimal.Decimal
	Description   string
	ReferenceCode string
	TransactionAt time.Time
}

// Result reports which groups a transfer settled. Skipped groups were
// referenced in the memo but needed no write; the transfer itself still
// succeeds.
type Result struct {
	PaymentRecordID string              `json:"paymentRecordId"`
	UpdatedGroups   []models.OrderGroup `json:"updatedOrderGroups"`
	SkippedGroupIDs []string            `json:"skippedOrderGroups"`
}

// UpdatedGroupIDs lists the ids of the groups this transfer transitioned.
func (r *Result) UpdatedGroupIDs() []string {
	ids := make([]string, 0, len(r.UpdatedGroups))
	for _, group := range r.UpdatedGroups {
		ids = append(ids, group.ID)
	}
	return ids
}

type ServiceParams struct {
	TxRunner      txRunner
	Groups        ordergroups.Service
	Ledger        ledger.Service
	Notifications notifications.Service
	Outbox        outboxEmitter
	Notifier      settlementNotifier
	Logger        *logger.Logger
	Metrics       *metrics.ReconcileMetrics
}

type Service struct {
	txRunner      txRunner
	groups        ordergroups.Service
	ledger        ledger.Service
	notifications notifications.Service
	outbox        outboxEmitter
	notifier      settlementNotifier
	logg          *logger.Logger
	metrics       *metrics.ReconcileMetrics
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
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		txRunner:      params.TxRunner,
		groups:        params.Groups,
		ledger:        params.Ledger,
		notifications: params.Notifications,
		outbox:        params.Outbox,
		notifier:      params.Notifier,
		logg:          params.Logger,
		metrics:       params.Metrics,
	}, nil
}

// ProcessTransfer reconciles one settled transfer. Groups that are unknown,
// already paid, or otherwise unpayable are skipped without failing the
// batch; a transfer whose description references no group at all is
// rejected as malformed. The ledger row, every group transition and the
// outbox event commit in a single transaction; client fan-out runs after
// commit and never affects the outcome.
func (s *Service) ProcessTransfer(ctx context.Context, event TransferEvent) (*Result, error) {
	started := time.Now()
	ctx = s.logg.WithProviderTxnID(ctx, event.ProviderTxnID)

	groupIDs := reference.ExtractGroupIDs(event.Description)
	if len(groupIDs) == 0 {
		s.metrics.IncFailure(string(pkgerrors.CodeMalformedReference))
		s.metrics.ObserveDuration("malformed", time.Since(started))
		return nil, pkgerrors.New(pkgerrors.CodeMalformedReference, "no order reference found in transfer description").
			WithDetails(map[string]any{"provider_txn_id": event.ProviderTxnID})
	}

	result := &Result{
		UpdatedGroups:   []models.OrderGroup{},
		SkippedGroupIDs: []string{},
	}
	var settled []notify.SettledGroup

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		for _, groupID := range groupIDs {
			group, skipReason, err := s.settleGroup(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if skipReason != "" {
				s.metrics.IncSkipped(skipReason)
				s.logg.Warn(s.logg.WithGroupID(ctx, groupID), "group skipped: "+skipReason)
				result.SkippedGroupIDs = append(result.SkippedGroupIDs, groupID)
				continue
			}

			paid := *group.Group
			paid.Status = enums.OrderGroupStatusPaid
			result.UpdatedGroups = append(result.UpdatedGroups, paid)
			settled = append(settled, notify.SettledGroup{
				GroupID:     group.Group.ID,
				TableNumber: group.Group.TableNumber,
				CustomerID:  group.Group.CustomerID,
				GuestID:     group.Group.GuestID,
			})
		}

		record, err := s.ledger.RecordSuccess(ctx, tx, ledger.RecordSuccessInput{
			OrderGroupIDs: groupIDs,
			Amount:        event.Amount,
			ProviderTxnID: &event.ProviderTxnID,
			ReferenceCode: refPtr(event.ReferenceCode),
			TransactionAt: txnAtPtr(event.TransactionAt),
		})
		if err != nil {
			return err
		}
		result.PaymentRecordID = record.ID.String()

		if len(result.UpdatedGroups) == 0 {
			return nil
		}

		notice := notifications.SettlementNotice{
			GroupIDs: result.UpdatedGroupIDs(),
			Amount:   event.Amount.StringFixed(2),
		}
		if len(settled) == 1 {
			notice.TableNumber = settled[0].TableNumber
		}
		if err := s.notifications.RecordSettlement(ctx, tx, notice); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregatePaymentRecord,
			AggregateID:   record.GroupSetKey,
			Actor:         &outbox.ActorRef{Provider: "bank"},
			Data: payloads.PaymentSettled{
				PaymentRecordID: record.ID.String(),
				OrderGroupIDs:   groupIDs,
				SettledGroupIDs: result.UpdatedGroupIDs(),
				Amount:          event.Amount,
				Description:     event.Description,
				ProviderTxnID:   event.ProviderTxnID,
				ReferenceCode:   event.ReferenceCode,
			},
			Version: 1,
		})
	})
	if err != nil {
		code := pkgerrors.CodeDependency
		if appErr := pkgerrors.As(err); appErr != nil {
			code = appErr.Code()
		}
		s.metrics.IncFailure(string(code))
		s.metrics.ObserveDuration("failed", time.Since(started))
		return nil, err
	}

	for range result.UpdatedGroups {
		s.metrics.IncSettled()
	}
	s.metrics.ObserveDuration("settled", time.Since(started))

	if len(settled) > 0 {
		s.fanOut(ctx, notify.SettlementEvent{
			PaymentRecordID: result.PaymentRecordID,
			Amount:          event.Amount,
			ProviderTxnID:   &event.ProviderTxnID,
			Groups:          settled,
		})
	}

	return result, nil
}

// settleGroup attempts one group transition inside the transaction and
// translates the per-group outcomes into skip reasons. Only infrastructure
// failures propagate and abort the batch.
func (s *Service) settleGroup(ctx context.Context, tx *gorm.DB, groupID string) (*ordergroups.MarkPaidResult, string, error) {
	// the ledger is the second line of defense: groups are only paid through
	// MarkPaid, but a crash between a past ledger write and the provider ack
	// can leave a success row for a group that looks pending
	settledBefore, err := s.ledger.HasSuccessFor(ctx, tx, groupID)
	if err != nil {
		return nil, "", err
	}
	if settledBefore {
		return nil, skipReasonLedgerSettled, nil
	}

	res, err := s.groups.MarkPaid(ctx, tx, groupID)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			switch appErr.Code() {
			case pkgerrors.CodeNotFound:
				return nil, skipReasonUnknownGroup, nil
			case pkgerrors.CodeConflict:
				return nil, skipReasonNotPayable, nil
			}
		}
		return nil, "", err
	}
	if res.AlreadyPaid {
		return res, skipReasonAlreadyPaid, nil
	}
	return res, "", nil
}

// fanOut delivers best-effort notifications on a detached context so a slow
// broker cannot hold the webhook response open.
func (s *Service) fanOut(ctx context.Context, event notify.SettlementEvent) {
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, 30*time.Second)
		defer cancel()
		if err := s.notifier.NotifySettlement(ctx, event); err != nil {
			s.logg.Error(ctx, "settlement fan-out incomplete", err)
		}
	}()
}

func refPtr(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}

func txnAtPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
