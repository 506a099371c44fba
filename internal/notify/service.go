// Package notify fans settlement events out to live clients. Everything in
// here is best effort: delivery runs after the settlement transaction has
// committed and a failed publish never unwinds the payment.
package notify

import (
	"context"

	"github.com/shopspring/decimal"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/logger"
	"go.uber.org/multierr"
)

type eventPublisher interface {
	PublishJSON(ctx context.Context, payload any, attributes map[string]string) error
}

type presenceDirectory interface {
	LiveConnection(ctx context.Context, accountID string) (string, bool, error)
}

// SettledGroup identifies one order group that moved to paid, with the
// routing data captured before the transition.
type SettledGroup struct {
	GroupID     string  `json:"group_id"`
	TableNumber *int    `json:"table_number,omitempty"`
	CustomerID  *string `json:"customer_id,omitempty"`
	GuestID     *string `json:"guest_id,omitempty"`
}

// SettlementEvent is the aggregate broadcast sent to management clients.
type SettlementEvent struct {
	PaymentRecordID string          `json:"payment_record_id"`
	Amount          decimal.Decimal `json:"amount"`
	ProviderTxnID   *int64          `json:"provider_txn_id,omitempty"`
	Groups          []SettledGroup  `json:"groups"`
}

// pushMessage is the per-recipient payload delivered over the realtime
// channel; the connection id attribute routes it to a single socket.
type pushMessage struct {
	Event   string `json:"event"`
	GroupID string `json:"group_id"`
}

type ServiceParams struct {
	Management eventPublisher
	Realtime   eventPublisher
	Presence   presenceDirectory
	Logger     *logger.Logger
}

type Service struct {
	management eventPublisher
	realtime   eventPublisher
	presence   presenceDirectory
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Management == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "management publisher required")
	}
	if params.Realtime == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "realtime publisher required")
	}
	if params.Presence == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "presence directory required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		management: params.Management,
		realtime:   params.Realtime,
		presence:   params.Presence,
		logg:       params.Logger,
	}, nil
}

// NotifySettlement broadcasts one aggregate event to the management channel
// and pushes a per-group message to each recipient with a live connection.
// Failures are collected and returned for logging; no delivery outcome
// affects any other recipient.
func (s *Service) NotifySettlement(ctx context.Context, event SettlementEvent) error {
	var errs error

	if err := s.management.PublishJSON(ctx, event, map[string]string{
		"event": "payment.settled",
	}); err != nil {
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "management broadcast"))
	}

	for _, group := range event.Groups {
		if err := s.pushToGroupOwner(ctx, group); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *Service) pushToGroupOwner(ctx context.Context, group SettledGroup) error {
	accountID, ok := ownerAccountID(group)
	if !ok {
		// anonymous walk-in with no session mapping; nothing to push
		return nil
	}

	connectionID, live, err := s.presence.LiveConnection(ctx, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presence lookup")
	}
	if !live {
		return nil
	}

	msg := pushMessage{Event: "payment.settled", GroupID: group.GroupID}
	if err := s.realtime.PublishJSON(ctx, msg, map[string]string{
		"connection_id": connectionID,
		"account_id":    accountID,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "realtime push")
	}
	return nil
}

// ownerAccountID resolves the account a group's push should target. A group
// opened by a registered customer is routed to the customer even when a
// guest session id is also present.
func ownerAccountID(group SettledGroup) (string, bool) {
	if group.CustomerID != nil && *group.CustomerID != "" {
		return *group.CustomerID, true
	}
	if group.GuestID != nil && *group.GuestID != "" {
		return *group.GuestID, true
	}
	return "", false
}
