package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

type stubPublisher struct {
	payloads []any
	attrs    []map[string]string
	err      error
}

func (s *stubPublisher) PublishJSON(ctx context.Context, payload any, attributes map[string]string) error {
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	s.attrs = append(s.attrs, attributes)
	return nil
}

type stubPresence struct {
	connections map[string]string
	err         error
	lookups     []string
}

func (s *stubPresence) LiveConnection(ctx context.Context, accountID string) (string, bool, error) {
	s.lookups = append(s.lookups, accountID)
	if s.err != nil {
		return "", false, s.err
	}
	conn, ok := s.connections[accountID]
	return conn, ok, nil
}

func strPtr(v string) *string { return &v }

func newTestService(t *testing.T, management, realtime *stubPublisher, presence *stubPresence) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Management: management,
		Realtime:   realtime,
		Presence:   presence,
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNotifySettlementBroadcastsAndPushes(t *testing.T) {
	management := &stubPublisher{}
	realtime := &stubPublisher{}
	presence := &stubPresence{connections: map[string]string{"cust-1": "conn-9"}}
	svc := newTestService(t, management, realtime, presence)

	err := svc.NotifySettlement(context.Background(), SettlementEvent{
		PaymentRecordID: "rec-1",
		Amount:          decimal.NewFromInt(4550),
		Groups: []SettledGroup{
			{GroupID: "64fa1b2c3d4e5f6a7b8c9d0e", CustomerID: strPtr("cust-1")},
		},
	})
	if err != nil {
		t.Fatalf("NotifySettlement: %v", err)
	}
	if len(management.payloads) != 1 {
		t.Fatalf("expected one management broadcast, got %d", len(management.payloads))
	}
	if len(realtime.payloads) != 1 {
		t.Fatalf("expected one push, got %d", len(realtime.payloads))
	}
	if realtime.attrs[0]["connection_id"] != "conn-9" {
		t.Fatalf("push must target the live connection, got %v", realtime.attrs[0])
	}
}

func TestNotifySettlementPrefersCustomerOverGuest(t *testing.T) {
	management := &stubPublisher{}
	realtime := &stubPublisher{}
	presence := &stubPresence{connections: map[string]string{
		"cust-1":  "conn-c",
		"guest-1": "conn-g",
	}}
	svc := newTestService(t, management, realtime, presence)

	err := svc.NotifySettlement(context.Background(), SettlementEvent{
		Groups: []SettledGroup{
			{GroupID: "64fa1b2c3d4e5f6a7b8c9d0e", CustomerID: strPtr("cust-1"), GuestID: strPtr("guest-1")},
		},
	})
	if err != nil {
		t.Fatalf("NotifySettlement: %v", err)
	}
	if len(presence.lookups) != 1 || presence.lookups[0] != "cust-1" {
		t.Fatalf("expected a single customer lookup, got %v", presence.lookups)
	}
	if realtime.attrs[0]["connection_id"] != "conn-c" {
		t.Fatalf("expected customer connection, got %v", realtime.attrs[0])
	}
}

func TestNotifySettlementGuestFallback(t *testing.T) {
	management := &stubPublisher{}
	realtime := &stubPublisher{}
	presence := &stubPresence{connections: map[string]string{"guest-1": "conn-g"}}
	svc := newTestService(t, management, realtime, presence)

	err := svc.NotifySettlement(context.Background(), SettlementEvent{
		Groups: []SettledGroup{
			{GroupID: "64fa1b2c3d4e5f6a7b8c9d0e", GuestID: strPtr("guest-1")},
		},
	})
	if err != nil {
		t.Fatalf("NotifySettlement: %v", err)
	}
	if realtime.attrs[0]["account_id"] != "guest-1" {
		t.Fatalf("expected guest routing, got %v", realtime.attrs[0])
	}
}

func TestNotifySettlementSkipsOfflineAndUnmappedOwners(t *testing.T) {
	management := &stubPublisher{}
	realtime := &stubPublisher{}
	presence := &stubPresence{connections: map[string]string{}}
	svc := newTestService(t, management, realtime, presence)

	err := svc.NotifySettlement(context.Background(), SettlementEvent{
		Groups: []SettledGroup{
			{GroupID: "64fa1b2c3d4e5f6a7b8c9d0e", CustomerID: strPtr("cust-offline")},
			{GroupID: "aaaaaaaaaaaaaaaaaaaaaaaa"},
		},
	})
	if err != nil {
		t.Fatalf("missing connections are not errors: %v", err)
	}
	if len(realtime.payloads) != 0 {
		t.Fatalf("expected no pushes, got %d", len(realtime.payloads))
	}
	if len(management.payloads) != 1 {
		t.Fatal("management broadcast must still go out")
	}
}

func TestNotifySettlementPushFailureDoesNotBlockOthers(t *testing.T) {
	management := &stubPublisher{}
	realtime := &stubPublisher{err: errors.New("broker down")}
	presence := &stubPresence{connections: map[string]string{
		"cust-1": "conn-1",
		"cust-2": "conn-2",
	}}
	svc := newTestService(t, management, realtime, presence)

	err := svc.NotifySettlement(context.Background(), SettlementEvent{
		Groups: []SettledGroup{
			{GroupID: "64fa1b2c3d4e5f6a7b8c9d0e", CustomerID: strPtr("cust-1")},
			{GroupID: "aaaaaaaaaaaaaaaaaaaaaaaa", CustomerID: strPtr("cust-2")},
		},
	})
	if err == nil {
		t.Fatal("expected aggregated push errors")
	}
	if len(presence.lookups) != 2 {
		t.Fatalf("second recipient must still be attempted, got lookups %v", presence.lookups)
	}
	if len(management.payloads) != 1 {
		t.Fatal("broadcast must not be affected by push failures")
	}
}

func TestNotifySettlementManagementFailureStillPushes(t *testing.T) {
	management := &stubPublisher{err: errors.New("broker down")}
	realtime := &stubPublisher{}
	presence := &stubPresence{connections: map[string]string{"cust-1": "conn-1"}}
	svc := newTestService(t, management, realtime, presence)

	err := svc.NotifySettlement(context.Background(), SettlementEvent{
		Groups: []SettledGroup{
			{GroupID: "64fa1b2c3d4e5f6a7b8c9d0e", CustomerID: strPtr("cust-1")},
		},
	})
	if err == nil {
		t.Fatal("expected broadcast error surfaced for logging")
	}
	if len(realtime.payloads) != 1 {
		t.Fatal("push must still be attempted after a broadcast failure")
	}
}
