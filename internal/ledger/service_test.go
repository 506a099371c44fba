package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/pagination"
	"gorm.io/gorm"
)

type stubRepo struct {
	bySetKey map[string]*models.PaymentRecord
	created  []*models.PaymentRecord
	updated  []*models.PaymentRecord
	success  map[string]bool
	lastTx   *gorm.DB
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		bySetKey: make(map[string]*models.PaymentRecord),
		success:  make(map[string]bool),
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository {
	s.lastTx = tx
	return s
}

func (s *stubRepo) Create(ctx context.Context, record *models.PaymentRecord) error {
	s.created = append(s.created, record)
	s.bySetKey[record.GroupSetKey] = record
	return nil
}

func (s *stubRepo) Update(ctx context.Context, record *models.PaymentRecord) error {
	s.updated = append(s.updated, record)
	s.bySetKey[record.GroupSetKey] = record
	return nil
}

func (s *stubRepo) FindBySetKey(ctx context.Context, setKey string) (*models.PaymentRecord, error) {
	if record, ok := s.bySetKey[setKey]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) ExistsSuccessForGroup(ctx context.Context, groupID string) (bool, error) {
	return s.success[groupID], nil
}

func (s *stubRepo) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.PaymentRecord, error) {
	return nil, nil
}

const (
	idA = "64fa1b2c3d4e5f6a7b8c9d0e"
	idB = "aaaaaaaaaaaaaaaaaaaaaaaa"
)

func TestRecordSuccessCreatesRow(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	txnID := int64(991)
	now := time.Now()
	record, err := svc.RecordSuccess(context.Background(), &gorm.DB{}, RecordSuccessInput{
		OrderGroupIDs: []string{idB, idA},
		Amount:        decimal.NewFromInt(4550),
		ProviderTxnID: &txnID,
		TransactionAt: &now,
	})
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if record.GroupSetKey != idA+","+idB {
		t.Fatalf("unexpected set key %q", record.GroupSetKey)
	}
	if record.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected success status, got %s", record.Status)
	}
	if len(repo.created) != 1 || len(repo.updated) != 0 {
		t.Fatalf("expected one create, got %d creates %d updates", len(repo.created), len(repo.updated))
	}
}

func TestRecordSuccessUpgradesPendingRow(t *testing.T) {
	repo := newStubRepo()
	repo.bySetKey[idA] = &models.PaymentRecord{
		GroupSetKey:   idA,
		OrderGroupIDs: []string{idA},
		Status:        enums.PaymentStatusPending,
	}
	svc, _ := NewService(repo)

	record, err := svc.RecordSuccess(context.Background(), &gorm.DB{}, RecordSuccessInput{
		OrderGroupIDs: []string{idA},
		Amount:        decimal.NewFromInt(1200),
	})
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if record.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected pending row upgraded, got %s", record.Status)
	}
	if len(repo.created) != 0 || len(repo.updated) != 1 {
		t.Fatalf("expected one update, got %d creates %d updates", len(repo.created), len(repo.updated))
	}
}

func TestRecordSuccessKeepsInstructionURL(t *testing.T) {
	repo := newStubRepo()
	svc, _ := NewService(repo)

	record, err := svc.RecordSuccess(context.Background(), &gorm.DB{}, RecordSuccessInput{
		OrderGroupIDs:  []string{idA},
		Amount:         decimal.NewFromInt(700),
		InstructionURL: "https://qr.tabletally.app/pay?memo=TT",
	})
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if record.InstructionURL != "https://qr.tabletally.app/pay?memo=TT" {
		t.Fatalf("instruction url not stored, got %q", record.InstructionURL)
	}

	// a bare webhook settlement must not wipe the link issued at checkout
	record, err = svc.RecordSuccess(context.Background(), &gorm.DB{}, RecordSuccessInput{
		OrderGroupIDs: []string{idA},
		Amount:        decimal.NewFromInt(700),
	})
	if err != nil {
		t.Fatalf("second RecordSuccess: %v", err)
	}
	if record.InstructionURL != "https://qr.tabletally.app/pay?memo=TT" {
		t.Fatalf("instruction url lost on upsert, got %q", record.InstructionURL)
	}
}

func TestRecordSuccessIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	svc, _ := NewService(repo)

	input := RecordSuccessInput{OrderGroupIDs: []string{idA, idB}, Amount: decimal.NewFromInt(900)}
	if _, err := svc.RecordSuccess(context.Background(), &gorm.DB{}, input); err != nil {
		t.Fatalf("first RecordSuccess: %v", err)
	}
	if _, err := svc.RecordSuccess(context.Background(), &gorm.DB{}, input); err != nil {
		t.Fatalf("second RecordSuccess: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected a single row for the set, got %d creates", len(repo.created))
	}
}

func TestRecordSuccessRequiresGroups(t *testing.T) {
	svc, _ := NewService(newStubRepo())
	_, err := svc.RecordSuccess(context.Background(), &gorm.DB{}, RecordSuccessInput{})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreatePendingRejectsSettledSet(t *testing.T) {
	repo := newStubRepo()
	repo.bySetKey[idA] = &models.PaymentRecord{
		GroupSetKey: idA,
		Status:      enums.PaymentStatusSuccess,
	}
	svc, _ := NewService(repo)

	_, err := svc.CreatePending(context.Background(), nil, CreatePendingInput{
		OrderGroupIDs: []string{idA},
		Amount:        decimal.NewFromInt(100),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeAlreadySettled {
		t.Fatalf("expected ALREADY_SETTLED, got %v", err)
	}
}

func TestCreatePendingReturnsExistingInstruction(t *testing.T) {
	repo := newStubRepo()
	existing := &models.PaymentRecord{
		GroupSetKey: idA,
		Status:      enums.PaymentStatusPending,
	}
	repo.bySetKey[idA] = existing
	svc, _ := NewService(repo)

	record, err := svc.CreatePending(context.Background(), nil, CreatePendingInput{
		OrderGroupIDs: []string{idA},
		Amount:        decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if record != existing {
		t.Fatal("expected the existing pending instruction to be reused")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no new row, got %d creates", len(repo.created))
	}
}

func TestHasSuccessFor(t *testing.T) {
	repo := newStubRepo()
	repo.success[idA] = true
	svc, _ := NewService(repo)

	tx := &gorm.DB{}
	ok, err := svc.HasSuccessFor(context.Background(), tx, idA)
	if err != nil {
		t.Fatalf("HasSuccessFor: %v", err)
	}
	if !ok {
		t.Fatal("expected settled group to report true")
	}
	if repo.lastTx != tx {
		t.Fatal("expected the lookup to run on the caller's transaction")
	}

	ok, err = svc.HasSuccessFor(context.Background(), tx, idB)
	if err != nil {
		t.Fatalf("HasSuccessFor: %v", err)
	}
	if ok {
		t.Fatal("expected unsettled group to report false")
	}
}
