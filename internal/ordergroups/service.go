package ordergroups

import (
	"context"

	"github.com/tabletally/tabletally-backend/internal/tables"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"gorm.io/gorm"
)

// Service owns the order-group payment transition. Every pending → paid
// move in the system goes through MarkPaid so the group, its child orders
// and the owning table can never drift apart.
type Service interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, groupID string) (*MarkPaidResult, error)
	Get(ctx context.Context, groupID string) (*models.OrderGroup, error)
}

// MarkPaidResult reports the outcome of a settlement attempt. Group is the
// snapshot read before any status was written, so callers can route
// notifications to the table and account that owned the group at payment
// time. AlreadyPaid means the call was a no-op.
type MarkPaidResult struct {
	Group       *models.OrderGroup
	AlreadyPaid bool
}

type ServiceParams struct {
	GroupRepo Repository
	TableRepo tables.Repository
}

type service struct {
	groupRepo Repository
	tableRepo tables.Repository
}

func NewService(params ServiceParams) (Service, error) {
	if params.GroupRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order-group repo required")
	}
	if params.TableRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "table repo required")
	}
	return &service{groupRepo: params.GroupRepo, tableRepo: params.TableRepo}, nil
}

// MarkPaid transitions a pending group to paid inside the caller's
// transaction: the group row, every child order, and the occupied table are
// written together or not at all. A group that is already paid returns
// AlreadyPaid=true and writes nothing; that signal is not an error so batch
// callers can skip and continue.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, groupID string) (*MarkPaidResult, error) {
	if groupID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction is required")
	}

	groupRepo := s.groupRepo.WithTx(tx)
	tableRepo := s.tableRepo.WithTx(tx)

	group, err := groupRepo.FindByID(ctx, groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order group")
	}

	if group.Status == enums.OrderGroupStatusPaid {
		return &MarkPaidResult{Group: group, AlreadyPaid: true}, nil
	}
	if group.Status != enums.OrderGroupStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order group is not payable")
	}

	if err := groupRepo.UpdateStatus(ctx, group.ID, enums.OrderGroupStatusPaid); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group status")
	}
	if err := groupRepo.UpdateOrdersStatus(ctx, group.ID, enums.OrderStatusPaid); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order statuses")
	}
	if group.TableNumber != nil {
		if err := tableRepo.UpdateStatus(ctx, *group.TableNumber, enums.TableStatusAvailable); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release table")
		}
	}

	return &MarkPaidResult{Group: group}, nil
}

func (s *service) Get(ctx context.Context, groupID string) (*models.OrderGroup, error) {
	if groupID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order group")
	}
	return group, nil
}
