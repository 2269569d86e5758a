package mocks

import (
	"context"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of lifecycle.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateRepair(ctx context.Context, in models.RepairCreateInput, trackingCode string) (*models.Snapshot, error) {
	args := m.Called(ctx, in, trackingCode)
	snap, _ := args.Get(0).(*models.Snapshot)
	return snap, args.Error(1)
}

func (m *MockRepository) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetRepairDetail(ctx context.Context, id string) (*models.RepairDetail, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*models.RepairDetail)
	return d, args.Error(1)
}

func (m *MockRepository) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	args := m.Called(ctx, id)
	snap, _ := args.Get(0).(*models.Snapshot)
	return snap, args.Error(1)
}

func (m *MockRepository) GetSnapshotByTrackingCode(ctx context.Context, code string) (*models.Snapshot, error) {
	args := m.Called(ctx, code)
	snap, _ := args.Get(0).(*models.Snapshot)
	return snap, args.Error(1)
}

func (m *MockRepository) ListLedger(ctx context.Context, repairID string) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, repairID)
	entries, _ := args.Get(0).([]*models.LedgerEntry)
	return entries, args.Error(1)
}

func (m *MockRepository) ApplyTransition(ctx context.Context, upd models.TransitionUpdate) (*models.Repair, *models.LedgerEntry, error) {
	args := m.Called(ctx, upd)
	r, _ := args.Get(0).(*models.Repair)
	e, _ := args.Get(1).(*models.LedgerEntry)
	return r, e, args.Error(2)
}

func (m *MockRepository) ListRepairs(ctx context.Context, f models.RepairFilter) ([]*models.RepairListItem, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]*models.RepairListItem)
	return items, args.Error(1)
}

func (m *MockRepository) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[models.Status]int64)
	return counts, args.Error(1)
}

// MockPublisher is a testify mock of lifecycle.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	return m.Called(ctx, topic, key, value).Error(0)
}
