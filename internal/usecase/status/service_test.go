package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// MockCurveRepository is a mock implementation of CurveRepository for testing
type MockCurveRepository struct {
	mock.Mock
}

func (m *MockCurveRepository) HistoryForDate(ctx context.Context, date time.Time) ([]*domain.CurveHistoryEntry, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CurveHistoryEntry), args.Error(1)
}

func (m *MockCurveRepository) ReplaceBatch(ctx context.Context, rows []*domain.CurveRow, purgeHistory bool, run *domain.IngestRun) error {
	args := m.Called(ctx, rows, purgeHistory, run)
	return args.Error(0)
}

func (m *MockCurveRepository) Latest(ctx context.Context) ([]*domain.LatestCurve, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LatestCurve), args.Error(1)
}

// MockAuditRepository is a mock implementation of AuditRepository for testing
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Record(ctx context.Context, run *domain.IngestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockAuditRepository) HasSuccessForDate(ctx context.Context, runDate time.Time) (bool, error) {
	args := m.Called(ctx, runDate)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuditRepository) RecentRuns(ctx context.Context, limit int) ([]*domain.IngestRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestRun), args.Error(1)
}

func TestCoverage_LatestProjection(t *testing.T) {
	ctx := context.Background()
	curveRepo := new(MockCurveRepository)
	auditRepo := new(MockAuditRepository)
	svc := NewService(curveRepo, auditRepo)

	asOf := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	latest := []*domain.LatestCurve{
		{Metal: domain.MetalGold, TenorMonths: 0, Price: decimal.NewFromInt(2184), AsOfDate: asOf},
		{Metal: domain.MetalGold, TenorMonths: 12, Price: decimal.NewFromInt(2250), AsOfDate: asOf},
		{Metal: domain.MetalSilver, TenorMonths: 0, Price: decimal.NewFromInt(25), AsOfDate: asOf},
	}
	lastRun := &domain.IngestRun{ID: uuid.New(), RunDate: asOf, Status: domain.RunStatusSuccess, RowCount: 3}

	curveRepo.On("Latest", ctx).Return(latest, nil)
	auditRepo.On("RecentRuns", ctx, 1).Return([]*domain.IngestRun{lastRun}, nil)

	coverage, err := svc.Coverage(ctx, nil)

	require.NoError(t, err)
	assert.Equal(t, asOf, coverage.AsOfDate)
	assert.Equal(t, 3, coverage.TotalRows)
	assert.Equal(t, 2, coverage.RowsByMetal[domain.MetalGold])
	assert.Equal(t, 1, coverage.RowsByMetal[domain.MetalSilver])
	assert.Equal(t, lastRun, coverage.LastRun)
}

func TestCoverage_DateOverrideReadsHistory(t *testing.T) {
	ctx := context.Background()
	curveRepo := new(MockCurveRepository)
	auditRepo := new(MockAuditRepository)
	svc := NewService(curveRepo, auditRepo)

	date := time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)
	entries := []*domain.CurveHistoryEntry{
		{ID: uuid.New(), Metal: domain.MetalGold, TenorMonths: 0, Price: decimal.NewFromInt(2100), AsOfDate: date},
	}

	curveRepo.On("HistoryForDate", ctx, date).Return(entries, nil)
	auditRepo.On("RecentRuns", ctx, 1).Return([]*domain.IngestRun{}, nil)

	coverage, err := svc.Coverage(ctx, &date)

	require.NoError(t, err)
	assert.Equal(t, date, coverage.AsOfDate)
	assert.Equal(t, 1, coverage.TotalRows)
	assert.Nil(t, coverage.LastRun)

	curveRepo.AssertNotCalled(t, "Latest", mock.Anything)
}

func TestCoverage_EmptyStore(t *testing.T) {
	ctx := context.Background()
	curveRepo := new(MockCurveRepository)
	auditRepo := new(MockAuditRepository)
	svc := NewService(curveRepo, auditRepo)

	curveRepo.On("Latest", ctx).Return([]*domain.LatestCurve{}, nil)
	auditRepo.On("RecentRuns", ctx, 1).Return([]*domain.IngestRun{}, nil)

	coverage, err := svc.Coverage(ctx, nil)

	require.NoError(t, err)
	assert.True(t, coverage.AsOfDate.IsZero())
	assert.Equal(t, 0, coverage.TotalRows)
	assert.Nil(t, coverage.LastRun)
}

func TestRecentRuns_LimitClamped(t *testing.T) {
	ctx := context.Background()
	curveRepo := new(MockCurveRepository)
	auditRepo := new(MockAuditRepository)
	svc := NewService(curveRepo, auditRepo)

	auditRepo.On("RecentRuns", ctx, 100).Return([]*domain.IngestRun{}, nil)

	_, err := svc.RecentRuns(ctx, 0)
	require.NoError(t, err)
	_, err = svc.RecentRuns(ctx, 5000)
	require.NoError(t, err)

	auditRepo.AssertNumberOfCalls(t, "RecentRuns", 2)
}

func TestRecentRuns_PropagatesRepositoryError(t *testing.T) {
	ctx := context.Background()
	curveRepo := new(MockCurveRepository)
	auditRepo := new(MockAuditRepository)
	svc := NewService(curveRepo, auditRepo)

	auditRepo.On("RecentRuns", ctx, 10).Return(nil, errors.New("connection refused"))

	_, err := svc.RecentRuns(ctx, 10)
	assert.Error(t, err)
}
