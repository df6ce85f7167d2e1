package service_test

import (
	"context"
	"testing"

	"github.com/pharmastock/pharmastock-backend/internal/stock/events"
	"github.com/pharmastock/pharmastock-backend/internal/stock/rotation"
	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	apperrors "github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
	"github.com/pharmastock/pharmastock-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRotationService(repo *fakeRotations, pub *testutil.MockPublisher) *service.RotationService {
	return service.NewRotationService(repo, events.NewStockEventPublisherWith(pub, logger.Nop()), logger.Nop())
}

func rotationRow(code string, monthly string) service.RotationInput {
	return service.RotationInput{Code: code, MonthlyRotation: decimal.RequireFromString(monthly)}
}

func TestRotationService_UpsertNormalizes(t *testing.T) {
	repo := newFakeRotations()
	svc := newRotationService(repo, testutil.NewMockPublisher())

	rot, err := svc.Upsert(context.Background(), service.RotationInput{
		Code:              " 0340-0930-000001 ",
		MonthlyRotation:   decimal.RequireFromString("12.345"),
		UnitPurchasePrice: decimal.NewNullDecimal(decimal.RequireFromString("4.20")),
	})
	require.NoError(t, err)

	assert.Equal(t, "03400930000001", rot.Code)
	assert.Equal(t, "3400930000001", rot.NormalizedCode)
	assert.Equal(t, "12.35", rot.MonthlyRotation.String())
	assert.True(t, rot.UnitPurchasePrice.Valid)
}

func TestRotationService_UpsertRejectsOutOfRange(t *testing.T) {
	svc := newRotationService(newFakeRotations(), testutil.NewMockPublisher())

	for _, in := range []service.RotationInput{
		rotationRow("3400930000001", "-1"),
		rotationRow("3400930000001", "1000.01"),
		rotationRow("no digits", "5"),
		{Code: "3400930000001", UnitPurchasePrice: decimal.NewNullDecimal(decimal.NewFromInt(-3))},
	} {
		_, err := svc.Upsert(context.Background(), in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, in.Code)
	}
}

func TestRotationService_Import(t *testing.T) {
	repo := newFakeRotations()
	pub := testutil.NewMockPublisher()
	svc := newRotationService(repo, pub)

	result, err := svc.Import(context.Background(), []service.RotationInput{
		rotationRow("3400930000001", "10"),
		rotationRow("3400930000002", "2000"),
		rotationRow("03400930000001", "12"),
		rotationRow("12345678", "0"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 2, result.Rejected[0].Row)
	assert.Equal(t, "3400930000002", result.Rejected[0].Code)

	require.Len(t, repo.bulk, 1, "one transaction for the whole import")
	assert.Equal(t, "12", repo.bulk[0][0].MonthlyRotation.String(), "last row wins per normalized code")

	payloads := pub.EventsOfType(messaging.EventRotationImported)
	require.Len(t, payloads, 1)
	assert.Equal(t, messaging.RotationImportedEvent{Imported: 2, Rejected: 1}, payloads[0])
}

func TestRotationService_ImportRejectsOverlongCode(t *testing.T) {
	repo := newFakeRotations()
	svc := newRotationService(repo, testutil.NewMockPublisher())

	result, err := svc.Import(context.Background(), []service.RotationInput{
		rotationRow("3400930000001", "10"),
		rotationRow("0134009300000011721123110ABC", "4"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 2, result.Rejected[0].Row)
	assert.Contains(t, result.Rejected[0].Reason, "at most 20 digits")

	require.Len(t, repo.bulk, 1)
	require.Len(t, repo.bulk[0], 1)
	assert.Equal(t, "3400930000001", repo.bulk[0][0].Code)

	_, err = svc.Upsert(context.Background(), rotationRow("123456789012345678901", "1"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRotationService_ImportNothingValid(t *testing.T) {
	repo := newFakeRotations()
	pub := testutil.NewMockPublisher()
	svc := newRotationService(repo, pub)

	result, err := svc.Import(context.Background(), []service.RotationInput{rotationRow("abc", "1")})
	require.NoError(t, err)

	assert.Zero(t, result.Imported)
	assert.Empty(t, repo.bulk)
	pub.AssertNoEventsPublished(t)
}

func TestRotationService_Lookup(t *testing.T) {
	fixtures := testutil.NewFixtureFactory()
	repo := newFakeRotations(fixtures.Rotation("3400930000001", 5))
	svc := newRotationService(repo, testutil.NewMockPublisher())

	match, err := svc.Lookup(context.Background(), "3400930000001")
	require.NoError(t, err)
	assert.Equal(t, rotation.StrategyExact, match.Strategy)

	match, err = svc.Lookup(context.Background(), "3400930000099")
	require.NoError(t, err)
	assert.Equal(t, rotation.StrategyPrefix10, match.Strategy)

	_, err = svc.Lookup(context.Background(), "99999999")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRotationService_ListAndDelete(t *testing.T) {
	fixtures := testutil.NewFixtureFactory()
	a := fixtures.Rotation("3400930000001", 5)
	repo := newFakeRotations(a, fixtures.Rotation("3400930000002", 6))
	svc := newRotationService(repo, testutil.NewMockPublisher())

	rows, total, err := svc.List(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(2), total)

	require.NoError(t, svc.Delete(context.Background(), a.ID))
	assert.True(t, apperrors.IsNotFound(svc.Delete(context.Background(), a.ID)))
}
