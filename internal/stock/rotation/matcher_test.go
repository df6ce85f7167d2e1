package rotation

import (
	"context"
	"errors"
	"testing"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rot(code string) *domain.ProductRotation {
	return &domain.ProductRotation{
		ID:              "rot-" + code,
		Code:            code,
		NormalizedCode:  NormalizeCode(code),
		MonthlyRotation: decimal.NewFromInt(10),
	}
}

func TestMatcher_Find(t *testing.T) {
	tests := []struct {
		name         string
		rotations    []*domain.ProductRotation
		input        string
		wantCode     string
		wantStrategy Strategy
	}{
		{
			name:         "exact raw code with stored leading zeros",
			rotations:    []*domain.ProductRotation{rot("03400930000001")},
			input:        "03400930000001",
			wantCode:     "03400930000001",
			wantStrategy: StrategyExact,
		},
		{
			name:         "outer whitespace trimmed before exact match",
			rotations:    []*domain.ProductRotation{rot("3400930000001")},
			input:        "  3400930000001 ",
			wantCode:     "3400930000001",
			wantStrategy: StrategyExact,
		},
		{
			name:         "normalized match",
			rotations:    []*domain.ProductRotation{rot("3400930000001")},
			input:        "0003400930000001",
			wantCode:     "3400930000001",
			wantStrategy: StrategyNormalized,
		},
		{
			name:         "prefix 10",
			rotations:    []*domain.ProductRotation{rot("3400930000999")},
			input:        "3400930000555",
			wantCode:     "3400930000999",
			wantStrategy: StrategyPrefix10,
		},
		{
			name:         "prefix 8",
			rotations:    []*domain.ProductRotation{rot("3400930000999")},
			input:        "3400930099999",
			wantCode:     "3400930000999",
			wantStrategy: StrategyPrefix8,
		},
		{
			name:         "suffix 8",
			rotations:    []*domain.ProductRotation{rot("5012345678")},
			input:        "9912345678",
			wantCode:     "5012345678",
			wantStrategy: StrategySuffix8,
		},
		{
			name:         "candidate contains input",
			rotations:    []*domain.ProductRotation{rot("9123456780")},
			input:        "12345678",
			wantCode:     "9123456780",
			wantStrategy: StrategyCandidateContainsInput,
		},
		{
			name:         "input contains candidate",
			rotations:    []*domain.ProductRotation{rot("23456789")},
			input:        "1234567890",
			wantCode:     "23456789",
			wantStrategy: StrategyInputContainsCandidate,
		},
		{
			name:         "partial 8 digit overlap",
			rotations:    []*domain.ProductRotation{rot("7771234567899")},
			input:        "1234567800",
			wantCode:     "7771234567899",
			wantStrategy: StrategyPartialOverlap,
		},
		{
			name:         "normalized match beats prefix match",
			rotations:    []*domain.ProductRotation{rot("3400930000999"), rot("3400930000001")},
			input:        "0003400930000001",
			wantCode:     "3400930000001",
			wantStrategy: StrategyNormalized,
		},
		{
			name: "earlier strategy beats earlier candidate",
			rotations: []*domain.ProductRotation{
				rot("1111111112345678"), // suffix 8 only
				rot("9876543200000000"), // prefix 8 only
			},
			input:        "9876543212345678",
			wantCode:     "9876543200000000",
			wantStrategy: StrategyPrefix8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(NewIndex(tt.rotations), logger.Nop())

			got, err := m.Find(context.Background(), tt.input)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Rotation.Code)
			assert.Equal(t, tt.wantStrategy, got.Strategy)
		})
	}
}

func TestMatcher_FindNoMatch(t *testing.T) {
	m := NewMatcher(NewIndex([]*domain.ProductRotation{rot("3400930000001")}), logger.Nop())

	for _, input := range []string{"5555555555555", "abc", "", "   ", "1234567"} {
		got, err := m.Find(context.Background(), input)
		require.NoError(t, err, input)
		assert.Nil(t, got, input)
	}
}

func TestMatcher_ShortInputsSkipLengthGuardedSteps(t *testing.T) {
	// A 7 digit input may only match exactly
	m := NewMatcher(NewIndex([]*domain.ProductRotation{rot("91234567")}), logger.Nop())

	got, err := m.Find(context.Background(), "1234567")
	require.NoError(t, err)
	assert.Nil(t, got)
}

type failingStore struct {
	Index
	failOn string
}

var errStore = errors.New("connection refused")

func (s *failingStore) FindByCode(ctx context.Context, code string) (*domain.ProductRotation, error) {
	if s.failOn == "code" {
		return nil, errStore
	}
	return s.Index.FindByCode(ctx, code)
}

func (s *failingStore) Candidates(ctx context.Context) ([]*domain.ProductRotation, error) {
	if s.failOn == "candidates" {
		return nil, errStore
	}
	return s.Index.Candidates(ctx)
}

func TestMatcher_StoreErrorsSurface(t *testing.T) {
	for _, failOn := range []string{"code", "candidates"} {
		t.Run(failOn, func(t *testing.T) {
			store := &failingStore{Index: *NewIndex(nil), failOn: failOn}
			m := NewMatcher(store, logger.Nop())

			_, err := m.Find(context.Background(), "3400930000001")
			assert.ErrorIs(t, err, errStore)
		})
	}
}

func TestIndex(t *testing.T) {
	idx := NewIndex([]*domain.ProductRotation{rot("3400930000999"), nil, rot("03400930000001")})

	assert.Equal(t, 2, idx.Len())

	candidates, err := idx.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "03400930000001", candidates[0].Code, "ordered by normalized code")

	r, _ := idx.FindByNormalizedCode(context.Background(), "3400930000001")
	require.NotNil(t, r)
	assert.Equal(t, "03400930000001", r.Code)

	r, _ = idx.FindByCode(context.Background(), "3400930000001")
	assert.Nil(t, r, "raw lookup does not normalize")
}
