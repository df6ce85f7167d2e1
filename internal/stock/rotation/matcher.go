package rotation

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// Store is the read side of the rotation table used by the matcher.
// The exact lookups return (nil, nil) when nothing matches.
type Store interface {
	FindByCode(ctx context.Context, code string) (*domain.ProductRotation, error)
	FindByNormalizedCode(ctx context.Context, normalizedCode string) (*domain.ProductRotation, error)
	// Candidates enumerates every stored rotation in a stable order
	Candidates(ctx context.Context) ([]*domain.ProductRotation, error)
}

// Strategy names the cascade step that produced a match
type Strategy string

const (
	StrategyExact                  Strategy = "exact"
	StrategyNormalized             Strategy = "normalized"
	StrategyPrefix10               Strategy = "prefix_10"
	StrategyPrefix8                Strategy = "prefix_8"
	StrategySuffix8                Strategy = "suffix_8"
	StrategyCandidateContainsInput Strategy = "candidate_contains_input"
	StrategyInputContainsCandidate Strategy = "input_contains_candidate"
	StrategyPartialOverlap         Strategy = "partial_overlap"
)

// Match is the rotation chosen for a code and how it was found
type Match struct {
	Rotation *domain.ProductRotation `json:"rotation"`
	Strategy Strategy                `json:"strategy"`
}

// heuristic is one candidate-scan step of the cascade.
// input and candidate are both normalized.
type heuristic struct {
	strategy Strategy
	matches  func(input, candidate string) bool
}

const windowDigits = 8

var heuristics = []heuristic{
	{StrategyPrefix10, func(in, c string) bool {
		return len(in) >= 10 && len(c) >= 10 && in[:10] == c[:10]
	}},
	{StrategyPrefix8, func(in, c string) bool {
		return len(in) >= 8 && len(c) >= 8 && in[:8] == c[:8]
	}},
	{StrategySuffix8, func(in, c string) bool {
		return len(in) >= 8 && len(c) >= 8 && in[len(in)-8:] == c[len(c)-8:]
	}},
	{StrategyCandidateContainsInput, func(in, c string) bool {
		return len(in) >= 8 && strings.Contains(c, in)
	}},
	{StrategyInputContainsCandidate, func(in, c string) bool {
		return len(c) >= 8 && strings.Contains(in, c)
	}},
	{StrategyPartialOverlap, func(in, c string) bool {
		for i := 0; i+windowDigits <= len(in); i++ {
			if strings.Contains(c, in[i:i+windowDigits]) {
				return true
			}
		}
		return false
	}},
}

// Matcher resolves a scanned code to at most one stored rotation using a
// strict-priority cascade: the first step that hits wins.
type Matcher struct {
	store  Store
	logger *logger.Logger
}

// NewMatcher creates a matcher reading from store
func NewMatcher(store Store, log *logger.Logger) *Matcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Matcher{
		store:  store,
		logger: log.WithComponent("rotation_matcher"),
	}
}

// WithStore returns a matcher sharing the logger but reading from store
func (m *Matcher) WithStore(store Store) *Matcher {
	return &Matcher{store: store, logger: m.logger}
}

// Find returns the best rotation for code, or (nil, nil) when none matches.
// No match is a normal outcome, not an error.
func (m *Matcher) Find(ctx context.Context, code string) (*Match, error) {
	raw := strings.TrimSpace(code)
	if raw == "" {
		return nil, nil
	}

	r, err := m.store.FindByCode(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("exact rotation lookup: %w", err)
	}
	if r != nil {
		return m.hit(code, StrategyExact, r), nil
	}

	normalized := NormalizeCode(raw)
	if normalized == "" {
		m.miss(code, normalized)
		return nil, nil
	}

	r, err = m.store.FindByNormalizedCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("normalized rotation lookup: %w", err)
	}
	if r != nil {
		return m.hit(code, StrategyNormalized, r), nil
	}

	candidates, err := m.store.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rotation candidates: %w", err)
	}

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = candidateKey(c)
	}

	for _, h := range heuristics {
		for i, c := range candidates {
			if keys[i] != "" && h.matches(normalized, keys[i]) {
				return m.hit(code, h.strategy, c), nil
			}
		}
	}

	m.miss(code, normalized)
	return nil, nil
}

func (m *Matcher) hit(code string, strategy Strategy, r *domain.ProductRotation) *Match {
	m.logger.Debug().
		Str("code", code).
		Str("strategy", string(strategy)).
		Str("rotation_code", r.Code).
		Msg("rotation matched")
	return &Match{Rotation: r, Strategy: strategy}
}

func (m *Matcher) miss(code, normalized string) {
	m.logger.Debug().
		Str("code", code).
		Str("normalized", normalized).
		Msg("no rotation matched")
}

// candidateKey is the normalized form a stored rotation is compared by
func candidateKey(r *domain.ProductRotation) string {
	if r.NormalizedCode != "" {
		return r.NormalizedCode
	}
	return NormalizeCode(r.Code)
}
