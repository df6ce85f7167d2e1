package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/internal/stock/rotation"
	apperrors "github.com/pharmastock/pharmastock-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeSignalements is an in-memory signalement store
type fakeSignalements struct {
	mu      sync.Mutex
	rows    map[string]*domain.Signalement
	saved   map[string]domain.UrgencyUpdate
	failFor map[string]error
}

func newFakeSignalements(sigs ...*domain.Signalement) *fakeSignalements {
	f := &fakeSignalements{
		rows:    make(map[string]*domain.Signalement),
		saved:   make(map[string]domain.UrgencyUpdate),
		failFor: make(map[string]error),
	}
	for _, s := range sigs {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		cp := *s
		f.rows[s.ID] = &cp
	}
	return f
}

func (f *fakeSignalements) Create(_ context.Context, s *domain.Signalement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt, s.UpdatedAt = fixedNow, fixedNow
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSignalements) GetByID(_ context.Context, id string) (*domain.Signalement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound("signalement")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSignalements) List(_ context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Signalement{}
	for _, s := range f.rows {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, s.Status) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpirationDate.Before(out[j].ExpirationDate) })
	return out, nil
}

func (f *fakeSignalements) Count(ctx context.Context, filter domain.SignalementFilter) (int64, error) {
	rows, _ := f.List(ctx, filter)
	return int64(len(rows)), nil
}

func (f *fakeSignalements) ListOpen(ctx context.Context) ([]*domain.Signalement, error) {
	return f.List(ctx, domain.SignalementFilter{Statuses: domain.OpenStatuses()})
}

func (f *fakeSignalements) SaveUrgency(_ context.Context, id string, u domain.UrgencyUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[id]; err != nil {
		return err
	}
	s, ok := f.rows[id]
	if !ok {
		return apperrors.NotFound("signalement")
	}
	s.ComputedUrgency = u.Tier.Ptr()
	p := u.SellThroughProbability
	s.SellThroughProbability = &p
	s.Status = u.Status
	s.UpdatedAt = u.UpdatedAt
	f.saved[id] = u
	return nil
}

func (f *fakeSignalements) Update(_ context.Context, s *domain.Signalement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[s.ID]; !ok {
		return apperrors.NotFound("signalement")
	}
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSignalements) UpdateStatuses(_ context.Context, ids []string, status domain.SignalementStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if s, ok := f.rows[id]; ok {
			s.Status = status
			n++
		}
	}
	return n, nil
}

func (f *fakeSignalements) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return apperrors.NotFound("signalement")
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeSignalements) get(id string) *domain.Signalement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func containsStatus(list []domain.SignalementStatus, s domain.SignalementStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// fakeRotations is an in-memory rotation repository built on the matcher index
type fakeRotations struct {
	rows           []*domain.ProductRotation
	candidateCalls int
	bulk           [][]*domain.ProductRotation
	err            error
}

func newFakeRotations(rows ...*domain.ProductRotation) *fakeRotations {
	return &fakeRotations{rows: rows}
}

func (f *fakeRotations) index() *rotation.Index { return rotation.NewIndex(f.rows) }

func (f *fakeRotations) FindByCode(ctx context.Context, code string) (*domain.ProductRotation, error) {
	return f.index().FindByCode(ctx, code)
}

func (f *fakeRotations) FindByNormalizedCode(ctx context.Context, code string) (*domain.ProductRotation, error) {
	return f.index().FindByNormalizedCode(ctx, code)
}

func (f *fakeRotations) Candidates(ctx context.Context) ([]*domain.ProductRotation, error) {
	f.candidateCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.index().Candidates(ctx)
}

func (f *fakeRotations) Upsert(_ context.Context, rot *domain.ProductRotation) error {
	if f.err != nil {
		return f.err
	}
	rot.ID = uuid.New().String()
	rot.LastUpdated = fixedNow
	f.rows = append(f.rows, rot)
	return nil
}

func (f *fakeRotations) BulkUpsert(_ context.Context, rotations []*domain.ProductRotation) error {
	if f.err != nil {
		return f.err
	}
	f.bulk = append(f.bulk, rotations)
	f.rows = append(f.rows, rotations...)
	return nil
}

func (f *fakeRotations) List(_ context.Context, limit, offset int) ([]*domain.ProductRotation, error) {
	if offset >= len(f.rows) {
		return []*domain.ProductRotation{}, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func (f *fakeRotations) Count(context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeRotations) Delete(_ context.Context, id string) error {
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("rotation")
}

// fakeInventaires is an in-memory inventaire store that also writes
// synthesized signalements into a signalement fake
type fakeInventaires struct {
	invs         map[string]*domain.Inventaire
	items        map[string][]*domain.InventaireItem
	signalements *fakeSignalements
}

func newFakeInventaires(sigs *fakeSignalements, invs ...*domain.Inventaire) *fakeInventaires {
	f := &fakeInventaires{
		invs:         make(map[string]*domain.Inventaire),
		items:        make(map[string][]*domain.InventaireItem),
		signalements: sigs,
	}
	for _, inv := range invs {
		f.invs[inv.ID] = inv
	}
	return f
}

func (f *fakeInventaires) Create(_ context.Context, inv *domain.Inventaire) error {
	inv.ID = uuid.New().String()
	inv.Status = domain.InventaireInProgress
	inv.CreatedAt = fixedNow
	f.invs[inv.ID] = inv
	return nil
}

func (f *fakeInventaires) GetByID(_ context.Context, id string) (*domain.Inventaire, error) {
	inv, ok := f.invs[id]
	if !ok {
		return nil, apperrors.NotFound("inventaire")
	}
	return inv, nil
}

func (f *fakeInventaires) List(context.Context) ([]*domain.Inventaire, error) {
	out := []*domain.Inventaire{}
	for _, inv := range f.invs {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeInventaires) Complete(_ context.Context, inv *domain.Inventaire) error {
	if inv.Status != domain.InventaireInProgress {
		return apperrors.Conflict("inventaire is not in progress")
	}
	inv.Status = domain.InventaireCompleted
	completed := fixedNow
	inv.CompletedAt = &completed
	return nil
}

func (f *fakeInventaires) Delete(_ context.Context, id string) error {
	if _, ok := f.invs[id]; !ok {
		return apperrors.NotFound("inventaire")
	}
	delete(f.invs, id)
	delete(f.items, id)
	return nil
}

func (f *fakeInventaires) AddItem(ctx context.Context, item *domain.InventaireItem, sig *domain.Signalement) error {
	if sig != nil {
		if f.signalements == nil {
			return errors.New("no signalement store")
		}
		if err := f.signalements.Create(ctx, sig); err != nil {
			return err
		}
		item.SignalementID = &sig.ID
	}
	item.ID = uuid.New().String()
	item.CreatedAt = fixedNow
	f.items[item.InventaireID] = append(f.items[item.InventaireID], item)
	return nil
}

func (f *fakeInventaires) ListItems(_ context.Context, id string) ([]*domain.InventaireItem, error) {
	return f.items[id], nil
}

func (f *fakeInventaires) Summary(_ context.Context, id string) (*domain.InventaireSummary, error) {
	s := &domain.InventaireSummary{}
	codes := make(map[string]struct{})
	for _, item := range f.items[id] {
		s.ItemCount++
		s.TotalQuantity += item.Quantity
		codes[item.ProductCode] = struct{}{}
	}
	s.DistinctProducts = len(codes)
	return s, nil
}
