package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/internal/stock/handler"
	"github.com/pharmastock/pharmastock-backend/internal/stock/rotation"
	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/internal/stock/urgency"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

// memSignalements keeps signalements in insertion order
type memSignalements struct {
	rows []*domain.Signalement
}

func (m *memSignalements) find(id string) (*domain.Signalement, int) {
	for i, s := range m.rows {
		if s.ID == id {
			return s, i
		}
	}
	return nil, -1
}

func (m *memSignalements) Create(_ context.Context, s *domain.Signalement) error {
	s.ID = uuid.New().String()
	cp := *s
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memSignalements) GetByID(_ context.Context, id string) (*domain.Signalement, error) {
	s, _ := m.find(id)
	if s == nil {
		return nil, errors.NotFound("signalement")
	}
	cp := *s
	return &cp, nil
}

func (m *memSignalements) List(_ context.Context, f domain.SignalementFilter) ([]*domain.Signalement, error) {
	out := []*domain.Signalement{}
	for _, s := range m.rows {
		if len(f.Statuses) > 0 {
			keep := false
			for _, st := range f.Statuses {
				keep = keep || st == s.Status
			}
			if !keep {
				continue
			}
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memSignalements) Count(ctx context.Context, f domain.SignalementFilter) (int64, error) {
	rows, _ := m.List(ctx, f)
	return int64(len(rows)), nil
}

func (m *memSignalements) ListOpen(ctx context.Context) ([]*domain.Signalement, error) {
	return m.List(ctx, domain.SignalementFilter{Statuses: domain.OpenStatuses()})
}

func (m *memSignalements) SaveUrgency(_ context.Context, id string, u domain.UrgencyUpdate) error {
	s, _ := m.find(id)
	if s == nil {
		return errors.NotFound("signalement")
	}
	s.ComputedUrgency = u.Tier.Ptr()
	p := u.SellThroughProbability
	s.SellThroughProbability = &p
	s.Status = u.Status
	return nil
}

func (m *memSignalements) Update(_ context.Context, s *domain.Signalement) error {
	_, i := m.find(s.ID)
	if i < 0 {
		return errors.NotFound("signalement")
	}
	cp := *s
	m.rows[i] = &cp
	return nil
}

func (m *memSignalements) UpdateStatuses(_ context.Context, ids []string, status domain.SignalementStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if s, _ := m.find(id); s != nil {
			s.Status = status
			n++
		}
	}
	return n, nil
}

func (m *memSignalements) Delete(_ context.Context, id string) error {
	_, i := m.find(id)
	if i < 0 {
		return errors.NotFound("signalement")
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

func (m *memSignalements) CountByStatus(context.Context) ([]domain.StatusCount, error) {
	counts := map[string]int{}
	for _, s := range m.rows {
		counts[string(s.Status)]++
	}
	out := []domain.StatusCount{}
	for k, v := range counts {
		out = append(out, domain.StatusCount{Key: k, Count: v})
	}
	return out, nil
}

func (m *memSignalements) CountByUrgency(context.Context) ([]domain.StatusCount, error) {
	return []domain.StatusCount{}, nil
}

// memRotations serves reads from a matcher index and records writes
type memRotations struct {
	*rotation.Index
	rows []*domain.ProductRotation
}

func newMemRotations(rows ...*domain.ProductRotation) *memRotations {
	return &memRotations{Index: rotation.NewIndex(rows), rows: rows}
}

func (m *memRotations) Upsert(_ context.Context, rot *domain.ProductRotation) error {
	rot.ID = uuid.New().String()
	m.rows = append(m.rows, rot)
	m.Index = rotation.NewIndex(m.rows)
	return nil
}

func (m *memRotations) BulkUpsert(ctx context.Context, rotations []*domain.ProductRotation) error {
	for _, r := range rotations {
		_ = m.Upsert(ctx, r)
	}
	return nil
}

func (m *memRotations) List(context.Context, int, int) ([]*domain.ProductRotation, error) {
	return m.rows, nil
}

func (m *memRotations) Count(context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

func (m *memRotations) Delete(context.Context, string) error {
	return errors.NotFound("rotation")
}

type testServer struct {
	signalements *memSignalements
	rotations    *memRotations
	handler      http.Handler
}

func newTestServer(rots ...*domain.ProductRotation) *testServer {
	log := logger.Nop()
	ts := &testServer{
		signalements: &memSignalements{},
		rotations:    newMemRotations(rots...),
	}

	clock := func() time.Time { return fixedNow }
	updater := service.NewUpdaterService(
		ts.signalements, ts.rotations, urgency.NewEngineWithClock(clock), nil, log,
	).WithClock(clock)

	signalementSvc := service.NewSignalementService(ts.signalements, updater, log)
	rotationSvc := service.NewRotationService(ts.rotations, nil, log)
	inventaireSvc := service.NewInventaireService(nil, updater, log)
	exportSvc := service.NewExportService(ts.signalements, ts.rotations, nil, log)

	ts.handler = handler.NewRouter(&handler.Handlers{
		Signalements: handler.NewSignalementHandler(signalementSvc, updater, log),
		Rotations:    handler.NewRotationHandler(rotationSvc, log),
		Inventaires:  handler.NewInventaireHandler(inventaireSvc, log),
		Dashboard:    handler.NewDashboardHandler(service.NewDashboardService(ts.signalements), log),
		Export:       handler.NewExportHandler(exportSvc, log),
		Health: handler.NewHealthHandler("stock-service", map[string]handler.HealthCheck{
			"database": func(context.Context) map[string]string { return map[string]string{"status": "up"} },
			"redis":    func(context.Context) map[string]string { return map[string]string{"status": "disabled"} },
		}),
	}, []string{"http://localhost:5173"}, log)

	return ts
}

func rotationFixture(code string, monthly int64) *domain.ProductRotation {
	return &domain.ProductRotation{
		ID:              uuid.New().String(),
		Code:            code,
		NormalizedCode:  code,
		MonthlyRotation: decimal.NewFromInt(monthly),
	}
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type signalementJSON struct {
	ID                     string   `json:"id"`
	Status                 string   `json:"status"`
	ComputedUrgency        *string  `json:"computed_urgency"`
	SellThroughProbability *float64 `json:"sell_through_probability"`
	DisplayTag             string   `json:"display_tag"`
}

func TestCreateSignalement_ComputesUrgencyAndTag(t *testing.T) {
	ts := newTestServer(rotationFixture("3400930000001", 20))

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/signalements", map[string]interface{}{
		"product_code":    "3400930000001",
		"quantity":        10,
		"expiration_date": "2026-05-20",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var body envelope[signalementJSON]
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, "TO_VERIFY", body.Data.Status)
	require.NotNil(t, body.Data.ComputedUrgency)
	assert.Equal(t, "medium", *body.Data.ComputedUrgency)
	assert.Equal(t, "medium", body.Data.DisplayTag)
	assert.Equal(t, 100.0, *body.Data.SellThroughProbability)
}

func TestCreateSignalement_Validation(t *testing.T) {
	ts := newTestServer()

	testutil.RunHTTPTestCases(t, ts.handler, []testutil.HTTPTestCase{
		{
			Name:       "zero quantity",
			Method:     http.MethodPost,
			Path:       "/api/v1/signalements",
			Body:       map[string]interface{}{
				"product_code": "3400930000001", "quantity": 0, "expiration_date": "2026-05-20",
	
		},
			WantStatus:       http.StatusBadRequest,
			WantBodyContains: []string{"VALIDATION_ERROR", "quantity"},
		},
		{
			Name:       "letters in product code",
			Method:     http.MethodPost,
			Path:       "/api/v1/signalements",
			Body:       map[string]interface{}{
				"product_code": "34009A0000001", "quantity": 2, "expiration_date": "2026-05-20",
	
		},
			WantStatus:       http.StatusBadRequest,
			WantBodyContains: []string{"product_code"},
		},
		{
			Name:       "bad date",
			Method:     http.MethodPost,
			Path:       "/api/v1/signalements",
			Body:       map[string]interface{}{
				"product_code": "3400930000001", "quantity": 2, "expiration_date": "20/05/2026",
	
		},
			WantStatus:       http.StatusBadRequest,
			WantBodyContains: []string{"expiration_date"},
		},
		{
			Name:             "unknown field",
			Method:           http.MethodPost,
			Path:             "/api/v1/signalements",
			Body:             map[string]interface{}{"computed_urgency": "low"},
			WantStatus:       http.StatusBadRequest,
			WantBodyContains: []string{"BAD_REQUEST"},
		},
		{
			Name:             "unknown status filter",
			Method:           http.MethodGet,
			Path:             "/api/v1/signalements?status=LOST",
			WantStatus:       http.StatusBadRequest,
			WantBodyContains: []string{"status"},
		},
		{
			Name:             "missing signalement",
			Method:           http.MethodGet,
			Path:             "/api/v1/signalements/" + uuid.NewString(),
			WantStatus:       http.StatusNotFound,
			WantBodyContains: []string{"NOT_FOUND"},
		},
		{
			Name:       "recompute missing signalement",
			Method:     http.MethodPost,
			Path:       "/api/v1/signalements/" + uuid.NewString() + "/recompute",
			WantStatus: http.StatusNotFound,
		},
		{
			Name:             "inventaire without name",
			Method:           http.MethodPost,
			Path:             "/api/v1/inventaires",
			Body:             map[string]interface{}{"name": ""},
			WantStatus:       http.StatusBadRequest,
			WantBodyContains: []string{"name"},
		},
		{
			Name:       "empty rotation import",
			Method:     http.MethodPost,
			Path:       "/api/v1/rotations/import",
			Body:       []interface{}{},
			WantStatus: http.StatusBadRequest,
		},
		{
			Name:       "lookup without code",
			Method:     http.MethodGet,
			Path:       "/api/v1/rotations/lookup",
			WantStatus: http.StatusBadRequest,
		},
	})
}

func TestNonUUIDPathIDIsNotFound(t *testing.T) {
	ts := newTestServer()
	ts.signalements.rows = []*domain.Signalement{{ID: "abc", Status: domain.StatusPending}}

	cases := []testutil.HTTPTestCase{
		{Method: http.MethodGet, Path: "/api/v1/signalements/abc"},
		{Method: http.MethodPut, Path: "/api/v1/signalements/abc", Body: map[string]interface{}{"quantity": 2}},
		{Method: http.MethodDelete, Path: "/api/v1/signalements/abc"},
		{Method: http.MethodPost, Path: "/api/v1/signalements/abc/recompute"},
		{Method: http.MethodDelete, Path: "/api/v1/rotations/abc"},
		{Method: http.MethodGet, Path: "/api/v1/inventaires/abc"},
		{Method: http.MethodPost, Path: "/api/v1/inventaires/abc/items", Body: map[string]interface{}{"product_code": "3400930000001", "quantity": 1}},
		{Method: http.MethodPost, Path: "/api/v1/inventaires/abc/complete"},
		{Method: http.MethodDelete, Path: "/api/v1/inventaires/abc"},
		{Method: http.MethodGet, Path: "/api/v1/inventaires/abc/export"},
	}
	for i := range cases {
		cases[i].Name = cases[i].Method + " " + cases[i].Path
		cases[i].WantStatus = http.StatusNotFound
		cases[i].WantBodyContains = []string{"NOT_FOUND"}
	}

	testutil.RunHTTPTestCases(t, ts.handler, cases)
	assert.Len(t, ts.signalements.rows, 1, "nothing reached the store")
}

func TestListSignalements_DisplayTag(t *testing.T) {
	ts := newTestServer()
	ts.signalements.rows = []*domain.Signalement{
		{ID: "a", Status: domain.StatusSellingThrough, ComputedUrgency: domain.UrgencyHigh.Ptr()},
		{ID: "b", Status: domain.StatusPending, ComputedUrgency: domain.UrgencyCritical.Ptr()},
		{ID: "c", Status: domain.StatusPending},
	}

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/signalements?per_page=10", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body envelope[[]signalementJSON]
	testutil.ParseJSONBody(t, rr, &body)
	require.Len(t, body.Data, 3)
	assert.Equal(t, "ecoulement", body.Data[0].DisplayTag)
	assert.Equal(t, "critical", body.Data[1].DisplayTag)
	assert.Equal(t, "", body.Data[2].DisplayTag)
	assert.Equal(t, "high", *body.Data[0].ComputedUrgency, "tier is kept, only the label changes")
}

func TestRecompute_SingleAndBulk(t *testing.T) {
	ts := newTestServer(rotationFixture("3400930000001", 20))
	inProgress := uuid.NewString()
	ts.signalements.rows = []*domain.Signalement{
		{ID: "a", ProductCode: "3400930000001", Quantity: 10, ExpirationDate: fixedNow.AddDate(0, 2, 0), Status: domain.StatusPending},
		{ID: inProgress, ProductCode: "99999999", Quantity: 1, ExpirationDate: fixedNow.AddDate(1, 0, 0), Status: domain.StatusInProgress},
		{ID: "c", ProductCode: "99999999", Quantity: 1, ExpirationDate: fixedNow, Status: domain.StatusDestroyed},
	}

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/signalements/"+inProgress+"/recompute", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"tier":"low"`)

	rr = testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/signalements/recompute", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body envelope[service.RecomputeSummary]
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, service.RecomputeSummary{Processed: 2, WithRotation: 1, AutoVerified: 1}, body.Data)
}

func TestBulkStatus(t *testing.T) {
	ts := newTestServer()
	id := uuid.NewString()
	ts.signalements.rows = []*domain.Signalement{{ID: id, Status: domain.StatusPending}}

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/signalements/status", map[string]interface{}{
		"ids":    []string{id},
		"status": "SELLING_THROUGH",
	}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"updated":1`)
	assert.Equal(t, domain.StatusSellingThrough, ts.signalements.rows[0].Status)

	rr = testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/signalements/status", map[string]interface{}{
		"ids":    []string{"not-a-uuid"},
		"status": "SELLING_THROUGH",
	}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestRotationImportAndLookup(t *testing.T) {
	ts := newTestServer()

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/rotations/import", []map[string]interface{}{
		{"code": "03400930000001", "monthly_rotation": 12.5, "unit_purchase_price": "3.10"},
		{"code": "3400930000002", "monthly_rotation": 1500},
	}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var result envelope[service.ImportResult]
	testutil.ParseJSONBody(t, rr, &result)
	assert.Equal(t, 1, result.Data.Imported)
	require.Len(t, result.Data.Rejected, 1)
	assert.Equal(t, 2, result.Data.Rejected[0].Row)

	rr = testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/rotations/lookup?code=3400930000001", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"strategy":"normalized"`)

	rr = testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/rotations/lookup?code=11111111", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestDashboardStats(t *testing.T) {
	ts := newTestServer()
	ts.signalements.rows = []*domain.Signalement{
		{ID: "a", Status: domain.StatusPending},
		{ID: "b", Status: domain.StatusPending},
	}

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/dashboard/stats", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body envelope[service.DashboardStats]
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, 2, body.Data.Total)
	assert.Equal(t, 2, body.Data.ByStatus["PENDING"])
}

func TestExportSignalements(t *testing.T) {
	ts := newTestServer()
	ts.signalements.rows = []*domain.Signalement{
		{ID: "a", ProductCode: "3400930000001", Quantity: 4, ExpirationDate: fixedNow, Status: domain.StatusPending},
	}

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/signalements/export", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "signalements-")

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Signalements")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestHealth(t *testing.T) {
	ts := newTestServer()

	rr := testutil.ExecuteRequest(ts.handler, testutil.NewHTTPRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"status":"healthy"`)

	degraded := handler.NewHealthHandler("stock-service", map[string]handler.HealthCheck{
		"rabbitmq": func(context.Context) map[string]string { return map[string]string{"status": "down"} },
	})
	rr = testutil.ExecuteRequest(http.HandlerFunc(degraded.Health), testutil.NewHTTPRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}
