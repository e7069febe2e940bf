package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/repository/memstore"
	"github.com/set-night/loyaltyledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store   *memstore.Store
	engine  *service.Engine
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := memstore.New()
	engine := service.NewEngine(store, service.EngineOptions{Defaults: config.DefaultProgramSettings(), Metrics: m})
	h := New(Deps{
		Loyalty:     engine.Loyalty,
		Accounts:    engine.Accounts,
		Redemptions: engine.Redemptions,
		Ledger:      engine.Ledger,
		Metrics:     m,
		Gatherer:    reg,
	})
	return &testServer{store: store, engine: engine, handler: h.Routes()}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const orderBody = `{"orderId":"o-1","tenantId":"shop-1","customerId":"alice","totalAmount":"50.00"}`

func TestOrderCompleted(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/orders/completed", orderBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	award := decodeBody[awardResponse](t, rec)
	assert.False(t, award.Replayed)
	assert.EqualValues(t, 50, award.Earned.Delta)
	assert.Equal(t, domain.TxKindEarned, award.Earned.Kind)
	assert.EqualValues(t, 150, award.Account.CurrentPoints)
	assert.NotEmpty(t, award.Account.LoyaltyNumber)

	rec = s.do(t, http.MethodPost, "/v1/orders/completed", orderBody)
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decodeBody[awardResponse](t, rec)
	assert.True(t, replay.Replayed)
	assert.Equal(t, award.Earned.ID, replay.Earned.ID)
}

func TestOrderCompletedErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"orderId":`, http.StatusBadRequest},
		{"unknown field", `{"orderId":"o-1","coupon":"X"}`, http.StatusBadRequest},
		{"negative amount", `{"orderId":"o-1","tenantId":"shop-1","customerId":"alice","totalAmount":-5}`, http.StatusUnprocessableEntity},
		{"missing customer", `{"orderId":"o-1","tenantId":"shop-1","totalAmount":5}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/v1/orders/completed", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[map[string]string](t, rec)["error"])
		})
	}
}

func TestAccountEndpoints(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/orders/completed", orderBody).Code)

	rec := s.do(t, http.MethodGet, "/v1/tenants/shop-1/users/alice/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	acc := decodeBody[accountResponse](t, rec)
	assert.EqualValues(t, 1, acc.TotalOrders)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/tenants/shop-1/users/bob/account", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/accounts/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/accounts/"+uuid.NewString(), "").Code)

	base := "/v1/accounts/" + acc.ID
	rec = s.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, acc.LoyaltyNumber, decodeBody[accountResponse](t, rec).LoyaltyNumber)

	rec = s.do(t, http.MethodGet, base+"/transactions?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[map[string][]transactionResponse](t, rec)["transactions"]
	require.Len(t, page, 1)
	assert.Equal(t, domain.TxKindEarned, page[0].Kind)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, base+"/transactions?limit=abc", "").Code)

	rec = s.do(t, http.MethodGet, base+"/balance/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["consistent"])

	rec = s.do(t, http.MethodPost, base+"/birthday", `{"year":2026}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.TxKindBirthday, decodeBody[transactionResponse](t, rec).Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, base+"/birthday", `{"year":2026}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, base+"/birthday", `{}`).Code)

	rec = s.do(t, http.MethodPost, base+"/referrals", `{"referredUserId":"zoe"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 200, decodeBody[transactionResponse](t, rec).Delta)

	rec = s.do(t, http.MethodPut, base+"/notifications", `{"email":false,"sms":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[accountResponse](t, rec).Notifications.SMS)

	rec = s.do(t, http.MethodPost, base+"/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[accountResponse](t, rec).Active)
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, "/v1/orders/completed",
		`{"orderId":"o-2","tenantId":"shop-1","customerId":"alice","totalAmount":5}`).Code)

	rec = s.do(t, http.MethodPost, base+"/reactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[accountResponse](t, rec).Active)
}

func TestRedemptionEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	acc, err := s.engine.Accounts.GetOrCreate(ctx, "alice", "shop-1")
	require.NoError(t, err)
	spa := domain.Reward{ID: uuid.New(), TenantID: "shop-1", Name: "Spa", PointsCost: 80, Active: true, RequiresApproval: true}
	yacht := domain.Reward{ID: uuid.New(), TenantID: "shop-1", Name: "Yacht", PointsCost: 5000, Active: true}
	require.NoError(t, s.store.UpsertReward(ctx, spa))
	require.NoError(t, s.store.UpsertReward(ctx, yacht))
	base := "/v1/accounts/" + acc.ID.String()

	rec := s.do(t, http.MethodGet, base+"/rewards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rewards := decodeBody[map[string][]rewardResponse](t, rec)["rewards"]
	require.Len(t, rewards, 1)
	assert.Equal(t, "Spa", rewards[0].Name)

	rec = s.do(t, http.MethodPost, base+"/redemptions", `{"rewardId":"`+yacht.ID.String()+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient balance")
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, base+"/redemptions", `{"rewardId":"nope"}`).Code)

	rec = s.do(t, http.MethodPost, base+"/redemptions", `{"rewardId":"`+spa.ID.String()+`","notes":"front desk"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	red := decodeBody[redemptionResponse](t, rec)
	assert.Equal(t, domain.RedemptionPending, red.Status)
	assert.Len(t, red.Code, config.RedemptionCodeLength)

	rec = s.do(t, http.MethodGet, base+"/redemptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]redemptionResponse](t, rec)["redemptions"], 1)

	assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, "/v1/redemptions/"+red.ID+"/fulfill", "").Code)

	rec = s.do(t, http.MethodPost, "/v1/redemptions/"+red.ID+"/deny", `{"reason":"closed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	denied := decodeBody[redemptionResponse](t, rec)
	assert.Equal(t, domain.RedemptionDenied, denied.Status)
	assert.Equal(t, "closed", denied.Notes)

	got, err := s.engine.Accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 100, got.CurrentPoints)

	assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, "/v1/redemptions/"+red.ID+"/deny", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/v1/redemptions/"+uuid.NewString()+"/approve", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loyalty_http_requests_total")

	down := New(Deps{Ping: func(*http.Request) error { return errors.New("db down") }}).Routes()
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{domain.ErrOrderCreditedElsewhere, http.StatusUnprocessableEntity},
		{domain.ErrCodeGeneration, http.StatusConflict},
		{domain.ConfigError("tier", "x", "bad"), http.StatusInternalServerError},
		{fmtBadRequest("invalid %s", "limit"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	writeError(rec, errors.New("password=hunter2"))
	assert.NotContains(t, rec.Body.String(), "hunter2")
}
