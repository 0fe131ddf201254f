package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/auth"
	"github.com/magicparents/carebook/internal/availability"
	"github.com/magicparents/carebook/internal/booking"
	"github.com/magicparents/carebook/internal/directory"
	"github.com/magicparents/carebook/internal/notify"
	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/reconcile"
)

const (
	providerID = "aaaaaaaa-0000-0000-0000-000000000001"
	clientID   = "bbbbbbbb-0000-0000-0000-000000000001"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router        *gin.Engine
	notifier      *notify.Recorder
	providerToken string
	clientToken   string
}

func newTestServer(t *testing.T, db Pinger, perMin int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewFixed(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC))
	dir := directory.NewStatic(
		directory.Party{ID: providerID, Email: "pat@example.com", DisplayName: "Pat", Role: directory.RoleProvider, HourPrice: 25, Location: "Taipei"},
		directory.Party{ID: clientID, Email: "chris@example.com", Role: directory.RoleClient},
	)
	availRepo := availability.NewMemoryRepository()
	bookingRepo := booking.NewMemoryRepository()
	reconciler := reconcile.New(availRepo, bookingRepo, clk, time.UTC)
	recorder := &notify.Recorder{}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	providerToken, err := jwtManager.GenerateAccessToken(providerID, auth.RoleProvider)
	require.NoError(t, err)
	clientToken, err := jwtManager.GenerateAccessToken(clientID, auth.RoleClient)
	require.NoError(t, err)

	router := NewRouter(Config{
		RateLimitPerMin:     perMin,
		Logger:              zap.NewNop(),
		DB:                  db,
		JWTManager:          jwtManager,
		Directory:           dir,
		AvailabilityService: availability.NewService(availRepo, clk, time.UTC, zap.NewNop()),
		FreeSlots:           reconciler,
		BookingService: booking.NewService(booking.Deps{
			Repo:      bookingRepo,
			Slots:     reconciler,
			Directory: dir,
			Notifier:  recorder,
			Clock:     clk,
			Location:  time.UTC,
			Logger:    zap.NewNop(),
		}),
	})

	return &testServer{router: router, notifier: recorder, providerToken: providerToken, clientToken: clientToken}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		s := newTestServer(t, fakePinger{}, 100)
		rr := s.do(http.MethodGet, "/healthz", nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("database down", func(t *testing.T) {
		s := newTestServer(t, fakePinger{err: errors.New("refused")}, 100)
		rr := s.do(http.MethodGet, "/healthz", nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestMe(t *testing.T) {
	s := newTestServer(t, fakePinger{}, 100)

	rr := s.do(http.MethodGet, "/v1/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodGet, "/v1/me", nil, s.providerToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var me MeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "Pat", me.DisplayName)
	require.NotNil(t, me.HourPrice)
	assert.Equal(t, 25.0, *me.HourPrice)

	rr = s.do(http.MethodGet, "/v1/me", nil, s.clientToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var client MeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &client))
	assert.Equal(t, "chris@example.com", client.DisplayName)
	assert.Nil(t, client.HourPrice)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, fakePinger{}, 100)

	rr := s.do(http.MethodPut, "/v1/availability/2025-06-02", map[string]any{"hours": []string{"09:00"}}, s.clientToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodPost, "/v1/providers/"+providerID+"/bookings",
		map[string]any{"day": "2025-06-02", "hours": []string{"09:00"}}, s.providerToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestBookingFlowThroughRouter(t *testing.T) {
	s := newTestServer(t, fakePinger{}, 100)

	rr := s.do(http.MethodPut, "/v1/availability/2025-06-02", map[string]any{"hours": []string{"10:00", "09:00"}}, s.providerToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/v1/providers/"+providerID+"/availability", nil, s.clientToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var days []struct {
		Date  string   `json:"date"`
		Hours []string `json:"hours"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &days))
	require.Len(t, days, 1)
	assert.Equal(t, "2025-06-02", days[0].Date)
	assert.Equal(t, []string{"09:00", "10:00"}, days[0].Hours)

	rr = s.do(http.MethodPost, "/v1/providers/"+providerID+"/bookings",
		map[string]any{"day": "2025-06-02", "hours": []string{"09:00"}}, s.clientToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var summary struct {
		Bookings []struct {
			ID string `json:"id"`
		} `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	require.Len(t, summary.Bookings, 1)

	rr = s.do(http.MethodPost, "/v1/bookings/"+summary.Bookings[0].ID+"/confirm", nil, s.providerToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/v1/providers/"+providerID+"/availability/2025-06-02", nil, s.clientToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var day struct {
		Hours []string `json:"hours"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &day))
	assert.Equal(t, []string{"10:00"}, day.Hours)

	assert.Len(t, s.notifier.Messages(), 2)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, fakePinger{}, 2)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/healthz", nil, "").Code)
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitOrigins(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitOrigins(""))
}
