package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gbconnect/internal/models"
	"gbconnect/internal/utils"
)

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(utils.UserIDKey).(string)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"id": id, "role": utils.GetUserRoleFromContext(r)})
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "middleware-secret")
	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWT(userID, models.RoleProvider)
	require.NoError(t, err)

	handler := AuthMiddleware(http.HandlerFunc(echoIdentity))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"not bearer", func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token}) }, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tc.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"`+userID.Hex()+`","role":"provider"}`, rr.Body.String())
			}
		})
	}

	t.Setenv("JWT_SECRET", "rotated-secret")
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "tokens signed with another key are rejected")
}

func TestRequireRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "middleware-secret")
	handler := AuthMiddleware(RequireRole(models.RoleProvider)(http.HandlerFunc(echoIdentity)))

	for role, want := range map[string]int{models.RoleProvider: http.StatusOK, models.RoleTourist: http.StatusForbidden} {
		token, err := utils.GenerateJWT(primitive.NewObjectID(), role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/services", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, role)
	}
}

func TestCors(t *testing.T) {
	handler := Cors([]string{"https://gbconnect.example"})(http.HandlerFunc(echoIdentity))

	req := httptest.NewRequest(http.MethodOptions, "/api/services", nil)
	req.Header.Set("Origin", "https://gbconnect.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://gbconnect.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowedOriginsFromEnv(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173, https://gbconnect.example ,")
	assert.Equal(t, []string{"http://localhost:5173", "https://gbconnect.example"}, AllowedOriginsFromEnv())
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	handler := limiter.Middleware(http.HandlerFunc(echoIdentity))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "buckets are per client")
}

func TestRequestLogger(t *testing.T) {
	var seen string
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(utils.RequestIDKey).(string)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, rr.Header().Get(RequestIDHeader), seen)

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, given)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, given, rr.Header().Get(RequestIDHeader))
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMiddleware(reg)

	r := mux.NewRouter()
	r.Use(m.Instrument)
	r.HandleFunc("/api/services/{id}", echoIdentity).Methods(http.MethodGet)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/services/"+primitive.NewObjectID().Hex(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.totalRequests.WithLabelValues(http.MethodGet, "/api/services/{id}", "200")))
}
