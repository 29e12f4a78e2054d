package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/cache"
	"gbconnect/internal/middlewares"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories/repotest"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

// MockDBService is a mock implementation of database.Service for testing
type MockDBService struct {
	down bool
}

func (m *MockDBService) Health() map[string]string {
	if m.down {
		return map[string]string{"status": "down", "error": "db down"}
	}
	return map[string]string{"status": "up", "message": "It's healthy"}
}

func (m *MockDBService) Client() *mongo.Client                  { return nil }
func (m *MockDBService) Database() *mongo.Database              { return nil }
func (m *MockDBService) EnsureIndexes(ctx context.Context) error { return nil }
func (m *MockDBService) Close() error                           { return nil }

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) SendEmail(to, subject, msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, to)
	return nil
}

type fixture struct {
	server        *Server
	handler       http.Handler
	db            *MockDBService
	users         *repotest.Users
	otps          *repotest.OTPs
	notifications *repotest.Notifications
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("JWT_SECRET", "routes-test-secret")

	db := &MockDBService{}
	users := repotest.NewUsers()
	otps := repotest.NewOTPs()
	servicesRepo := repotest.NewServices()
	bookings := repotest.NewBookings()
	reviews := repotest.NewReviews()
	notificationRepo := repotest.NewNotifications()

	mail := &outbox{}
	c := cache.NewMemory()
	notificationService := services.NewNotificationService(notificationRepo)
	catalogService := services.NewCatalogService(servicesRepo, c, nil)

	s := &Server{
		db:             db,
		cache:          c,
		limiter:        middlewares.NewRateLimiter(1000, 1000),
		metrics:        middlewares.NewPrometheusMiddleware(prometheus.NewRegistry()),
		allowedOrigins: []string{"http://localhost:5173"},

		userService:         services.NewUserService(users, catalogService),
		authService:         services.NewAuthService(users, services.NewOTPService(otps, mail, c)),
		catalogService:      catalogService,
		bookingService:      services.NewBookingService(bookings, servicesRepo, users, notificationService, mail),
		reviewService:       services.NewReviewService(reviews, servicesRepo, bookings, users, catalogService, notificationService),
		notificationService: notificationService,
		dashboardService:    services.NewDashboardService(servicesRepo, bookings),
		assistantService:    services.NewAssistantService(nil, servicesRepo, bookings),
	}

	return &fixture{
		server:        s,
		handler:       s.RegisterRoutes(),
		db:            db,
		users:         users,
		otps:          otps,
		notifications: notificationRepo,
	}
}

// seedUser stores a verified account and returns it with a session token.
func (f *fixture) seedUser(t *testing.T, name, role string) (*models.User, string) {
	t.Helper()
	user, err := f.users.Create(context.Background(), &models.User{
		Name:         name,
		Email:        name + "@example.com",
		Role:         role,
		Verified:     true,
		AuthProvider: models.AuthProviderLocal,
	})
	require.NoError(t, err)
	token, err := utils.GenerateJWT(user.ID, user.Role)
	require.NoError(t, err)
	return user, token
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"GBConnect API"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middlewares.RequestIDHeader))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.db.down = true
	rec = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_in_flight_requests")
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	f := newFixture(t)
	creds := map[string]string{"email": "amina@example.com", "password": "s3cret-pass"}

	rec := f.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     "Amina",
		"email":    "Amina@Example.com ",
		"password": "s3cret-pass",
		"role":     models.RoleProvider,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "amina@example.com", "code": "000000x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code := f.otps.Latest("amina@example.com", models.OTPPurposeSignup)
	require.NotEmpty(t, code)
	rec = f.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "amina@example.com", "code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.AuthResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleProvider, resp.User.Role)

	rec = f.do(t, http.MethodGet, "/api/me", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "A", "email": "a@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "whatever-123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/me", "/api/bookings", "/api/notifications", "/api/provider/dashboard"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := f.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleRestrictedRoutes(t *testing.T) {
	f := newFixture(t)
	_, touristToken := f.seedUser(t, "tess", models.RoleTourist)
	_, providerToken := f.seedUser(t, "paul", models.RoleProvider)

	rec := f.do(t, http.MethodPost, "/api/services", touristToken, map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/provider/dashboard", touristToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/bookings", providerToken, map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/assistant/suggestions", providerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t)
	_, providerToken := f.seedUser(t, "paul", models.RoleProvider)

	rec := f.do(t, http.MethodPost, "/api/services", providerToken, map[string]interface{}{
		"title": "Hunza Guest House", "category": models.CategoryAccommodation, "location": "Karimabad", "price": 40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Service
	decode(t, rec, &created)
	assert.Equal(t, models.ServiceStatusActive, created.Status)

	rec = f.do(t, http.MethodPost, "/api/services", providerToken, map[string]interface{}{
		"title": "Free lunch", "category": models.CategoryFood, "price": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/services?category=accommodation&maxPrice=50", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.ServicePage
	decode(t, rec, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.EqualValues(t, services.DefaultPageLimit, page.Limit)

	rec = f.do(t, http.MethodGet, "/api/services?minPrice=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/services?page=two", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/services?page=9223372036854775807", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/services/"+created.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/services/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/services/"+primitive.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/services/"+created.ID.Hex(), providerToken, map[string]string{"status": models.ServiceStatusInactive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/services", "", nil)
	decode(t, rec, &page)
	assert.EqualValues(t, 0, page.Total)

	rec = f.do(t, http.MethodGet, "/api/provider/services", providerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var owned []models.Service
	decode(t, rec, &owned)
	assert.Len(t, owned, 1)

	_, otherToken := f.seedUser(t, "olga", models.RoleProvider)
	rec = f.do(t, http.MethodDelete, "/api/services/"+created.ID.Hex(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/services/"+created.ID.Hex(), providerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUploadImageWithoutStorage(t *testing.T) {
	f := newFixture(t)
	_, providerToken := f.seedUser(t, "paul", models.RoleProvider)

	rec := f.do(t, http.MethodPost, "/api/services", providerToken, map[string]interface{}{
		"title": "Jeep to Fairy Meadows", "category": models.CategoryTransport, "price": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Service
	decode(t, rec, &created)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="jeep.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/services/"+created.ID.Hex()+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+providerToken)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBookingRoutes(t *testing.T) {
	f := newFixture(t)
	provider, providerToken := f.seedUser(t, "paul", models.RoleProvider)
	tourist, touristToken := f.seedUser(t, "tess", models.RoleTourist)
	_, strangerToken := f.seedUser(t, "sam", models.RoleTourist)

	rec := f.do(t, http.MethodPost, "/api/services", providerToken, map[string]interface{}{
		"title": "Passu Cones Trek", "category": models.CategoryTour, "price": 25, "capacity": 6,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var svc models.Service
	decode(t, rec, &svc)

	start := time.Now().UTC().AddDate(0, 0, 7).Format(models.DateLayout)
	rec = f.do(t, http.MethodPost, "/api/bookings", touristToken, map[string]interface{}{
		"serviceId": svc.ID.Hex(), "startDate": start, "guests": 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "over capacity")

	rec = f.do(t, http.MethodPost, "/api/bookings", touristToken, map[string]interface{}{
		"serviceId": svc.ID.Hex(), "startDate": start, "guests": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking models.Booking
	decode(t, rec, &booking)
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.InDelta(t, 75.0, booking.TotalPrice, 0.001)
	assert.Equal(t, tourist.ID, booking.UserID)
	assert.Len(t, f.notifications.For(provider.ID), 1)

	path := "/api/bookings/" + booking.ID.Hex()
	rec = f.do(t, http.MethodGet, path, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, path, providerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, path+"/status", touristToken, map[string]string{"status": models.BookingConfirmed})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodPatch, path+"/status", providerToken, map[string]string{"status": models.BookingCompleted})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPatch, path+"/status", providerToken, map[string]string{"status": models.BookingConfirmed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/provider/bookings?status=confirmed", providerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Booking
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = f.do(t, http.MethodGet, "/api/bookings", touristToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = f.do(t, http.MethodGet, "/api/provider/dashboard", providerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash models.ProviderDashboard
	decode(t, rec, &dash)
	assert.InDelta(t, 75.0, dash.Revenue, 0.001)
}

func TestReviewRoutes(t *testing.T) {
	f := newFixture(t)
	_, providerToken := f.seedUser(t, "paul", models.RoleProvider)
	_, touristToken := f.seedUser(t, "tess", models.RoleTourist)

	rec := f.do(t, http.MethodPost, "/api/services", providerToken, map[string]interface{}{
		"title": "Chapshuro night", "category": models.CategoryFood, "price": 8,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var svc models.Service
	decode(t, rec, &svc)
	path := "/api/services/" + svc.ID.Hex() + "/reviews"

	rec = f.do(t, http.MethodPost, path, touristToken, map[string]interface{}{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, path, providerToken, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path, touristToken, map[string]interface{}{"rating": 4, "comment": "Great"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var review models.Review
	decode(t, rec, &review)
	assert.False(t, review.Verified)

	rec = f.do(t, http.MethodPost, path, touristToken, map[string]interface{}{"rating": 3})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews []models.Review
	decode(t, rec, &reviews)
	assert.Len(t, reviews, 1)

	rec = f.do(t, http.MethodDelete, "/api/reviews/"+review.ID.Hex(), providerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/reviews/"+review.ID.Hex(), touristToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNotificationRoutes(t *testing.T) {
	f := newFixture(t)
	user, token := f.seedUser(t, "tess", models.RoleTourist)

	ctx := context.Background()
	f.server.notificationService.Notify(ctx, user.ID, "booking_status", "Booking confirmed", "See you soon", nil)
	f.server.notificationService.Notify(ctx, user.ID, "booking_status", "Booking completed", "Thanks", nil)

	rec := f.do(t, http.MethodGet, "/api/notifications?unread=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/notifications?unread=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Notification
	decode(t, rec, &list)
	require.Len(t, list, 2)

	rec = f.do(t, http.MethodPatch, "/api/notifications/"+list[0].ID.Hex()+"/read", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = f.do(t, http.MethodPatch, "/api/notifications/"+primitive.NewObjectID().Hex()+"/read", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssistantRoutesWithoutGenerator(t *testing.T) {
	f := newFixture(t)
	_, providerToken := f.seedUser(t, "paul", models.RoleProvider)
	_, touristToken := f.seedUser(t, "tess", models.RoleTourist)

	rec := f.do(t, http.MethodPost, "/api/assistant/describe", providerToken, map[string]string{
		"title": "Attabad boating", "category": models.CategoryTour, "location": "Gojal",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/assistant/suggestions", touristToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var suggestions []models.ServiceSuggestion
	decode(t, rec, &suggestions)
	assert.Empty(t, suggestions)
}
