package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_food/internal/auth"
	"github.com/fjod/go_food/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "callback-secret"

type testAPI struct {
	router   http.Handler
	issuer   *auth.Issuer
	cart     *CartMock
	checkout *CheckoutMock
	orders   *OrderMock
}

func newTestAPI(t *testing.T, limiter *UserRateLimiter) *testAPI {
	t.Helper()
	logger := discardLogger()
	api := &testAPI{
		issuer:   auth.NewIssuer("jwt-secret", time.Minute, time.Hour),
		cart:     &CartMock{cart: &domain.Cart{ID: "cart-1", UserID: "user-1"}},
		checkout: &CheckoutMock{session: &domain.CheckoutSession{ID: "chk-1"}, order: &domain.Order{ID: "order-1"}},
		orders:   &OrderMock{order: &domain.Order{ID: "order-1", Status: domain.OrderStatusConfirmed}},
	}
	api.router = NewRouter(RouterConfig{
		ServiceName:    "api-test",
		Logger:         logger,
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"http://admin.local"},
		PaymentSecret:  testSecret,
		Tokens:         api.issuer,
		Limiter:        limiter,
		Cart:           NewCartHandler(api.cart, 5*time.Second, logger),
		Checkout:       NewCheckoutHandler(api.checkout, 5*time.Second, logger),
		Orders:         NewOrdersHandler(api.orders, 5*time.Second, logger),
		Auth:           NewAuthHandler(AuthMock{}, 5*time.Second, logger),
		Payments:       NewPaymentHandler(api.orders, 5*time.Second, logger),
	})
	return api
}

func (a *testAPI) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	pair, err := a.issuer.IssuePair(userID, role)
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
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
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/cart", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	refresh, err := api.issuer.IssuePair("user-1", domain.RoleCustomer)
	require.NoError(t, err)
	rec = api.do(t, http.MethodGet, "/api/v1/cart", refresh.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CartUsesTokenSubject(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/cart", api.token(t, "user-7", domain.RoleCustomer), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", api.cart.lastUser)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_AdminRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	body := map[string]string{"status": "preparing"}

	rec := api.do(t, http.MethodPatch, "/api/v1/orders/order-1/status", api.token(t, "user-1", domain.RoleCustomer), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/orders/order-1/status", api.token(t, "admin-1", domain.RoleAdmin), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "preparing", api.orders.lastStatus)

	rec = api.do(t, http.MethodGet, "/api/v1/orders/order-1/receipt", api.token(t, "admin-1", domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_PaymentCallbackSecret(t *testing.T) {
	api := newTestAPI(t, nil)
	body := map[string]string{"order_id": "order-1", "status": "completed"}

	rec := api.do(t, http.MethodPost, "/api/v1/payments/callback", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", &buf)
	req.Header.Set(PaymentSecretHeader, testSecret)
	ok := httptest.NewRecorder()
	api.router.ServeHTTP(ok, req)

	require.Equal(t, http.StatusOK, ok.Code)
	var order domain.Order
	require.NoError(t, json.NewDecoder(ok.Body).Decode(&order))
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
}

func TestRouter_RateLimit(t *testing.T) {
	api := newTestAPI(t, NewUserRateLimiter(0.001, 2))
	token := api.token(t, "user-1", domain.RoleCustomer)

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/cart", token, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/cart", token, nil).Code)
	rec := api.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Buckets are per user.
	other := api.token(t, "user-2", domain.RoleCustomer)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/cart", other, nil).Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://admin.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()

	api.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://admin.local", rec.Header().Get("Access-Control-Allow-Origin"))
}
