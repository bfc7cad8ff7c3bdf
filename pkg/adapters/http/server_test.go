package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	"github.com/aretw0/cartkeeper/pkg/cart"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t        *testing.T
	handler  http.Handler
	provider *memory.Provider
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	provider := memory.NewProvider()
	coord := cart.New(provider, session.NewManager(memory.NewStore()))
	h, err := NewHandler(context.Background(), coord, append([]Option{WithDebug(true)}, opts...)...)
	require.NoError(t, err)
	return &testAPI{t: t, handler: h, provider: provider}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *testAPI) cart(w *httptest.ResponseRecorder, status int) domain.Cart {
	a.t.Helper()
	require.Equal(a.t, status, w.Code, w.Body.String())
	var c domain.Cart
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestCartRoutes_RecoverAcrossExpiry(t *testing.T) {
	api := newTestAPI(t)

	c := api.cart(api.do(http.MethodPost, "/carts", ""), http.StatusCreated)
	require.NotEmpty(t, c.ID)
	base := "/carts/" + c.ID

	c = api.cart(api.do(http.MethodPost, base+"/items", `{"productId":"p1","name":"Keyboard","price":100,"quantity":1}`), http.StatusOK)
	assert.Equal(t, 100.0, c.Total)
	c = api.cart(api.do(http.MethodPost, base+"/items", `{"productId":"p2","name":"Mouse","price":50,"quantity":2}`), http.StatusOK)
	stale := c.Items[0].ID

	w := api.do(http.MethodPost, base+"/expire", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	c = api.cart(api.do(http.MethodDelete, base+"/items/"+stale, ""), http.StatusOK)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ProductID)

	c = api.cart(api.do(http.MethodPatch, base+"/items/"+c.Items[0].ID, `{"quantity":3}`), http.StatusOK)
	assert.Equal(t, 150.0, c.Total)

	c = api.cart(api.do(http.MethodGet, base, ""), http.StatusOK)
	assert.Equal(t, 150.0, c.Total)
}

func TestCartRoutes_Validation(t *testing.T) {
	api := newTestAPI(t)
	c := api.cart(api.do(http.MethodPost, "/carts", ""), http.StatusCreated)
	base := "/carts/" + c.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"malformed json", http.MethodPost, base + "/items", `{"productId":`},
		{"missing product", http.MethodPost, base + "/items", `{"name":"x","price":1,"quantity":1}`},
		{"zero quantity", http.MethodPost, base + "/items", `{"productId":"p1","name":"x","price":1,"quantity":0}`},
		{"negative price", http.MethodPost, base + "/items", `{"productId":"p1","name":"x","price":-1,"quantity":1}`},
		{"unknown field", http.MethodPost, base + "/items", `{"productId":"p1","name":"x","price":1,"quantity":1,"sku":"a"}`},
		{"blank product after sanitizing", http.MethodPost, base + "/items", `{"productId":"\u0007 ","name":"x","price":1,"quantity":1}`},
		{"fractional quantity", http.MethodPatch, base + "/items/i1", `{"quantity":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, kindValidation, decodeError(t, w).Kind)
		})
	}
}

func TestCartRoutes_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/carts/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.KindSessionNotFound, decodeError(t, w).Kind)

	c := api.cart(api.do(http.MethodPost, "/carts", ""), http.StatusCreated)
	w = api.do(http.MethodDelete, "/carts/"+c.ID+"/items/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.KindItemNotFound, decodeError(t, w).Kind)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodPost, "/carts/"+c.ID+"/expire", "").Code)
	api.provider.InjectFault(memory.OpCreate, errors.New("outage"))
	w = api.do(http.MethodGet, "/carts/"+c.ID, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.KindRecoveryFailed, decodeError(t, w).Kind)
}

func TestStatusFor(t *testing.T) {
	tests := map[domain.ErrorKind]int{
		domain.KindSessionNotFound: http.StatusNotFound,
		domain.KindItemNotFound:    http.StatusNotFound,
		kindValidation:             http.StatusBadRequest,
		domain.KindRecoveryFailed:  http.StatusServiceUnavailable,
		kindRateLimited:            http.StatusTooManyRequests,
		domain.KindUnsupported:     http.StatusNotImplemented,
		domain.KindContextExpired:  http.StatusInternalServerError,
		domain.KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(kind), kind)
	}
}

func TestExpireRoute_DisabledWithoutDebug(t *testing.T) {
	api := newTestAPI(t, WithDebug(false))
	c := api.cart(api.do(http.MethodPost, "/carts", ""), http.StatusCreated)

	w := api.do(http.MethodPost, "/carts/"+c.ID+"/expire", "")
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, w.Code)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, WithRateLimit(1, 2))

	assert.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/carts", "").Code)
	assert.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/carts", "").Code)

	w := api.do(http.MethodPost, "/carts", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, kindRateLimited, decodeError(t, w).Kind)

	// Service endpoints are not limited.
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "").Code)
}

func TestServiceEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cartkeeper_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	api := newTestAPI(t, WithMetrics(reg), WithVersion("1.2.3"))

	w := api.do(http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.True(t, info.Debug)

	w = api.do(http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ItemInput")

	w = api.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cartkeeper_test_total 1")

	w = api.do(http.MethodOptions, "/carts", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientLimiter_NilAllows(t *testing.T) {
	var l *clientLimiter
	assert.True(t, l.allow("1.2.3.4"))
	assert.Nil(t, newClientLimiter(0, 1))
}
