package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/eventlog"
	"github.com/awsomestore/storefront/pkg/storefront/notify"
	"github.com/awsomestore/storefront/pkg/storefront/orders"
	"github.com/awsomestore/storefront/pkg/storefront/products"
	"github.com/awsomestore/storefront/pkg/storefront/records"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router   *gin.Engine
	logStore eventlog.Store
}

// newTestAPI wires the full stack on memory backends: services publish
// to a live bus with the audit logger subscribed, so mutations show up
// in /orders/events.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	registry := event.NewStoreRegistry()
	productStore := records.NewMemoryProductStore()
	orderStore := records.NewMemoryOrderStore()
	logStore := eventlog.NewMemoryStore()

	bus := event.NewBus(event.BusConfig{})
	bus.SubscribePush(event.Filter{}, notify.NewAuditLogger(registry, logStore, nil))

	t.Cleanup(func() {
		bus.Close()
		productStore.Close()
		orderStore.Close()
		logStore.Close()
	})

	logger := slog.Default()
	productSvc := products.NewService(productStore, registry, bus, logger)
	orderSvc := orders.NewService(orderStore, productStore, registry, bus, logger)

	return &testAPI{
		router:   NewRouter(productSvc, orderSvc, logStore, logger),
		logStore: logStore,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Email", "admin@b.com")

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *testAPI) createProduct(t *testing.T, name, code string, price float64) records.Product {
	t.Helper()
	w := a.do(t, http.MethodPost, "/products", ProductRequest{
		Name: name, Code: code, Price: price, Model: "M",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return decode[records.Product](t, w)
}

func TestProductEndpoints(t *testing.T) {
	api := newTestAPI(t)

	created := api.createProduct(t, "Widget", "WID-1", 9.99)
	require.NotEmpty(t, created.ID)

	w := api.do(t, http.MethodGet, "/products/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[records.Product](t, w))

	w = api.do(t, http.MethodGet, "/products", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]records.Product](t, w), 1)

	w = api.do(t, http.MethodPut, "/products/"+created.ID, ProductRequest{
		Name: "Widget", Code: "WID-1", Price: 12.5, Model: "M",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12.5, decode[records.Product](t, w).Price)

	w = api.do(t, http.MethodDelete, "/products/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductNotFoundAndBadRequest(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/products/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPut, "/products/missing", ProductRequest{
		Name: "X", Code: "X-1",
	}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/products/missing", nil).Code)

	// Missing required fields.
	w := api.do(t, http.MethodPost, "/products", map[string]any{"price": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
}

func orderBody(email string, productIDs ...string) OrderRequest {
	req := OrderRequest{
		Email:      email,
		ProductIDs: productIDs,
		Payment:    records.PaymentCreditCard,
	}
	req.Shipping.Type = records.ShippingUrgent
	req.Shipping.Carrier = records.CarrierUPS
	return req
}

func TestOrderEndpoints(t *testing.T) {
	api := newTestAPI(t)

	widget := api.createProduct(t, "Widget", "WID-1", 30)
	gadget := api.createProduct(t, "Gadget", "GAD-1", 12.5)

	w := api.do(t, http.MethodPost, "/orders", orderBody("a@b.com", widget.ID, gadget.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[records.Order](t, w)
	assert.Equal(t, 42.5, created.Billing.TotalPrice)

	// Order IDs contain '#', so the query string needs escaping.
	orderPath := fmt.Sprintf("/orders?email=a@b.com&id=%s", url.QueryEscape(created.ID))

	w = api.do(t, http.MethodGet, orderPath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/orders?email=a@b.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]records.Order](t, w), 1)

	w = api.do(t, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]records.Order](t, w), 1)

	w = api.do(t, http.MethodDelete, orderPath, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, orderPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderWithUnknownProductIs404(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/orders", orderBody("a@b.com", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)
}

func TestOrderDeleteRequiresEmailAndID(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodDelete, "/orders?email=a@b.com", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/orders?email=a@b.com&id=ORDER%23x", nil).Code)
}

func TestOrderEventsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	widget := api.createProduct(t, "Widget", "WID-1", 30)

	w := api.do(t, http.MethodPost, "/orders", orderBody("a@b.com", widget.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[records.Order](t, w)

	w = api.do(t, http.MethodGet, "/orders/events?email=a@b.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]EventResponse](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, string(event.OrderCreated), events[0].EventType)
	assert.Equal(t, "a@b.com", events[0].Email)
	assert.Equal(t, created.ID, events[0].OrderID)
	assert.Equal(t, []string{"WID-1"}, events[0].ProductCodes)

	// The read shape is flat; storage keys never leak out.
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw, 1)
	assert.NotContains(t, raw[0], "partitionKey")
	assert.NotContains(t, raw[0], "sortKey")
	assert.NotContains(t, raw[0], "info")

	// eventType narrows the result.
	w = api.do(t, http.MethodGet, "/orders/events?email=a@b.com&eventType=ORDER_DELETED", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]EventResponse](t, w))

	// email is required.
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/orders/events", nil).Code)
}

func TestFromEntryFlattensProductDetail(t *testing.T) {
	entry := eventlog.NewEntry("product", "WID-1", event.ProductCreated, 1700000000000,
		"a@b.com", "req-1", eventlog.Info{
			SubjectID: "p-1",
			Detail:    json.RawMessage(`{"productPrice":19.5}`),
		})

	resp := FromEntry(entry)
	assert.Equal(t, "a@b.com", resp.Email)
	assert.Equal(t, "p-1", resp.ProductID)
	assert.Equal(t, 19.5, resp.Price)
	assert.Empty(t, resp.OrderID)
	assert.Empty(t, resp.ProductCodes)
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusMethodNotAllowed, api.do(t, http.MethodPatch, "/products", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, api.do(t, http.MethodPut, "/orders", nil).Code)
}

func TestRequestIDPropagation(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	// Absent header gets a generated ID.
	w2 := api.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w2.Header().Get("X-Request-ID"))
}
