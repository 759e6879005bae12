package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
	"shop-service/internal/service"
)

func newTestServer(store *repository.MemStore) *echo.Echo {
	e := echo.New()
	h := NewHandler(
		service.NewProductService(store),
		service.NewCartService(store),
		service.NewOrderService(store, nil, nil),
		service.NewCourseService(store),
		service.NewFavoriteService(store),
	)
	h.Register(e)
	return e
}

func seedProduct(store *repository.MemStore, id, name, price string, stock int) {
	store.SeedProduct(entity.Product{
		ID:        id,
		Name:      name,
		Slug:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
}

func doJSON(e *echo.Echo, method, path, sessionKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sessionKey != "" {
		req.Header.Set(sessionKeyHeader, sessionKey)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCartRequiresPrincipal(t *testing.T) {
	e := newTestServer(repository.NewMemStore())

	rec := doJSON(e, http.MethodGet, "/cart", "", "")
	assert.Equal(t, 401, rec.Code)
}

func TestCartAddAndCheckoutFlow(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", 5)
	e := newTestServer(store)

	rec := doJSON(e, http.MethodPost, "/cart/items", "sess-1", `{"product_id":"p1","quantity":3}`)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	var cart entity.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)

	body := `{"full_name":"Aziz Karimov","contact_phone":"+998901234567","delivery_address":"Tashkent"}`
	rec = doJSON(e, http.MethodPost, "/orders", "sess-1", body)
	require.Equal(t, 201, rec.Code, rec.Body.String())

	var order entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Regexp(t, `^OG-\d{8}-\d{5}$`, order.Number)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("30")), "subtotal = %s", order.Subtotal)

	// Cart is empty afterwards.
	rec = doJSON(e, http.MethodGet, "/cart", "sess-1", "")
	require.Equal(t, 200, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Empty(t, cart.Lines)

	// The order is listed for the same session only.
	rec = doJSON(e, http.MethodGet, "/orders", "sess-1", "")
	require.Equal(t, 200, rec.Code)
	var orders []entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)

	rec = doJSON(e, http.MethodGet, "/orders", "sess-other", "")
	require.Equal(t, 200, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Empty(t, orders)
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	store := repository.NewMemStore()
	e := newTestServer(store)

	body := `{"full_name":"A","contact_phone":"+998","delivery_address":"T"}`
	rec := doJSON(e, http.MethodPost, "/orders", "sess-1", body)
	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart is empty")
}

func TestCheckoutValidationErrorShape(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Honey", "25.00", 1)
	e := newTestServer(store)

	rec := doJSON(e, http.MethodPost, "/cart/items", "sess-1", `{"product_id":"p1","quantity":1}`)
	require.Equal(t, 200, rec.Code)
	// Bump the line beyond stock.
	rec = doJSON(e, http.MethodPut, "/cart/items/p1", "sess-1", `{"quantity":4}`)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	body := `{"full_name":"A","contact_phone":"+998","delivery_address":"T"}`
	rec = doJSON(e, http.MethodPost, "/orders", "sess-1", body)
	require.Equal(t, 400, rec.Code)

	var resp struct {
		Errors map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Errors, "p1")
	assert.Contains(t, resp.Errors["p1"][0], "requested 4, available 1")
}

func TestGetProductByIDOrSlug(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "green-tea", "10.00", 5)
	e := newTestServer(store)

	rec := doJSON(e, http.MethodGet, "/products/p1", "", "")
	assert.Equal(t, 200, rec.Code)

	rec = doJSON(e, http.MethodGet, "/products/green-tea", "", "")
	assert.Equal(t, 200, rec.Code)

	rec = doJSON(e, http.MethodGet, "/products/ghost", "", "")
	assert.Equal(t, 404, rec.Code)
}

func TestCreateCourseApplication(t *testing.T) {
	e := newTestServer(repository.NewMemStore())

	body := `{"full_name":"Malika","phone":"+998935551122","course_name":"Organic Farming"}`
	rec := doJSON(e, http.MethodPost, "/course-applications", "", body)
	require.Equal(t, 201, rec.Code, rec.Body.String())

	var app entity.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Regexp(t, `^KURS-\d{8}-\d{5}$`, app.Number)

	rec = doJSON(e, http.MethodPost, "/course-applications", "", `{"full_name":"X"}`)
	assert.Equal(t, 400, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "phone is required")
}

func TestRequestValidationReturnsBadRequest(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", 5)
	e := newTestServer(store)

	// Checkout without contact fields.
	rec := doJSON(e, http.MethodPost, "/orders", "sess-1", `{"full_name":"A"}`)
	assert.Equal(t, 400, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "contact_phone is required")

	// Cart quantity out of bounds.
	rec = doJSON(e, http.MethodPost, "/cart/items", "sess-1", `{"product_id":"p1","quantity":1000}`)
	assert.Equal(t, 400, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "quantity must be between")
}

func TestFavoritesFlow(t *testing.T) {
	store := repository.NewMemStore()
	seedProduct(store, "p1", "Green Tea", "10.00", 5)
	e := newTestServer(store)

	rec := doJSON(e, http.MethodGet, "/favorites", "", "")
	assert.Equal(t, 401, rec.Code)

	rec = doJSON(e, http.MethodPost, "/favorites", "sess-1", `{"product_id":"p1"}`)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	// A duplicate add keeps the single entry.
	rec = doJSON(e, http.MethodPost, "/favorites", "sess-1", `{"product_id":"p1"}`)
	require.Equal(t, 200, rec.Code)

	var favorites []entity.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favorites))
	require.Len(t, favorites, 1)
	assert.Equal(t, "p1", favorites[0].ProductID)
	assert.Equal(t, "Green Tea", favorites[0].ProductName)

	// Another session sees an empty wishlist.
	rec = doJSON(e, http.MethodGet, "/favorites", "sess-other", "")
	require.Equal(t, 200, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favorites))
	assert.Empty(t, favorites)

	rec = doJSON(e, http.MethodDelete, "/favorites/p1", "sess-1", "")
	require.Equal(t, 200, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favorites))
	assert.Empty(t, favorites)

	rec = doJSON(e, http.MethodDelete, "/favorites/p1", "sess-1", "")
	assert.Equal(t, 404, rec.Code)

	rec = doJSON(e, http.MethodPost, "/favorites", "sess-1", `{"product_id":"ghost"}`)
	assert.Equal(t, 404, rec.Code)
}
