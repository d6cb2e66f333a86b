package api

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"comanda/internal/database"
	"comanda/internal/kitchen"
	"comanda/internal/monitoring"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func newTestAPI(t *testing.T, opts Options) *KitchenAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var kopts []kitchen.Option
	if opts.Monitor != nil {
		kopts = append(kopts, kitchen.WithObserver(opts.Monitor))
	}
	return NewKitchenAPI(kitchen.New(db, kopts...), opts)
}

func perform(t *testing.T, api *KitchenAPI, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.Router.ServeHTTP(w, req)
	return w
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 0, 64)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

// seedCompleto stocks the ingredients of a Completo, creates the menu and a customer
func seedCompleto(t *testing.T, api *KitchenAPI, token string) (menuID, customerID float64) {
	t.Helper()
	for _, name := range []string{"Vienesa", "Pan de completo", "Tomate", "Palta", "Mayonesa"} {
		w := perform(t, api, http.MethodPost, "/api/v1/ingredients", gin.H{"name": name, "unit": "unid", "amount": 30}, token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := perform(t, api, http.MethodPost, "/api/v1/menus", gin.H{
		"name":  "completo",
		"price": 1800,
		"lines": []gin.H{
			{"ingredient": "Vienesa", "quantity": 1},
			{"ingredient": "Pan de completo", "quantity": 1},
			{"ingredient": "Tomate", "quantity": 1},
			{"ingredient": "Palta", "quantity": 1},
			{"ingredient": "Mayonesa", "quantity": 1},
		},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	menu := decode(t, w)
	assert.Equal(t, "Completo", menu["name"])

	w = perform(t, api, http.MethodPost, "/api/v1/customers", gin.H{"name": "ana perez", "email": "Ana@Example.com"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	customer := decode(t, w)
	assert.Equal(t, "ana@example.com", customer["email"])

	return menu["id"].(float64), customer["id"].(float64)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, Options{})

	w := perform(t, api, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestOrderFlow(t *testing.T) {
	monitor := monitoring.NewMonitor()
	api := newTestAPI(t, Options{Monitor: monitor})
	menuID, customerID := seedCompleto(t, api, "")

	w := perform(t, api, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id": customerID,
		"items":       []gin.H{{"menu_id": menuID, "quantity": 10}},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(t, w)
	assert.Equal(t, "18000", order["total"])
	assert.NotEmpty(t, order["reference"])
	orderID := order["id"].(float64)

	w = perform(t, api, http.MethodGet, "/api/v1/orders/by-reference/"+order["reference"].(string), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, orderID, decode(t, w)["id"])

	w = perform(t, api, http.MethodGet, "/api/v1/orders/by-reference/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(t, api, http.MethodGet, "/api/v1/ingredients", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, ing := range decodeList(t, w) {
		assert.Equal(t, "20", ing["stock"], ing["name"])
	}

	// the second order would need 1000 of each ingredient
	w = perform(t, api, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id": customerID,
		"items":       []gin.H{{"menu_id": menuID, "quantity": 1000}},
	}, "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	shortfalls := decode(t, w)["shortfalls"].([]interface{})
	assert.Len(t, shortfalls, 5)

	w = perform(t, api, http.MethodGet, "/api/v1/ingredients", nil, "")
	for _, ing := range decodeList(t, w) {
		assert.Equal(t, "20", ing["stock"], ing["name"])
	}

	w = perform(t, api, http.MethodGet, "/api/v1/orders/"+ftoa(orderID)+"/receipt", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt := decode(t, w)
	assert.Equal(t, "18000", receipt["subtotal"])
	assert.Equal(t, "3420", receipt["tax"])
	assert.Equal(t, "21420", receipt["total"])

	w = perform(t, api, http.MethodGet, "/api/v1/customers/"+ftoa(customerID)+"/orders", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)

	w = perform(t, api, http.MethodGet, "/api/v1/reports/menus", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	dist := decodeList(t, w)
	require.Len(t, dist, 1)
	assert.Equal(t, float64(10), dist[0]["units"])

	metrics := monitor.GetMetrics()
	assert.Equal(t, 1, metrics["orders_committed"])
	assert.Equal(t, 1, metrics["orders_insufficient_stock"])

	w = perform(t, api, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode(t, w)["metrics"].(map[string]interface{})
	assert.Equal(t, float64(1), snapshot["orders_committed"])
	assert.Contains(t, snapshot, "uptime_seconds")
}

func TestReceiptTaxRate(t *testing.T) {
	zero := decimal.Zero
	tests := []struct {
		name  string
		rate  *decimal.Decimal
		tax   string
		total string
	}{
		{"default", nil, "342", "2142"},
		{"tax free", &zero, "0", "1800"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, Options{TaxRate: tt.rate})
			menuID, customerID := seedCompleto(t, api, "")

			w := perform(t, api, http.MethodPost, "/api/v1/orders", gin.H{
				"customer_id": customerID,
				"items":       []gin.H{{"menu_id": menuID, "quantity": 1}},
			}, "")
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			orderID := decode(t, w)["id"].(float64)

			w = perform(t, api, http.MethodGet, "/api/v1/orders/"+ftoa(orderID)+"/receipt", nil, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			receipt := decode(t, w)
			assert.Equal(t, tt.tax, receipt["tax"])
			assert.Equal(t, tt.total, receipt["total"])
		})
	}
}

func TestQuote(t *testing.T) {
	api := newTestAPI(t, Options{})
	menuID, _ := seedCompleto(t, api, "")

	w := perform(t, api, http.MethodPost, "/api/v1/orders/quote", gin.H{
		"items": []gin.H{{"menu_id": menuID, "quantity": 31}},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quote := decode(t, w)
	assert.Equal(t, false, quote["feasible"])
	assert.Equal(t, "55800", quote["total"])

	w = perform(t, api, http.MethodGet, "/api/v1/orders", nil, "")
	assert.Empty(t, decodeList(t, w))
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, Options{})
	seedCompleto(t, api, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown menu", http.MethodGet, "/api/v1/menus/999", nil, http.StatusNotFound},
		{"unknown menu name", http.MethodGet, "/api/v1/menus/by-name/lasagna", nil, http.StatusNotFound},
		{"malformed id", http.MethodGet, "/api/v1/orders/abc", nil, http.StatusBadRequest},
		{"duplicate menu", http.MethodPost, "/api/v1/menus", gin.H{"name": "COMPLETO", "price": 100}, http.StatusConflict},
		{"unknown ingredient", http.MethodPost, "/api/v1/menus", gin.H{"name": "Lasagna", "price": 100, "lines": []gin.H{{"ingredient": "Pasta", "quantity": 1}}}, http.StatusNotFound},
		{"non-positive price", http.MethodPost, "/api/v1/menus", gin.H{"name": "Agua", "price": 0}, http.StatusBadRequest},
		{"bad email", http.MethodPost, "/api/v1/customers", gin.H{"name": "Luis", "email": "luis"}, http.StatusBadRequest},
		{"empty cart", http.MethodPost, "/api/v1/orders", gin.H{"customer_id": 1, "items": []gin.H{}}, http.StatusBadRequest},
		{"unknown customer", http.MethodPost, "/api/v1/orders", gin.H{"customer_id": 42, "items": []gin.H{{"menu_id": 1, "quantity": 1}}}, http.StatusNotFound},
		{"overflowing quantity", http.MethodPost, "/api/v1/orders", gin.H{"customer_id": 1, "items": []gin.H{{"menu_id": 1, "quantity": math.MaxInt}, {"menu_id": 1, "quantity": math.MaxInt}}}, http.StatusBadRequest},
		{"quantity finer than stored", http.MethodPost, "/api/v1/menus", gin.H{"name": "Pizca", "price": 100, "lines": []gin.H{{"ingredient": "Tomate", "quantity": "0.00001"}}}, http.StatusBadRequest},
		{"ingredient in use", http.MethodDelete, "/api/v1/ingredients/1", nil, http.StatusConflict},
		{"bad period", http.MethodGet, "/api/v1/reports/sales?period=week", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(t, api, tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSubtractStock(t *testing.T) {
	api := newTestAPI(t, Options{})
	perform(t, api, http.MethodPost, "/api/v1/ingredients", gin.H{"name": "Tomate", "unit": "unid", "amount": 5}, "")

	w := perform(t, api, http.MethodPost, "/api/v1/ingredients/subtract", gin.H{"name": "tomate", "amount": 2}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["subtracted"])

	w = perform(t, api, http.MethodPost, "/api/v1/ingredients/subtract", gin.H{"name": "tomate", "amount": 4}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, false, decode(t, w)["subtracted"])

	w = perform(t, api, http.MethodPut, "/api/v1/ingredients/1/stock", gin.H{"amount": 12}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "12", decode(t, w)["stock"])
}

func TestAuthRequiredForWrites(t *testing.T) {
	api := newTestAPI(t, Options{JWTSecret: testSecret})

	w := perform(t, api, http.MethodPost, "/api/v1/ingredients", gin.H{"name": "Pan", "amount": 1}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(t, api, http.MethodPost, "/api/v1/ingredients", gin.H{"name": "Pan", "amount": 1}, signToken(t, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(t, api, http.MethodPost, "/api/v1/ingredients", gin.H{"name": "Pan", "amount": 1}, signToken(t, testSecret))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = perform(t, api, http.MethodGet, "/api/v1/ingredients", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeList(t, w), 1)
}

func TestImportStock(t *testing.T) {
	monitor := monitoring.NewMonitor()
	api := newTestAPI(t, Options{Monitor: monitor})

	csv := "nombre,cantidad,unidad\nvienesa,30,unid\npan,x,unid\n"
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/ingredients/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	api.Router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)
	assert.Equal(t, float64(1), result["imported"])
	assert.Len(t, result["skipped"], 1)

	scrape := httptest.NewRecorder()
	monitor.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `comanda_import_rows_total{result="skipped"} 1`)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	part.Write([]byte("name,quantity\nVienesa,5\n"))
	require.NoError(t, mw.Close())

	req, _ = http.NewRequest(http.MethodPost, "/api/v1/ingredients/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	api.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = perform(t, api, http.MethodGet, "/api/v1/ingredients", nil, "")
	ingredients := decodeList(t, w)
	require.Len(t, ingredients, 1)
	assert.Equal(t, "35", ingredients[0]["stock"])

	req, _ = http.NewRequest(http.MethodPost, "/api/v1/ingredients/import", strings.NewReader("foo,bar\n1,2\n"))
	w = httptest.NewRecorder()
	api.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, Options{})

	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	api.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
