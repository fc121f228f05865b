package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"erp/internal/database"
	"erp/internal/handlers"
	"erp/internal/middleware"
	"erp/internal/repositories"
	"erp/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) (*fiber.App, *services.TokenService) {
	t.Helper()
	db := database.NewTestDB(t)

	userRepo := repositories.NewGORMUserRepository(db)
	itemRepo := repositories.NewGORMItemRepository(db)

	tokens := services.NewTokenService(testJWTSecret, 30*time.Minute)
	authService := services.NewAuthService(userRepo, tokens, bcrypt.MinCost)
	inventoryService := services.NewInventoryService(itemRepo, services.InventoryOptions{
		LowStockThreshold: 10,
		DefaultPageSize:   10,
		MaxPageSize:       20,
	}, nil)

	validate := handlers.NewValidator()
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})

	guard := middleware.AuthRequired(tokens)
	handlers.NewAuthHandler(authService, validate).RegisterRoutes(app, guard)
	handlers.NewItemHandler(inventoryService, validate).RegisterRoutes(app, guard)
	handlers.NewDashboardHandler(inventoryService).RegisterRoutes(app, guard)

	return app, tokens
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func doJSON(t *testing.T, app *fiber.App, method, target, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "Password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": "Password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login handlers.TokenResponse
	decode(t, resp, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, tokens := setupApp(t)

	// Test Registration
	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "Password123",
	}
	resp := doJSON(t, app, http.MethodPost, "/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var registered map[string]interface{}
	decode(t, resp, &registered)
	assert.Equal(t, "testuser", registered["username"])
	assert.Equal(t, "test@example.com", registered["email"])
	assert.NotContains(t, registered, "password_hash")
	assert.NotContains(t, registered, "PasswordHash")

	// Test Duplicate Registration (username)
	resp = doJSON(t, app, http.MethodPost, "/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Test Duplicate Registration (email)
	resp = doJSON(t, app, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "otheruser",
		"email":    "test@example.com",
		"password": "Password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Test Login
	resp = doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "Password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var login handlers.TokenResponse
	decode(t, resp, &login)
	assert.Equal(t, "bearer", login.TokenType)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), login.ExpiresAt, 2*time.Second)

	username, err := tokens.Verify(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "testuser", username)

	// Test Login by email with a form body
	form := url.Values{"username": {"test@example.com"}, "password": {"Password123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Test /auth/me
	resp = doJSON(t, app, http.MethodGet, "/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]interface{}
	decode(t, resp, &me)
	assert.Equal(t, "testuser", me["username"])
}

func TestAuthLoginFailures(t *testing.T) {
	app, _ := setupApp(t)
	registerAndLogin(t, app, "alice")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "Wrong1234"},
		{"unknown user", "nobody", "Password123"},
	}
	var bodies []string
	for _, tt := range tests {
		resp := doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{
			"username": tt.username,
			"password": tt.password,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, tt.name)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		bodies = append(bodies, string(body))
	}
	assert.Equal(t, bodies[0], bodies[1], "unknown user and wrong password look the same")

	resp := doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthRegisterValidation(t *testing.T) {
	app, _ := setupApp(t)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"short username", map[string]string{"username": "ab", "password": "Password123"}, "username"},
		{"bad username chars", map[string]string{"username": "bob smith", "password": "Password123"}, "username"},
		{"weak password", map[string]string{"username": "bob", "password": "password"}, "password"},
		{"bad email", map[string]string{"username": "bob", "email": "not-an-email", "password": "Password123"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body struct {
				Message string            `json:"message"`
				Errors  map[string]string `json:"errors"`
			}
			decode(t, resp, &body)
			assert.Equal(t, "Validation failed", body.Message)
			assert.Contains(t, body.Errors, tt.field)
		})
	}
}

func TestItemEndpoints(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "authuser")

	// --- Test POST /items (protected) ---
	resp := doJSON(t, app, http.MethodPost, "/items", token, map[string]interface{}{
		"name":        "Smartphone",
		"description": "Latest model smartphone",
		"quantity":    50,
		"unit_price":  799.99,
		"category":    "electronics",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created handlers.ItemResponse
	decode(t, resp, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Smartphone", created.Name)
	assert.Equal(t, "799.99", created.UnitPrice)
	assert.False(t, created.LowStock)

	itemURL := fmt.Sprintf("/items/%d", created.ID)

	// --- Test GET /items/:id (protected) ---
	resp = doJSON(t, app, http.MethodGet, itemURL, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched handlers.ItemResponse
	decode(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)

	// --- Test PUT /items/:id (protected), price given as a string ---
	resp = doJSON(t, app, http.MethodPut, itemURL, token, map[string]interface{}{
		"name":       "Smartphone Pro",
		"quantity":   5,
		"unit_price": "899.9",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated handlers.ItemResponse
	decode(t, resp, &updated)
	assert.Equal(t, "Smartphone Pro", updated.Name)
	assert.Equal(t, "Latest model smartphone", updated.Description)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, "899.90", updated.UnitPrice)
	assert.True(t, updated.LowStock)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	// --- Invalid updates ---
	resp = doJSON(t, app, http.MethodPut, itemURL, token, map[string]interface{}{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, app, http.MethodPut, "/items/9999", token, map[string]interface{}{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// --- Test DELETE /items/:id (protected) ---
	resp = doJSON(t, app, http.MethodDelete, itemURL, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Verify deletion
	resp = doJSON(t, app, http.MethodGet, itemURL, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, itemURL, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/items/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateItemValidation(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "authuser")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"negative quantity", map[string]interface{}{"name": "Pen", "quantity": -1, "unit_price": 1}},
		{"negative price", map[string]interface{}{"name": "Pen", "quantity": 1, "unit_price": -2.5}},
		{"missing name", map[string]interface{}{"quantity": 1, "unit_price": 1}},
		{"blank name", map[string]interface{}{"name": "   ", "quantity": 1, "unit_price": 1}},
		{"missing price", map[string]interface{}{"name": "Pen", "quantity": 1}},
		{"three decimals", map[string]interface{}{"name": "Pen", "quantity": 1, "unit_price": "1.005"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/items", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}

	resp := doJSON(t, app, http.MethodGet, "/items", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get(handlers.HeaderTotalCount), "no row is persisted")
	resp.Body.Close()
}

func TestListItems(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "authuser")

	for i := 1; i <= 25; i++ {
		category := "even"
		if i%2 == 1 {
			category = "odd"
		}
		resp := doJSON(t, app, http.MethodPost, "/items", token, map[string]interface{}{
			"name":       fmt.Sprintf("Widget %02d", i),
			"quantity":   i,
			"unit_price": "1.50",
			"category":   category,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	list := func(query string) ([]handlers.ItemResponse, *http.Response) {
		resp := doJSON(t, app, http.MethodGet, "/items"+query, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, query)
		var items []handlers.ItemResponse
		decode(t, resp, &items)
		return items, resp
	}

	items, resp := list("?offset=0&limit=10")
	assert.Len(t, items, 10)
	assert.Equal(t, "25", resp.Header.Get(handlers.HeaderTotalCount))
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].ID, items[i].ID)
	}

	items, _ = list("")
	assert.Len(t, items, 10, "default page size")

	items, _ = list("?limit=1000")
	assert.Len(t, items, 20, "limit capped at max page size")

	items, resp = list("?category=odd&limit=20")
	assert.Len(t, items, 13)
	assert.Equal(t, "13", resp.Header.Get(handlers.HeaderTotalCount))

	items, resp = list("?name=widget%200&limit=20")
	assert.Len(t, items, 9)
	assert.Equal(t, "9", resp.Header.Get(handlers.HeaderTotalCount))

	items, _ = list("?low_stock=true&limit=20")
	assert.Len(t, items, 9)
	for _, item := range items {
		assert.True(t, item.LowStock)
	}

	items, _ = list("?sort=quantity&order=desc&limit=3")
	require.Len(t, items, 3)
	assert.Equal(t, 25, items[0].Quantity)

	items, _ = list("?min_quantity=5&max_quantity=7")
	assert.Len(t, items, 3)

	for _, bad := range []string{"?sort=password_hash", "?order=up", "?offset=-1", "?limit=abc", "?min_price=cheap"} {
		resp := doJSON(t, app, http.MethodGet, "/items"+bad, token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		resp.Body.Close()
	}
}

func TestDashboardSummary(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "authuser")

	for _, item := range []map[string]interface{}{
		{"name": "Pen", "quantity": 3, "unit_price": 2.50},
		{"name": "Stapler", "quantity": 1, "unit_price": "9.99"},
	} {
		resp := doJSON(t, app, http.MethodPost, "/items", token, item)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, app, http.MethodGet, "/dashboard/summary", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var summary handlers.SummaryResponse
	decode(t, resp, &summary)
	assert.Equal(t, "17.49", summary.TotalValue)
	assert.Equal(t, int64(2), summary.TotalItems)
	assert.Equal(t, int64(4), summary.TotalQuantity)
	assert.Equal(t, int64(2), summary.LowStockCount)
	assert.Equal(t, 10, summary.LowStockThreshold)
}

func TestEndpointsWithoutAuth(t *testing.T) {
	app, tokens := setupApp(t)
	token := registerAndLogin(t, app, "authuser")

	expired := services.NewTokenService(testJWTSecret, time.Minute)
	expired.SetClock(func() time.Time { return time.Now().Add(-time.Hour) })
	stale, err := expired.Issue("authuser")
	require.NoError(t, err)

	forged, err := services.NewTokenService("other_secret", time.Minute).Issue("authuser")
	require.NoError(t, err)

	// A valid token for an account that does not exist passes the guard
	// but not /auth/me.
	ghost, err := tokens.Issue("ghost")
	require.NoError(t, err)
	resp := doJSON(t, app, http.MethodGet, "/auth/me", ghost.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	routes := []struct{ method, path string }{
		{http.MethodGet, "/items"},
		{http.MethodPost, "/items"},
		{http.MethodGet, "/items/1"},
		{http.MethodPut, "/items/1"},
		{http.MethodDelete, "/items/1"},
		{http.MethodGet, "/dashboard/summary"},
		{http.MethodGet, "/auth/me"},
	}
	for _, route := range routes {
		for _, bad := range []string{"", "garbage", stale.Token, forged.Token} {
			resp := doJSON(t, app, route.method, route.path, bad, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			assert.JSONEq(t, `{"message":"Unauthorized"}`, string(body))
		}
	}

	resp = doJSON(t, app, http.MethodGet, "/items", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
