package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillsign/quillsign-server/internal/api"
	"github.com/quillsign/quillsign-server/internal/identity"
	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/quillsign/quillsign-server/internal/repository"
	"github.com/quillsign/quillsign-server/internal/service"
	"github.com/quillsign/quillsign-server/internal/storage"
	"github.com/quillsign/quillsign-server/internal/token"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	Tokens     *token.Issuer

	TestUserID    string
	TestAccountID string
	TestUserJWT   string
}

// SetupTestContext creates a new test context backed by the in-memory
// repository, with one signed-up account ready to use
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()
	logger := zap.NewNop()

	templates, err := notify.LoadTemplates(nil)
	assert.NoError(t, err, "Failed to load email templates")

	tokens := token.NewIssuer(testJWTSecret, time.Hour)

	svc := service.NewDefaultService(
		repo,
		&notify.LogDispatcher{Logger: logger},
		templates,
		tokens,
		storage.NewMemoryStore(),
		&identity.LogProvider{Logger: logger},
		logger,
		service.Options{
			JWTSecret: testJWTSecret,
			BaseURL:   "http://localhost:8080",
		},
	)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	userID, accountID, jwt := createTestAccount(t, svc)

	return &TestContext{
		Router:        router,
		Repository:    repo,
		Service:       svc,
		Tokens:        tokens,
		TestUserID:    userID,
		TestAccountID: accountID,
		TestUserJWT:   jwt,
	}
}

// createTestAccount signs up a tenant and logs its primary user in
func createTestAccount(t *testing.T, svc service.Service) (string, string, string) {
	ctx := context.Background()

	auth, err := svc.SignUp(ctx, models.SignUpRequest{
		AccountName: "Test Corp",
		Email:       "testuser@example.com",
		Password:    "testpassword",
		Name:        "Test User",
	})
	assert.NoError(t, err, "Failed to create test account")

	login, err := svc.Login(ctx, models.LoginRequest{
		Email:    "testuser@example.com",
		Password: "testpassword",
	})
	assert.NoError(t, err, "Failed to log test user in")

	return auth.UserID, auth.AccountID, login.Token
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeResponse unmarshals the envelope every endpoint answers with
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.Response {
	var resp models.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode response body")
	return resp
}
