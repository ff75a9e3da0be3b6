package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"todoapi/internal/auth"
	"todoapi/internal/cache"
	"todoapi/internal/config"
	"todoapi/internal/handler"
	"todoapi/internal/model"
	"todoapi/internal/service"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *mockTaskRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *mockTaskRepo) Update(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func newTestServer(t *testing.T, userRepo *mockUserRepo, taskRepo *mockTaskRepo) (*echo.Echo, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		AppName:   "Todo API",
		JWTSecret: "test-secret",
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := service.NewAuthService(userRepo, jwtService)
	// A nil client degrades every read to a cache miss.
	taskService := service.NewTaskService(taskRepo, (*cache.Client)(nil))

	e := echo.New()
	Register(e, cfg, handler.NewAuthHandler(authService), handler.NewTaskHandler(taskService))
	return e, cfg
}

func doJSON(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// Full register-then-access flow: a fresh user lists their own (empty) tasks
// and is refused another user's route with the same token.
func TestRouter_RegisterThenAccess(t *testing.T) {
	userRepo := new(mockUserRepo)
	userRepo.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, gorm.ErrRecordNotFound)
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

	taskRepo := new(mockTaskRepo)
	taskRepo.On("ListByUser", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return([]model.Task{}, nil)

	e, _ := newTestServer(t, userRepo, taskRepo)

	rec := doJSON(e, http.MethodPost, "/auth/register", `{"email":"a@x.com","name":"A"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var reg handler.AuthResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "a@x.com", reg.User.Email)

	// Own tasks: empty list, not null.
	rec = doJSON(e, http.MethodGet, "/"+reg.User.ID.String()+"/tasks", "", reg.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	// Another user's route with the same token: forbidden.
	rec = doJSON(e, http.MethodGet, "/"+uuid.NewString()+"/tasks", "", reg.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestRouter_GuardRejectsBadTokens(t *testing.T) {
	e, cfg := newTestServer(t, new(mockUserRepo), new(mockTaskRepo))
	path := "/" + uuid.NewString() + "/tasks"

	t.Run("missing header", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed token", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, path, "", "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := &auth.Claims{
			UserID: uuid.NewString(),
			Email:  "a@x.com",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
		assert.NoError(t, err)

		rec := doJSON(e, http.MethodGet, path, "", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := auth.NewJWTService("other-secret")
		token, err := other.GenerateToken(uuid.New(), "a@x.com")
		assert.NoError(t, err)

		rec := doJSON(e, http.MethodGet, path, "", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_AuthRoutesNeedNoToken(t *testing.T) {
	userRepo := new(mockUserRepo)
	userRepo.On("FindByEmail", mock.Anything, "nobody@x.com").Return(nil, gorm.ErrRecordNotFound)

	e, _ := newTestServer(t, userRepo, new(mockTaskRepo))

	rec := doJSON(e, http.MethodPost, "/auth/login", `{"email":"nobody@x.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")

	rec = doJSON(e, http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	e, _ := newTestServer(t, new(mockUserRepo), new(mockTaskRepo))

	rec := doJSON(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.Contains(t, rec.Body.String(), "Todo API")
}
