package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"todoapi/internal/errors"
	"todoapi/internal/model"
)

// MockAuthService is a mock implementation of AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, name string) (string, *model.User, error) {
	args := m.Called(ctx, email, name)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.User), args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.User), args.Error(2)
}

func newAuthContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("success returns token and public profile", func(t *testing.T) {
		user := &model.User{ID: uuid.New(), Email: "a@x.com", Name: "A"}
		svc := new(MockAuthService)
		svc.On("Register", mock.Anything, "a@x.com", "A").Return("tok", user, nil)

		h := NewAuthHandler(svc)
		c, rec := newAuthContext(t, `{"email":"a@x.com","name":"A"}`)

		assert.NoError(t, h.Register(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got AuthResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "tok", got.Token)
		assert.Equal(t, user.ID, got.User.ID)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Register", mock.Anything, "a@x.com", "A").Return("", nil, errors.ErrEmailTaken)

		h := NewAuthHandler(svc)
		c, _ := newAuthContext(t, `{"email":"a@x.com","name":"A"}`)

		err := h.Register(c)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("invalid email is rejected before the service", func(t *testing.T) {
		svc := new(MockAuthService)
		h := NewAuthHandler(svc)
		c, _ := newAuthContext(t, `{"email":"not-an-email","name":"A"}`)

		err := h.Register(c)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("unknown email is unauthorized", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, "nobody@x.com", "pw").Return("", nil, errors.ErrInvalidCredentials)

		h := NewAuthHandler(svc)
		c, _ := newAuthContext(t, `{"email":"nobody@x.com","password":"pw"}`)

		err := h.Login(c)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("success returns token", func(t *testing.T) {
		user := &model.User{ID: uuid.New(), Email: "a@x.com", Name: "A"}
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, "a@x.com", "pw").Return("tok", user, nil)

		h := NewAuthHandler(svc)
		c, rec := newAuthContext(t, `{"email":"a@x.com","password":"pw"}`)

		assert.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	h := NewAuthHandler(new(MockAuthService))
	c, rec := newAuthContext(t, "")

	assert.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Successfully logged out", got["message"])
}
