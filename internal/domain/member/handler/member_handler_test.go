package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fitclub/internal/domain/member/model"
	"fitclub/internal/domain/member/repository"
	"fitclub/internal/domain/member/service"
	"fitclub/internal/pkg/middleware"
	"fitclub/internal/pkg/telegram"
	"fitclub/pkg/response"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMemberService is a mock of MemberService
type MockMemberService struct {
	mock.Mock
}

func (m *MockMemberService) LoginWithTelegram(ctx context.Context, fields map[string]string) (*service.LoginResult, error) {
	args := m.Called(ctx, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *MockMemberService) GetMember(ctx context.Context, id string) (*model.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Member), args.Error(1)
}

func (m *MockMemberService) GetMembers(ctx context.Context, page, limit int) ([]model.Member, int64, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.Member), args.Get(1).(int64), args.Error(2)
}

func (m *MockMemberService) UpdateRole(ctx context.Context, id string, role int) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *MemberHandler, userID string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextRole, model.RoleAdmin)
	})
	r.POST("/auth/telegram", h.LoginWithTelegram)
	r.GET("/members/me", h.GetMe)
	r.GET("/members", h.GetMembers)
	r.PUT("/members/:id/role", h.UpdateRole)
	return r
}

func perform(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestLoginWithTelegram(t *testing.T) {
	t.Run("Accepts raw initData", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("LoginWithTelegram", mock.Anything, map[string]string{"auth_date": "1", "hash": "abc"}).
			Return(&service.LoginResult{Token: "jwt"}, nil)

		w, resp := perform(newRouter(NewMemberHandler(svc), ""), http.MethodPost, "/auth/telegram", `{"initData":"auth_date=1&hash=abc"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, response.CodeSuccess, resp.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Accepts login widget payload", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("LoginWithTelegram", mock.Anything, map[string]string{"id": "42", "first_name": "Ann", "hash": "abc"}).
			Return(&service.LoginResult{Token: "jwt"}, nil)

		w, _ := perform(newRouter(NewMemberHandler(svc), ""), http.MethodPost, "/auth/telegram", `{"payload":{"id":42,"first_name":"Ann","hash":"abc"}}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Missing data", func(t *testing.T) {
		svc := new(MockMemberService)

		w, resp := perform(newRouter(NewMemberHandler(svc), ""), http.MethodPost, "/auth/telegram", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrInvalidParam, resp.Code)
	})

	t.Run("Bad signature", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("LoginWithTelegram", mock.Anything, mock.Anything).Return(nil, telegram.ErrInvalidSignature)

		w, resp := perform(newRouter(NewMemberHandler(svc), ""), http.MethodPost, "/auth/telegram", `{"initData":"hash=bad"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, response.ErrAuthFailed, resp.Code)
	})

	t.Run("Banned member", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("LoginWithTelegram", mock.Anything, mock.Anything).Return(nil, service.ErrMemberBanned)

		w, _ := perform(newRouter(NewMemberHandler(svc), ""), http.MethodPost, "/auth/telegram", `{"initData":"hash=x"}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGetMe(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		svc := new(MockMemberService)
		m := &model.Member{FirstName: "Ann"}
		m.ID = "u1"
		svc.On("GetMember", mock.Anything, "u1").Return(m, nil)

		w, resp := perform(newRouter(NewMemberHandler(svc), "u1"), http.MethodGet, "/members/me", "")

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "u1", data["id"])
	})

	t.Run("Not found", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("GetMember", mock.Anything, "ghost").Return(nil, repository.ErrMemberNotFound)

		w, resp := perform(newRouter(NewMemberHandler(svc), "ghost"), http.MethodGet, "/members/me", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrMemberNotFound, resp.Code)
	})
}

func TestGetMembersClampsPagination(t *testing.T) {
	svc := new(MockMemberService)
	svc.On("GetMembers", mock.Anything, 1, 100).Return([]model.Member{}, int64(0), nil)

	w, _ := perform(newRouter(NewMemberHandler(svc), "admin"), http.MethodGet, "/members?page=0&limit=500", "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateRole(t *testing.T) {
	t.Run("Out of range role rejected by binding", func(t *testing.T) {
		svc := new(MockMemberService)

		w, _ := perform(newRouter(NewMemberHandler(svc), "admin"), http.MethodPut, "/members/u1/role", `{"role":9}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdateRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unknown member", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("UpdateRole", mock.Anything, "u1", 2).Return(repository.ErrMemberNotFound)

		w, _ := perform(newRouter(NewMemberHandler(svc), "admin"), http.MethodPut, "/members/u1/role", `{"role":2}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Internal error", func(t *testing.T) {
		svc := new(MockMemberService)
		svc.On("UpdateRole", mock.Anything, "u1", 2).Return(errors.New("db down"))

		w, _ := perform(newRouter(NewMemberHandler(svc), "admin"), http.MethodPut, "/members/u1/role", `{"role":2}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
