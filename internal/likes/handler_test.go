package likes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Status(ctx context.Context, itemID, userID string) (Status, error) {
	args := m.Called(itemID, userID)
	return args.Get(0).(Status), args.Error(1)
}

func (m *MockService) Toggle(ctx context.Context, in ToggleInput) (Status, error) {
	args := m.Called(in)
	return args.Get(0).(Status), args.Error(1)
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(svc, discardLogger())
}

func TestHandler_Status(t *testing.T) {
	svc := new(MockService)
	svc.On("Status", "img-1", "user_a").Return(Status{Count: 12, Liked: true}, nil)
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/likes/status?itemId=img-1&userId=user_a", nil)
	req.Header.Set("X-User-ID", "user_a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"isLiked":true,"likesCount":12}`, w.Body.String())
}

func TestHandler_StatusAnonymousIgnoresQueryUser(t *testing.T) {
	svc := new(MockService)
	svc.On("Status", "img-1", "").Return(Status{Count: 12}, nil)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/likes/status?itemId=img-1&userId=user_b", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"isLiked":false,"likesCount":12}`, w.Body.String())
	svc.AssertNotCalled(t, "Status", "img-1", "user_b")
}

func TestHandler_StatusIdentityMismatch(t *testing.T) {
	svc := new(MockService)
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/likes/status?itemId=img-1&userId=user_b", nil)
	req.Header.Set("X-User-ID", "user_a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
}

func TestHandler_StatusMissingItem(t *testing.T) {
	r := newTestRouter(new(MockService))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/likes/status", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Toggle(t *testing.T) {
	svc := new(MockService)
	svc.On("Toggle", ToggleInput{ItemID: "img-1", UserID: "user_a", DisplayName: "Alex", CurrentlyLiked: false}).
		Return(Status{Count: 3, Liked: true}, nil)
	r := newTestRouter(svc)

	body, _ := json.Marshal(ToggleRequest{ItemID: "img-1", UserID: "user_a", IsLiked: false, DisplayName: "Alex"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/likes", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"isLiked":true,"likesCount":3}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestHandler_ToggleUsesGatewayIdentity(t *testing.T) {
	svc := new(MockService)
	svc.On("Toggle", ToggleInput{ItemID: "img-1", UserID: "user_gw", DisplayName: "Gate", CurrentlyLiked: true}).
		Return(Status{Count: 0, Liked: false}, nil)
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/likes", bytes.NewBufferString(`{"itemId":"img-1","isLiked":true}`))
	req.Header.Set("X-User-ID", "user_gw")
	req.Header.Set("X-User-Name", "Gate")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_ToggleIdentityMismatch(t *testing.T) {
	svc := new(MockService)
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/likes", bytes.NewBufferString(`{"itemId":"img-1","userId":"someone_else"}`))
	req.Header.Set("X-User-ID", "user_gw")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Toggle", mock.Anything)
}

func TestHandler_ToggleErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing item", `{"userId":"user_a"}`, nil, http.StatusBadRequest},
		{"anonymous", `{"itemId":"img-1"}`, nil, http.StatusUnauthorized},
		{"store failure", `{"itemId":"img-1","userId":"user_a"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockService)
			if tc.err != nil {
				svc.On("Toggle", mock.Anything).Return(Status{}, tc.err)
			}
			r := newTestRouter(svc)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/likes", bytes.NewBufferString(tc.body)))
			assert.Equal(t, tc.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandler_Health(t *testing.T) {
	r := newTestRouter(new(MockService))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "likes-service")
}
