package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, itemID string) ([]Comment, error) {
	args := m.Called(itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Comment), args.Error(1)
}

func (m *MockService) Create(ctx context.Context, in CreateInput) (*Comment, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Comment), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, commentID, userID string) error {
	return m.Called(commentID, userID).Error(0)
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(svc, discardLogger())
}

func TestHandler_List(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := new(MockService)
	svc.On("List", "img-1").Return([]Comment{{ID: "c1", ItemID: "img-1", UserID: "user_a", UserName: "Alex", Text: "hi", CreatedAt: ts}}, nil)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/comments?itemId=img-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[{"id":"c1","item_id":"img-1","user_id":"user_a","user_name":"Alex","text":"hi","created_at":"2026-03-01T12:00:00Z"}]}`, w.Body.String())
}

func TestHandler_Create(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", CreateInput{ItemID: "img-1", UserID: "user_a", DisplayName: "Alex", Text: "nice"}).
		Return(&Comment{ID: "c9", ItemID: "img-1", UserID: "user_a", UserName: "Alex", Text: "nice"}, nil)
	r := newTestRouter(svc)

	body, _ := json.Marshal(CreateCommentRequest{ItemID: "img-1", UserID: "user_a", DisplayName: "Alex", Text: "nice"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "c9", resp.Data[0].ID)
}

func TestHandler_CreateBlankText(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything).Return(nil, ErrInvalidInput)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString(`{"itemId":"img-1","userId":"u","text":"   "}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", bytes.NewBufferString(`{"itemId":"img-1","userId":"u","text":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Delete(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"missing", ErrCommentNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Delete", "c1", "user_a").Return(tc.err)
			r := newTestRouter(svc)

			req := httptest.NewRequest(http.MethodDelete, "/comments/c1", bytes.NewBufferString(`{"userId":"user_a"}`))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestHandler_DeleteWithGatewayIdentityAndNoBody(t *testing.T) {
	svc := new(MockService)
	svc.On("Delete", "c1", "user_gw").Return(nil)
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/comments/c1", nil)
	req.Header.Set("X-User-ID", "user_gw")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_DeleteAnonymous(t *testing.T) {
	r := newTestRouter(new(MockService))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/comments/c1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
