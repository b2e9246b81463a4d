package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/http/middleware"
	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Silence()
	os.Exit(m.Run())
}

// newRouter собирает gin с обработчиком ошибок. Ненулевой userID кладётся в контекст,
// как это делает AuthMiddleware.
func newRouter(userID uuid.UUID, role valueobject.UserRole) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if userID != uuid.Nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Set(middleware.ContextRoleKey, role)
			c.Next()
		})
	}
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, apperror.ErrorCode) {
	t.Helper()
	var body struct {
		Error string             `json:"error"`
		Code  apperror.ErrorCode `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error, body.Code
}

type mockErrandService struct {
	mock.Mock
}

func (m *mockErrandService) Create(ctx context.Context, requesterID uuid.UUID, in service.CreateErrandInput) (*models.Errand, error) {
	args := m.Called(ctx, requesterID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Errand), args.Error(1)
}

func (m *mockErrandService) Get(ctx context.Context, id uuid.UUID) (*models.Errand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Errand), args.Error(1)
}

func (m *mockErrandService) FindVisible(ctx context.Context, filter models.ErrandFilter, page, limit int) (*models.ErrandPage, error) {
	args := m.Called(ctx, filter, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ErrandPage), args.Error(1)
}

func (m *mockErrandService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Errand, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Errand), args.Error(1)
}

func (m *mockErrandService) Accept(ctx context.Context, id, actorID uuid.UUID, actorRole valueobject.UserRole) (*models.Errand, error) {
	args := m.Called(ctx, id, actorID, actorRole)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Errand), args.Error(1)
}

func (m *mockErrandService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus valueobject.ErrandStatus, actorID uuid.UUID) (*models.Errand, error) {
	args := m.Called(ctx, id, newStatus, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Errand), args.Error(1)
}

func (m *mockErrandService) Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.Errand, error) {
	args := m.Called(ctx, id, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Errand), args.Error(1)
}

func TestErrandHandler_Create_Unauthorized(t *testing.T) {
	r := newRouter(uuid.Nil, "")
	h := NewErrandHandler(nil)
	r.POST("/errands", h.Create)

	w := doJSON(r, http.MethodPost, "/errands", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, apperror.ErrCodeUnauthorized, code)
}

func TestErrandHandler_Create_MissingFields(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleRequester)
	svc := new(mockErrandService)
	r.POST("/errands", NewErrandHandler(svc).Create)

	w := doJSON(r, http.MethodPost, "/errands", map[string]any{"title": "Купить хлеб"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestErrandHandler_Create_PassesInputToService(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleRequester)
	svc := new(mockErrandService)
	r.POST("/errands", NewErrandHandler(svc).Create)

	created := &models.Errand{ID: uuid.New(), RequesterID: userID, Status: valueobject.ErrandStatusOpen}
	svc.On("Create", mock.Anything, userID, mock.MatchedBy(func(in service.CreateErrandInput) bool {
		return in.Title == "Купить хлеб" &&
			in.Category == valueobject.ErrandCategory("delivery") &&
			len(in.Locations) == 1 &&
			in.Locations[0].Type == valueobject.LocationType("pickup")
	})).Return(created, nil)

	w := doJSON(r, http.MethodPost, "/errands", map[string]any{
		"title":       "Купить хлеб",
		"description": "Бородинский, две буханки",
		"category":    "delivery",
		"price":       500,
		"locations": []map[string]any{
			{"type": "pickup", "label": "Пекарня на углу"},
		},
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var got models.Errand
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	svc.AssertExpectations(t)
}

func TestErrandHandler_List_BuildsFilter(t *testing.T) {
	r := newRouter(uuid.New(), valueobject.RoleRunner)
	svc := new(mockErrandService)
	r.GET("/errands", NewErrandHandler(svc).List)

	svc.On("FindVisible", mock.Anything, mock.MatchedBy(func(f models.ErrandFilter) bool {
		return f.Category != nil && *f.Category == "delivery" &&
			f.MinPrice != nil && *f.MinPrice == 100 &&
			f.SortBy == models.SortPriceLow &&
			f.Status == nil
	}), 2, 5).Return(&models.ErrandPage{Items: []models.Errand{}, Total: 7, Page: 2, Limit: 5}, nil)

	w := doJSON(r, http.MethodGet, "/errands?category=delivery&minPrice=100&sortBy=price_low&page=2&limit=5", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 7, body["total"])
	assert.EqualValues(t, 2, body["pages"])
	svc.AssertExpectations(t)
}

func TestErrandHandler_List_RejectsBadFilter(t *testing.T) {
	cases := map[string]string{
		"unknown category": "/errands?category=spaceships",
		"unknown status":   "/errands?status=lost",
		"unknown urgency":  "/errands?urgency=yesterday",
		"negative price":   "/errands?minPrice=-5",
		"non-numeric":      "/errands?maxPrice=abc",
	}

	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			r := newRouter(uuid.New(), valueobject.RoleRunner)
			svc := new(mockErrandService)
			r.GET("/errands", NewErrandHandler(svc).List)

			w := doJSON(r, http.MethodGet, path, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "FindVisible", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestErrandHandler_Get_InvalidID(t *testing.T) {
	r := newRouter(uuid.New(), valueobject.RoleBoth)
	r.GET("/errands/:id", NewErrandHandler(nil).Get)

	w := doJSON(r, http.MethodGet, "/errands/invalid-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrandHandler_Get_NotFound(t *testing.T) {
	r := newRouter(uuid.New(), valueobject.RoleBoth)
	svc := new(mockErrandService)
	r.GET("/errands/:id", NewErrandHandler(svc).Get)

	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, apperror.ErrErrandNotFound)

	w := doJSON(r, http.MethodGet, "/errands/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	msg, code := decodeError(t, w)
	assert.Equal(t, apperror.ErrCodeNotFound, code)
	assert.Equal(t, "задание не найдено", msg)
}

func TestErrandHandler_Accept_PassesRole(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleRunner)
	svc := new(mockErrandService)
	r.PATCH("/errands/:id/accept", NewErrandHandler(svc).Accept)

	id := uuid.New()
	svc.On("Accept", mock.Anything, id, userID, valueobject.RoleRunner).
		Return(nil, apperror.Conflict("задание уже принято"))

	w := doJSON(r, http.MethodPatch, "/errands/"+id.String()+"/accept", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	svc.AssertExpectations(t)
}

func TestErrandHandler_UpdateStatus(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleRunner)
	svc := new(mockErrandService)
	r.PATCH("/errands/:id/status", NewErrandHandler(svc).UpdateStatus)

	id := uuid.New()
	svc.On("UpdateStatus", mock.Anything, id, valueobject.ErrandStatusInProgress, userID).
		Return(&models.Errand{ID: id, Status: valueobject.ErrandStatusInProgress}, nil)

	w := doJSON(r, http.MethodPatch, "/errands/"+id.String()+"/status", map[string]string{"status": "in_progress"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"in_progress"`)
	svc.AssertExpectations(t)
}

func TestErrandHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleRunner)
	svc := new(mockErrandService)
	r.PATCH("/errands/:id/status", NewErrandHandler(svc).UpdateStatus)

	id := uuid.New()
	svc.On("UpdateStatus", mock.Anything, id, valueobject.ErrandStatusCompleted, userID).
		Return(nil, apperror.InvalidState("переход статуса недопустим"))

	w := doJSON(r, http.MethodPatch, "/errands/"+id.String()+"/status", map[string]string{"status": "completed"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, apperror.ErrCodeInvalidState, code)
}

func TestErrandHandler_Cancel_Forbidden(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleRunner)
	svc := new(mockErrandService)
	r.DELETE("/errands/:id", NewErrandHandler(svc).Cancel)

	id := uuid.New()
	svc.On("Cancel", mock.Anything, id, userID).Return(nil, apperror.Forbidden("отменить может только заказчик"))

	w := doJSON(r, http.MethodDelete, "/errands/"+id.String(), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestErrandHandler_ListMine(t *testing.T) {
	userID := uuid.New()
	r := newRouter(userID, valueobject.RoleBoth)
	svc := new(mockErrandService)
	r.GET("/errands/my", NewErrandHandler(svc).ListMine)

	svc.On("ListMine", mock.Anything, userID).Return([]models.Errand{{ID: uuid.New()}, {ID: uuid.New()}}, nil)

	w := doJSON(r, http.MethodGet, "/errands/my", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []models.Errand `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
}

func TestErrandHandler_InternalErrorIsMasked(t *testing.T) {
	r := newRouter(uuid.New(), valueobject.RoleBoth)
	svc := new(mockErrandService)
	r.GET("/errands/:id", NewErrandHandler(svc).Get)

	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, assert.AnError)

	w := doJSON(r, http.MethodGet, "/errands/"+id.String(), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	msg, code := decodeError(t, w)
	assert.Equal(t, apperror.ErrCodeInternal, code)
	assert.NotContains(t, msg, assert.AnError.Error())
}
