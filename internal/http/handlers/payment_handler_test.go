package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/http/middleware"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/service"
)

const webhookSecret = "sk_test_secret"

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) Initialize(ctx context.Context, actorID uuid.UUID, in service.InitializePaymentInput) (*models.PaymentInit, error) {
	args := m.Called(ctx, actorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentInit), args.Error(1)
}

func (m *mockPaymentService) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentService) ReconcileWebhook(ctx context.Context, event service.WebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPaymentService) ListPayouts(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func webhookRouter(svc PaymentService) *gin.Engine {
	r := newRouter(uuid.Nil, "")
	r.POST("/payments/webhook", middleware.WebhookSignature(webhookSecret), NewPaymentHandler(svc).Webhook)
	return r
}

func postWebhook(r http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(middleware.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaymentHandler_Webhook_SignedEventIsApplied(t *testing.T) {
	svc := new(mockPaymentService)
	r := webhookRouter(svc)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1","status":"success"}}`)
	svc.On("ReconcileWebhook", mock.Anything, mock.MatchedBy(func(e service.WebhookEvent) bool {
		return e.Event == "charge.success" && e.Data.Reference == "ref_1"
	})).Return(nil)

	w := postWebhook(r, body, middleware.Sign([]byte(webhookSecret), body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Webhook_BadSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	cases := map[string]string{
		"missing":       "",
		"wrong key":     middleware.Sign([]byte("other"), body),
		"not hex":       "zzzz",
		"tampered body": middleware.Sign([]byte(webhookSecret), []byte(`{"event":"charge.success"}`)),
	}

	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(mockPaymentService)
			w := postWebhook(webhookRouter(svc), body, signature)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			svc.AssertNotCalled(t, "ReconcileWebhook", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentHandler_Initialize_Unauthorized(t *testing.T) {
	r := newRouter(uuid.Nil, "")
	r.POST("/payments/initialize", NewPaymentHandler(nil).Initialize)

	w := doJSON(r, http.MethodPost, "/payments/initialize", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_Initialize_InvalidErrandID(t *testing.T) {
	r := newRouter(uuid.New(), valueobject.RoleRequester)
	svc := new(mockPaymentService)
	r.POST("/payments/initialize", NewPaymentHandler(svc).Initialize)

	w := doJSON(r, http.MethodPost, "/payments/initialize", map[string]any{
		"errand_id": "not-a-uuid",
		"email":     "buyer@example.com",
		"amount":    500,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentHandler_Initialize(t *testing.T) {
	userID := uuid.New()
	errandID := uuid.New()
	r := newRouter(userID, valueobject.RoleRequester)
	svc := new(mockPaymentService)
	r.POST("/payments/initialize", NewPaymentHandler(svc).Initialize)

	svc.On("Initialize", mock.Anything, userID, service.InitializePaymentInput{
		ErrandID: errandID,
		Email:    "buyer@example.com",
		Amount:   500,
	}).Return(&models.PaymentInit{PaymentID: uuid.New(), AuthorizationURL: "https://checkout.example/abc", Reference: "ref_1"}, nil)

	w := doJSON(r, http.MethodPost, "/payments/initialize", map[string]any{
		"errand_id": errandID.String(),
		"email":     "buyer@example.com",
		"amount":    500,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"authorization_url":"https://checkout.example/abc"`)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Verify_GatewayUnavailable(t *testing.T) {
	r := newRouter(uuid.Nil, "")
	svc := new(mockPaymentService)
	r.POST("/payments/verify/:reference", NewPaymentHandler(svc).Verify)

	svc.On("Verify", mock.Anything, "ref_1").Return(nil, apperror.Unavailable(assert.AnError, "платёжный шлюз недоступен"))

	w := doJSON(r, http.MethodPost, "/payments/verify/ref_1", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, apperror.ErrCodeUnavailable, code)
}
