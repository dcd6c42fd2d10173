package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/meridianshop/reviews-service/pkg/errors"
	"github.com/meridianshop/reviews-service/pkg/health"
	"github.com/meridianshop/reviews-service/pkg/httputil"
	"github.com/meridianshop/reviews-service/pkg/middleware"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/internal/service"
)

// =============================================================================
// Mock repositories and publisher
// =============================================================================

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *domain.Review) (*domain.Review, float64, error) {
	args := m.Called(ctx, review)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*domain.Review), args.Get(1).(float64), args.Error(2)
}

func (m *mockReviewRepo) Retract(ctx context.Context, id int64) (*domain.Review, float64, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*domain.Review), args.Get(1).(float64), args.Error(2)
}

func (m *mockReviewRepo) ListActive(ctx context.Context) ([]domain.Review, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepo) ListActiveByProduct(ctx context.Context, productID string, limit int) ([]domain.ReviewWithAuthor, error) {
	args := m.Called(ctx, productID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReviewWithAuthor), args.Error(1)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) Upsert(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) Archive(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockPublisher) PublishReviewRetracted(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockPublisher) PublishRatingUpdated(ctx context.Context, productID string, rating float64) error {
	args := m.Called(ctx, productID, rating)
	return args.Error(0)
}

// =============================================================================
// Test helpers
// =============================================================================

const (
	customerToken = "customer-token"
	adminToken    = "admin-token"
)

func reviewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testValidator accepts the two fixed test tokens and rejects everything else.
func testValidator(token string) (*middleware.Claims, error) {
	switch token {
	case customerToken:
		return &middleware.Claims{UserID: "user-456", Name: "Dana K.", Role: "customer"}, nil
	case adminToken:
		return &middleware.Claims{UserID: "admin-1", Name: "Root", Role: "admin"}, nil
	default:
		return nil, fmt.Errorf("unknown token")
	}
}

type testEnv struct {
	reviews  *mockReviewRepo
	products *mockProductRepo
	events   *mockPublisher
	router   http.Handler
}

func newTestEnv() *testEnv {
	reviews := new(mockReviewRepo)
	products := new(mockProductRepo)
	events := new(mockPublisher)
	logger := reviewTestLogger()

	svc := service.NewReviewService(reviews, products, events, logger)

	router := NewRouter(RouterConfig{
		ReviewService:  svc,
		HealthHandler:  health.NewHandler(),
		TokenValidator: testValidator,
		ServiceName:    "reviews-service",
		Logger:         logger,
	})

	return &testEnv{reviews: reviews, products: products, events: events, router: router}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func activeProduct() *domain.Product {
	return &domain.Product{
		ID:     "prod-123",
		Name:   "Trail Backpack 30L",
		Slug:   "trail-backpack-30l",
		Status: domain.ProductStatusActive,
		Rating: 4.3,
	}
}

func activeReview() *domain.Review {
	return &domain.Review{
		ID:          42,
		ProductID:   "prod-123",
		AuthorID:    "user-456",
		Grade:       5,
		Comment:     "Love it.",
		SubmittedOn: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Status:      domain.ReviewStatusActive,
	}
}

// =============================================================================
// GET /api/v1/reviews
// =============================================================================

func TestListAllReviews_Success(t *testing.T) {
	env := newTestEnv()

	env.reviews.On("ListActive", mock.Anything).Return([]domain.Review{*activeReview()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, data, 1)

	first, ok := data[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), first["id"])
	assert.Equal(t, "2026-08-28", first["submitted_on"])
	assert.Equal(t, "active", first["status"])
}

func TestListAllReviews_EmptyIsArrayNotNull(t *testing.T) {
	env := newTestEnv()

	env.reviews.On("ListActive", mock.Anything).Return([]domain.Review{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

// =============================================================================
// GET /api/v1/products/{slug}/reviews
// =============================================================================

func TestListProductReviews_DefaultLimit(t *testing.T) {
	env := newTestEnv()

	env.products.On("GetBySlug", mock.Anything, "trail-backpack-30l").Return(activeProduct(), nil)
	env.reviews.On("ListActiveByProduct", mock.Anything, "prod-123", service.DefaultReviewLimit).
		Return([]domain.ReviewWithAuthor{
			{Review: *activeReview(), AuthorName: "Dana K."},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/trail-backpack-30l/reviews", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, data, 1)

	first := data[0].(map[string]any)
	assert.Equal(t, "Dana K.", first["author_name"])

	env.reviews.AssertExpectations(t)
}

func TestListProductReviews_ExplicitLimit(t *testing.T) {
	env := newTestEnv()

	env.products.On("GetBySlug", mock.Anything, "trail-backpack-30l").Return(activeProduct(), nil)
	env.reviews.On("ListActiveByProduct", mock.Anything, "prod-123", 3).
		Return([]domain.ReviewWithAuthor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/trail-backpack-30l/reviews?limit=3", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env.reviews.AssertExpectations(t)
}

func TestListProductReviews_UnknownSlug(t *testing.T) {
	env := newTestEnv()

	env.products.On("GetBySlug", mock.Anything, "no-such-slug").
		Return(nil, apperrors.NotFound("product", "no-such-slug"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/no-such-slug/reviews", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

// =============================================================================
// POST /api/v1/products/{slug}/reviews
// =============================================================================

func submitRequest(t *testing.T, body any, token string) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/trail-backpack-30l/reviews", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestSubmitReview_Success(t *testing.T) {
	env := newTestEnv()

	created := activeReview()

	env.products.On("GetBySlug", mock.Anything, "trail-backpack-30l").Return(activeProduct(), nil)
	env.reviews.On("Create", mock.Anything, mock.MatchedBy(func(rv *domain.Review) bool {
		return rv.ProductID == "prod-123" && rv.AuthorID == "user-456" && rv.Grade == 5
	})).Return(created, 4.5, nil)
	env.events.On("PublishReviewCreated", mock.Anything, created).Return(nil)
	env.events.On("PublishRatingUpdated", mock.Anything, "prod-123", 4.5).Return(nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 5, Comment: "Love it."}, customerToken))

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(42), data["id"])
	assert.Equal(t, "user-456", data["author_id"])

	env.reviews.AssertExpectations(t)
	env.events.AssertExpectations(t)
}

func TestSubmitReview_NoToken(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 5}, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitReview_InvalidToken(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 5}, "bogus"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitReview_AdminForbidden(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 5}, adminToken))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitReview_GradeOutOfRange(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 6}, customerToken))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "Grade")
}

func TestSubmitReview_InvalidJSON(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/trail-backpack-30l/reviews",
		bytes.NewReader([]byte(`{invalid`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestSubmitReview_ProductMissing(t *testing.T) {
	env := newTestEnv()

	env.products.On("GetBySlug", mock.Anything, "trail-backpack-30l").
		Return(nil, apperrors.NotFound("product", "trail-backpack-30l"))

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 4}, customerToken))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitReview_ArchivedProduct(t *testing.T) {
	env := newTestEnv()

	archived := activeProduct()
	archived.Status = domain.ProductStatusArchived

	env.products.On("GetBySlug", mock.Anything, "trail-backpack-30l").Return(archived, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, submitRequest(t, SubmitReviewRequest{Grade: 4}, customerToken))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =============================================================================
// DELETE /api/v1/reviews/{id}
// =============================================================================

func deleteRequest(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRetractReview_Success(t *testing.T) {
	env := newTestEnv()

	retracted := activeReview()
	retracted.Status = domain.ReviewStatusRetracted

	env.reviews.On("Retract", mock.Anything, int64(42)).Return(retracted, 3.5, nil)
	env.events.On("PublishReviewRetracted", mock.Anything, retracted).Return(nil)
	env.events.On("PublishRatingUpdated", mock.Anything, "prod-123", 3.5).Return(nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, deleteRequest("/api/v1/reviews/42", adminToken))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "retracted", data["status"])

	env.reviews.AssertExpectations(t)
}

func TestRetractReview_NotFound(t *testing.T) {
	env := newTestEnv()

	env.reviews.On("Retract", mock.Anything, int64(404)).
		Return(nil, 0.0, apperrors.NotFound("review", "404"))

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, deleteRequest("/api/v1/reviews/404", adminToken))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetractReview_CustomerForbidden(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, deleteRequest("/api/v1/reviews/42", customerToken))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env.reviews.AssertNotCalled(t, "Retract", mock.Anything, mock.Anything)
}

func TestRetractReview_NoToken(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, deleteRequest("/api/v1/reviews/42", ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRetractReview_NonNumericID(t *testing.T) {
	env := newTestEnv()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, deleteRequest("/api/v1/reviews/abc", adminToken))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

// =============================================================================
// CORS configuration
// =============================================================================

func newCORSTestRouter(origins []string, environment string) (http.Handler, *mockReviewRepo) {
	reviews := new(mockReviewRepo)
	products := new(mockProductRepo)
	events := new(mockPublisher)
	logger := reviewTestLogger()

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = origins
	cors.Environment = environment

	router := NewRouter(RouterConfig{
		ReviewService:  service.NewReviewService(reviews, products, events, logger),
		HealthHandler:  health.NewHandler(),
		TokenValidator: testValidator,
		ServiceName:    "reviews-service",
		CORS:           cors,
		Logger:         logger,
	})

	return router, reviews
}

func TestRouter_CORSAllowsConfiguredOrigin(t *testing.T) {
	router, reviews := newCORSTestRouter([]string{"https://shop.example.com"}, "production")
	reviews.On("ListActive", mock.Anything).Return([]domain.Review{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSRejectsUnknownOrigin(t *testing.T) {
	router, reviews := newCORSTestRouter([]string{"https://shop.example.com"}, "production")
	reviews.On("ListActive", mock.Anything).Return([]domain.Review{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
