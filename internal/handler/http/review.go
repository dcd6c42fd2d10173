package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/meridianshop/reviews-service/pkg/errors"
	"github.com/meridianshop/reviews-service/pkg/httputil"
	"github.com/meridianshop/reviews-service/pkg/middleware"
	"github.com/meridianshop/reviews-service/pkg/validator"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/internal/service"
)

// Dates in responses are calendar dates, no time component.
const dateLayout = "2006-01-02"

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON request body for submitting a review.
type SubmitReviewRequest struct {
	Grade   int    `json:"grade" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// --- Response DTOs ---

// ReviewResponse is the JSON representation of a review.
type ReviewResponse struct {
	ID          int64  `json:"id"`
	ProductID   string `json:"product_id"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name,omitempty"`
	Grade       int    `json:"grade"`
	Comment     string `json:"comment,omitempty"`
	SubmittedOn string `json:"submitted_on"`
	Status      string `json:"status"`
}

func toReviewResponse(rv *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:          rv.ID,
		ProductID:   rv.ProductID,
		AuthorID:    rv.AuthorID,
		Grade:       rv.Grade,
		Comment:     rv.Comment,
		SubmittedOn: rv.SubmittedOn.Format(dateLayout),
		Status:      string(rv.Status),
	}
}

func toReviewResponses(reviews []domain.Review) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, toReviewResponse(&reviews[i]))
	}
	return out
}

func toProductReviewResponses(reviews []domain.ReviewWithAuthor) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		resp := toReviewResponse(&reviews[i].Review)
		resp.AuthorName = reviews[i].AuthorName
		out = append(out, resp)
	}
	return out
}

// --- Handlers ---

// ListAllReviews handles GET /api/v1/reviews
func (h *ReviewHandler) ListAllReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListActive(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toReviewResponses(reviews)})
}

// ListProductReviews handles GET /api/v1/products/{slug}/reviews
func (h *ReviewHandler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	reviews, err := h.service.ListForProduct(r.Context(), slug, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toProductReviewResponses(reviews)})
}

// SubmitReview handles POST /api/v1/products/{slug}/reviews
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	authorID := middleware.UserIDFromContext(r.Context())

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.Submit(r.Context(), &service.SubmitReviewInput{
		Slug:     slug,
		AuthorID: authorID,
		Grade:    req.Grade,
		Comment:  req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: toReviewResponse(review)})
}

// RetractReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) RetractReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("review id must be an integer"), h.logger)
		return
	}

	review, err := h.service.Retract(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toReviewResponse(review)})
}
