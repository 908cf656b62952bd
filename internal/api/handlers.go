package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/service"
)

const (
	defaultListLimit    = 100
	maxListLimit        = 1000
	defaultHistoryLimit = 50
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// CriteriaResponse is the criteria catalog with the combining rules.
type CriteriaResponse struct {
	Criteria []domain.Criterion         `json:"criteria"`
	Rules    []service.RuleDescription `json:"rules"`
}

// MergeRequest carries source-attributed judgments.
type MergeRequest struct {
	Judgments []domain.Judgment `json:"judgments" binding:"required"`
}

// ListResponse is one page of stored ratings.
type ListResponse struct {
	Ratings []*domain.StoredRating `json:"ratings"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// RatingResponse is a stored record with its evaluation.
type RatingResponse struct {
	Variant    string               `json:"variant"`
	Record     *domain.RatingRecord `json:"record"`
	Evaluation *service.Evaluation  `json:"evaluation"`
}

func (s *Server) handleListCriteria(c *gin.Context) {
	c.JSON(http.StatusOK, CriteriaResponse{
		Criteria: domain.AllCriteria(),
		Rules:    service.CombiningRules(),
	})
}

func (s *Server) handleClassify(c *gin.Context) {
	var record domain.RatingRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		s.badRequest(c, err)
		return
	}

	eval, err := s.service.ClassifyRecord(&record)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (s *Server) handleMerge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	eval, err := s.service.MergeJudgments(req.Judgments)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (s *Server) handleListRatings(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		s.badRequest(c, domain.NewValidationError("limit", "must be between 1 and 1000", c.Query("limit")))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.badRequest(c, domain.NewValidationError("offset", "must be non-negative", c.Query("offset")))
		return
	}

	ratings, total, err := s.service.ListRatings(c.Request.Context(), domain.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Ratings: ratings, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetRating(c *gin.Context) {
	ctx := c.Request.Context()
	variant := c.Param("variant")

	record, err := s.service.GetRating(ctx, variant)
	if err != nil {
		s.writeError(c, err)
		return
	}
	eval, err := s.service.ClassifyRecord(record)
	if err != nil {
		s.writeError(c, err)
		return
	}
	key, _ := domain.CanonicalVariant(variant)
	eval.Variant = key

	c.JSON(http.StatusOK, RatingResponse{Variant: key, Record: record, Evaluation: eval})
}

func (s *Server) handleCreateRating(c *gin.Context) {
	s.writeRating(c, http.StatusCreated, s.service.CreateRating)
}

func (s *Server) handlePutRating(c *gin.Context) {
	s.writeRating(c, http.StatusOK, s.service.PutRating)
}

func (s *Server) writeRating(
	c *gin.Context,
	status int,
	op func(context.Context, string, *domain.RatingRecord) (*service.Evaluation, error),
) {
	var record domain.RatingRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		s.badRequest(c, err)
		return
	}

	eval, err := op(c.Request.Context(), c.Param("variant"), &record)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(status, eval)
}

func (s *Server) handleDeleteRating(c *gin.Context) {
	if err := s.service.DeleteRating(c.Request.Context(), c.Param("variant")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetVerdict(c *gin.Context) {
	eval, err := s.service.EvaluateRating(c.Request.Context(), c.Param("variant"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval.Verdict)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 {
		s.badRequest(c, domain.NewValidationError("limit", "must be positive", c.Query("limit")))
		return
	}

	records, err := s.service.History(c.Request.Context(), c.Param("variant"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:         err.Error(),
		Code:          "INVALID_REQUEST",
		CorrelationID: c.GetString("correlation_id"),
	})
}

// writeError maps service errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", c.GetString("correlation_id")).Error("Request failed")
	}
	c.JSON(status, ErrorResponse{
		Error:         err.Error(),
		Code:          code,
		CorrelationID: c.GetString("correlation_id"),
	})
}

func statusFor(err error) (int, string) {
	var (
		persistence *domain.PersistenceError
		annotation  *domain.AnnotationError
	)
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.As(err, &annotation):
		return http.StatusBadGateway, "ANNOTATION_FAILED"
	case errors.As(err, &persistence):
		return http.StatusBadGateway, "PERSISTENCE_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
