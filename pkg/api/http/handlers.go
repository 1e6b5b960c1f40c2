package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
)

// SubmitRequest represents a provisioning submission body
type SubmitRequest struct {
	VPC     domain.VPCSpec     `json:"vpc"`
	Subnets []domain.SubnetSpec `json:"subnets"`
}

// SubmitResponse represents a provisioning submission response. Both fresh
// acceptance and idempotent replay return it with HTTP 202.
type SubmitResponse struct {
	RequestID    string         `json:"request_id"`
	Status       string         `json:"status"`
	Result       *domain.Result `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// ListResponse represents one page of request records
type ListResponse struct {
	Items     []*domain.Request `json:"items"`
	NextToken string            `json:"next_token,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// handleSubmitRequest handles a provisioning submission.
//
// A replay of an earlier submission with the same (identity, token) is
// always answered 202 regardless of the underlying request's current state:
// the original accepted-or-processing semantics are preserved for replays,
// and callers learn the true state by polling.
func (s *Server) handleSubmitRequest(c *gin.Context) {
	token := c.GetHeader(idempotencyHeader)
	if token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "MISSING_IDEMPOTENCY_KEY",
				Message: "Missing " + idempotencyHeader + " header",
			},
		})
		return
	}

	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_BODY",
				Message: err.Error(),
			},
		})
		return
	}

	spec := &domain.ProvisionSpec{VPC: body.VPC, Subnets: body.Subnets}

	outcome, err := s.intake.Submit(c.Request.Context(), callerIdentity(c), token, spec)
	if err != nil {
		s.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{
		RequestID:    outcome.RequestID,
		Status:       string(outcome.Status),
		Result:       outcome.Result,
		ErrorMessage: outcome.ErrorMessage,
	})
}

// writeSubmitError maps submission errors onto HTTP responses.
func (s *Server) writeSubmitError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "VALIDATION_FAILED",
				Message: ve.Message,
			},
		})
		return
	}

	if errors.Is(err, domain.ErrLockUnreadable) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "LOCK_INCONSISTENT",
				Message: err.Error(),
			},
		})
		return
	}

	s.logger.Error("failed to submit request", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{
			Code:    "SUBMISSION_FAILED",
			Message: "Failed to accept request",
		},
	})
}

// handleListRequests handles listing request records. The next_token value
// is passed through to the store unmodified.
func (s *Server) handleListRequests(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_LIMIT",
					Message: "limit must be an integer",
				},
			})
			return
		}
		limit = parsed
	}
	// Clamp to [1, maxListLimit].
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	page, err := s.intake.ListRequests(c.Request.Context(), c.Query("next_token"), limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_NEXT_TOKEN",
					Message: err.Error(),
				},
			})
			return
		}

		s.logger.Error("failed to list requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "LIST_FAILED",
				Message: "Failed to list requests",
			},
		})
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Items:     page.Items,
		NextToken: page.NextToken,
	})
}

// handleGetRequest handles getting one request record
func (s *Server) handleGetRequest(c *gin.Context) {
	requestID := c.Param("id")

	req, err := s.intake.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Request not found",
				},
			})
			return
		}

		s.logger.Error("failed to get request",
			zap.String("request_id", requestID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "GET_FAILED",
				Message: "Failed to get request",
			},
		})
		return
	}

	c.JSON(http.StatusOK, req)
}
