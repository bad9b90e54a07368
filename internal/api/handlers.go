package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/domain"
	"github.com/priorauth-engine/internal/service"
)

// handleHealth reports engine and dependency health.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	components := gin.H{}

	count, err := s.store.Count(c.Request.Context())
	if err != nil {
		status = "degraded"
		components["formulary"] = false
	} else {
		components["formulary"] = true
		components["coverage_records"] = count
	}

	if s.health != nil {
		for name, ok := range s.health.HealthCheck(c.Request.Context()) {
			components[name] = ok
			if !ok {
				status = "degraded"
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

// handleAssessment runs a prior-authorization assessment for one request.
func (s *Server) handleAssessment(c *gin.Context) {
	var params service.AssessmentParams
	if err := c.ShouldBindJSON(&params); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err)
		return
	}

	result, err := s.assessor.Assess(c.Request.Context(), &params)
	if err != nil {
		s.writeAssessmentError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGetCoverage returns the coverage record for a (plan, drug) pair.
func (s *Server) handleGetCoverage(c *gin.Context) {
	plan := c.Param("plan")
	drug := c.Param("drug")

	record, err := s.store.ResolveCoverage(c.Request.Context(), plan, drug)
	if err != nil {
		if errors.Is(err, domain.ErrCoverageNotFound) {
			s.writeError(c, http.StatusNotFound, domain.ErrCodeCoverageNotFound, "no coverage configured for plan and drug", err)
			return
		}
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStoreError, "failed to load coverage record", err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleListCoverage returns a plan's coverage records within a therapeutic
// category, in formulary preference order.
func (s *Server) handleListCoverage(c *gin.Context) {
	plan := c.Param("plan")
	category := c.Query("category")
	if category == "" {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "category query parameter is required", nil)
		return
	}

	records, err := s.store.CandidatesByCategory(c.Request.Context(), plan, category)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStoreError, "failed to list coverage records", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insurancePlan": plan,
		"category":      category,
		"records":       records,
	})
}

// handleListPlans returns the insurance plans with coverage configuration.
func (s *Server) handleListPlans(c *gin.Context) {
	plans, err := s.store.ListPlans(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeStoreError, "failed to list plans", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// writeAssessmentError maps assessment failures to HTTP statuses.
func (s *Server) writeAssessmentError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, vErr.Error(), nil)
	case errors.Is(err, domain.ErrCoverageNotFound):
		s.writeError(c, http.StatusNotFound, domain.ErrCodeCoverageNotFound, "no coverage configured for plan and drug", err)
	case errors.Is(err, domain.ErrMalformedCriterion), errors.Is(err, domain.ErrUnsupportedCriterion):
		s.writeError(c, http.StatusUnprocessableEntity, domain.ErrCodeMalformedConfig, "coverage configuration is invalid", err)
	default:
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeEvaluation, "assessment failed", err)
	}
}

func (s *Server) writeError(c *gin.Context, status int, code, message string, err error) {
	requestID := c.GetString("correlation_id")

	details := ""
	if err != nil {
		details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": requestID,
			"path":           c.Request.URL.Path,
		}).Error("Request failed")
	}

	c.JSON(status, domain.NewEngineError(code, message, details, requestID))
}
