package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priorauth-engine/internal/domain"
	"github.com/priorauth-engine/internal/formulary"
	"github.com/priorauth-engine/internal/service"
)

type stubConfigManager struct {
	cfg *domain.Config
}

func (s *stubConfigManager) GetConfig() *domain.Config                       { return s.cfg }
func (s *stubConfigManager) GetServerConfig() *domain.ServerConfig           { return &s.cfg.Server }
func (s *stubConfigManager) GetExternalAPIConfig() *domain.ExternalAPIConfig { return &s.cfg.ExternalAPI }
func (s *stubConfigManager) GetEngineConfig() *domain.EngineConfig           { return &s.cfg.Engine }
func (s *stubConfigManager) Reload() error                                   { return nil }
func (s *stubConfigManager) Validate() error                                 { return nil }
func (s *stubConfigManager) GetRedisConnectionString() string                { return "" }
func (s *stubConfigManager) IsProduction() bool                              { return false }
func (s *stubConfigManager) IsDevelopment() bool                             { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing

	cfg := &domain.Config{
		Server: domain.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logging: domain.LoggingConfig{Level: "info"},
		Engine: domain.EngineConfig{
			AlternativeTrigger:       70,
			AlternativeTriggerLegacy: 50,
			MaxAlternatives:          3,
			MetadataTimeout:          4 * time.Second,
			MaxConcurrentCandidates:  4,
		},
	}

	store, err := formulary.NewMemoryStoreWithRecords(formulary.ReferenceRecords())
	require.NoError(t, err)
	assessor := service.NewAssessmentService(logger, store, nil, &cfg.Engine)

	return NewServer(&stubConfigManager{cfg: cfg}, logger, assessor, store, nil)
}

func assessmentBody(t *testing.T, params *service.AssessmentParams) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(params)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func testPatient() *domain.PatientSnapshot {
	return &domain.PatientSnapshot{
		Age:       42,
		BMI:       &domain.Measurement{Value: 34.2, Unit: "kg/m2"},
		Diagnoses: []string{"Essential Hypertension"},
		ClinicalNotes: domain.ClinicalNotes{
			HasWeightProgram: true,
			BaselineWeight:   110,
			CurrentWeight:    103,
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	components, ok := body["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, components["formulary"])
	assert.Equal(t, float64(12), components["coverage_records"])
}

func TestCreateAssessment(t *testing.T) {
	server := newTestServer(t)

	t.Run("starting dose with qualifying patient", func(t *testing.T) {
		params := &service.AssessmentParams{
			InsurancePlan: "Acme Health PPO",
			DrugName:      "Wegovy",
			Dose:          "0.25 mg",
			Patient:       testPatient(),
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", assessmentBody(t, params))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result service.AssessmentResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

		assert.Equal(t, domain.PhaseStarting, result.Phase)
		assert.False(t, result.Continuation)
		require.NotNil(t, result.Assessment)
		assert.Equal(t, 100, result.Assessment.Likelihood)
		assert.Equal(t, domain.ConfidenceHigh, result.Assessment.Confidence)
		assert.Empty(t, result.Alternatives)
	})

	t.Run("undocumented titration suggests alternatives", func(t *testing.T) {
		params := &service.AssessmentParams{
			InsurancePlan: "Acme Health PPO",
			DrugName:      "Wegovy",
			Dose:          "1 mg",
			Patient:       testPatient(),
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", assessmentBody(t, params))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result service.AssessmentResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

		assert.Equal(t, domain.PhaseTitration, result.Phase)
		require.NotNil(t, result.Assessment)
		assert.Equal(t, 20, result.Assessment.Likelihood)

		require.Len(t, result.Alternatives, 2)
		assert.Equal(t, "Zepbound", result.Alternatives[0].Medication)
		assert.Equal(t, "Saxenda", result.Alternatives[1].Medication)
	})

	t.Run("unknown drug returns 404", func(t *testing.T) {
		params := &service.AssessmentParams{
			InsurancePlan: "Acme Health PPO",
			DrugName:      "Mysteryzumab",
			Dose:          "1 mg",
			Patient:       testPatient(),
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", assessmentBody(t, params))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var engineErr domain.EngineError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &engineErr))
		assert.Equal(t, domain.ErrCodeCoverageNotFound, engineErr.Code)
		assert.NotEmpty(t, engineErr.RequestID)
	})

	t.Run("missing patient returns 400", func(t *testing.T) {
		params := &service.AssessmentParams{
			InsurancePlan: "Acme Health PPO",
			DrugName:      "Wegovy",
			Dose:          "0.25 mg",
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", assessmentBody(t, params))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var engineErr domain.EngineError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &engineErr))
		assert.Equal(t, domain.ErrCodeValidation, engineErr.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var engineErr domain.EngineError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &engineErr))
		assert.Equal(t, domain.ErrCodeInvalidInput, engineErr.Code)
	})
}

func TestGetCoverage(t *testing.T) {
	server := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/coverage/Acme%20Health%20PPO/Wegovy", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var record domain.CoverageRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
		assert.Equal(t, "Wegovy", record.DrugName)
		assert.Equal(t, "semaglutide", record.GenericName)
		assert.Len(t, record.DoseSchedule, 5)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/coverage/Acme%20Health%20PPO/Mysteryzumab", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var engineErr domain.EngineError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &engineErr))
		assert.Equal(t, domain.ErrCodeCoverageNotFound, engineErr.Code)
	})
}

func TestListCoverage(t *testing.T) {
	server := newTestServer(t)

	t.Run("by category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/coverage/Acme%20Health%20PPO?category=GLP-1%20receptor%20agonist", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Records []domain.CoverageRecord `json:"records"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Records, 3)
		assert.Equal(t, "Wegovy", body.Records[0].DrugName)
		assert.Equal(t, "Zepbound", body.Records[1].DrugName)
		assert.Equal(t, "Saxenda", body.Records[2].DrugName)
	})

	t.Run("missing category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/coverage/Acme%20Health%20PPO", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListPlans(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plans []string `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"Acme Health PPO", "Meridian Choice HMO"}, body.Plans)
}

func TestCorrelationIDHeader(t *testing.T) {
	server := newTestServer(t)

	t.Run("generated when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("echoed when supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Correlation-ID", "pa-req-123")
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, "pa-req-123", rec.Header().Get("X-Correlation-ID"))
	})
}
