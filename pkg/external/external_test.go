package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func TestRxNormClient_Identify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/rxcui.json":
			assert.Equal(t, "Wegovy", r.URL.Query().Get("name"))
			w.Write([]byte(`{"idGroup":{"name":"Wegovy","rxnormId":["2553501"]}}`))
		case r.URL.Path == "/rxcui/2553501/properties.json":
			w.Write([]byte(`{"properties":{"rxcui":"2553501","name":"semaglutide","tty":"IN"}}`))
		case r.URL.Path == "/rxclass/class/byRxcui.json":
			w.Write([]byte(`{"rxClassDrugInfoList":{"rxclassDrugInfo":[
				{"rxclassMinConceptItem":{"classId":"N0000182141","className":"GLP-1 receptor agonists","classType":"EPC"}},
				{"rxclassMinConceptItem":{"classId":"N0000182141","className":"GLP-1 receptor agonists","classType":"MOA"}}
			]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewRxNormClient(RxNormConfig{BaseURL: server.URL, Timeout: 2 * time.Second, RateLimit: 100})

	identification, err := client.Identify(context.Background(), "Wegovy")
	require.NoError(t, err)
	assert.Equal(t, "2553501", identification.RxCUI)
	assert.Equal(t, "semaglutide", identification.GenericName)
	// Duplicate class names collapse to one entry.
	assert.Equal(t, []string{"GLP-1 receptor agonists"}, identification.Classes)
}

func TestRxNormClient_Identify_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"idGroup":{"name":"Nonexistol"}}`))
	}))
	defer server.Close()

	client := NewRxNormClient(RxNormConfig{BaseURL: server.URL, RateLimit: 100})

	_, err := client.Identify(context.Background(), "Nonexistol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRxNormClient_Identify_EmptyName(t *testing.T) {
	client := NewRxNormClient(RxNormConfig{RateLimit: 100})
	_, err := client.Identify(context.Background(), "  ")
	require.Error(t, err)
}

func TestRxNormClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRxNormClient(RxNormConfig{BaseURL: server.URL, RateLimit: 100})

	_, err := client.Identify(context.Background(), "Wegovy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestExtractStrength(t *testing.T) {
	tests := []struct {
		name     string
		concept  string
		expected string
	}{
		{
			name:     "auto injector concept",
			concept:  "semaglutide 2.4 MG in 0.75 ML Auto-Injector [Wegovy]",
			expected: "2.4 mg",
		},
		{
			name:     "plain tablet concept",
			concept:  "orlistat 120 MG Oral Capsule [Xenical]",
			expected: "120 mg",
		},
		{
			name:     "no strength token",
			concept:  "semaglutide Injectable Product",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractStrength(tt.concept))
		})
	}
}

func TestOpenFDAClient_ApprovalInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{
			"indications_and_usage":["WEGOVY is indicated as an adjunct to diet and exercise for chronic weight management in adults"],
			"openfda":{"brand_name":["WEGOVY"],"generic_name":["SEMAGLUTIDE"]}
		}]}`))
	}))
	defer server.Close()

	client := NewOpenFDAClient(OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	info, err := client.ApprovalInfo(context.Background(), "semaglutide", "chronic weight management")
	require.NoError(t, err)
	assert.True(t, info.Approved)
	assert.Equal(t, "chronic weight management", info.Indication)
}

func TestOpenFDAClient_ApprovalInfo_IndicationMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{
			"indications_and_usage":["indicated for type 2 diabetes mellitus"]
		}]}`))
	}))
	defer server.Close()

	client := NewOpenFDAClient(OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	info, err := client.ApprovalInfo(context.Background(), "semaglutide", "chronic weight management")
	require.NoError(t, err)
	assert.False(t, info.Approved)
}

func TestOpenFDAClient_ApprovalInfo_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// openFDA answers zero-match searches with 404
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewOpenFDAClient(OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	info, err := client.ApprovalInfo(context.Background(), "nonexistol", "")
	require.NoError(t, err)
	assert.False(t, info.Approved)
}

func TestFallbackMetadata(t *testing.T) {
	t.Run("Known_Drug", func(t *testing.T) {
		metadata := FallbackMetadata("Wegovy", "chronic weight management")
		require.NotNil(t, metadata)
		assert.False(t, metadata.Validated)
		assert.Equal(t, "semaglutide", metadata.Identification.GenericName)
		assert.True(t, metadata.HasStrength("2.4 mg"))
		require.NotNil(t, metadata.Approval)
		assert.True(t, metadata.Approval.Approved)
	})

	t.Run("Normalized_Name_Lookup", func(t *testing.T) {
		metadata := FallbackMetadata("  WEGOVY ", "")
		require.NotNil(t, metadata)
	})

	t.Run("Unknown_Drug", func(t *testing.T) {
		assert.Nil(t, FallbackMetadata("Nonexistol", ""))
	})

	t.Run("Unmatched_Indication_Has_No_Approval", func(t *testing.T) {
		metadata := FallbackMetadata("Wegovy", "type 2 diabetes")
		require.NotNil(t, metadata)
		assert.Nil(t, metadata.Approval)
	})

	t.Run("Liraglutide_Carries_Class_Threshold", func(t *testing.T) {
		metadata := FallbackMetadata("Saxenda", "")
		require.NotNil(t, metadata)
		assert.Equal(t, 4.0, metadata.WeightLossThreshold)
	})

	t.Run("Semaglutide_Has_No_Class_Threshold", func(t *testing.T) {
		metadata := FallbackMetadata("Wegovy", "")
		require.NotNil(t, metadata)
		assert.Zero(t, metadata.WeightLossThreshold)
	})
}

func TestResilientMetadataClient_GatherMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rxcui.json":
			w.Write([]byte(`{"idGroup":{"rxnormId":["2553501"]}}`))
		case "/rxcui/2553501/properties.json":
			w.Write([]byte(`{"properties":{"rxcui":"2553501","name":"semaglutide","tty":"IN"}}`))
		case "/rxclass/class/byRxcui.json":
			w.Write([]byte(`{"rxClassDrugInfoList":{"rxclassDrugInfo":[
				{"rxclassMinConceptItem":{"className":"GLP-1 receptor agonists"}}
			]}}`))
		case "/rxcui/2553501/related.json":
			w.Write([]byte(`{"relatedGroup":{"conceptGroup":[{"tty":"SCD","conceptProperties":[
				{"rxcui":"1","name":"semaglutide 2.4 MG in 0.75 ML Auto-Injector [Wegovy]"}
			]}]}}`))
		case "/drug/label.json":
			w.Write([]byte(`{"results":[{"indications_and_usage":["chronic weight management"]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	logger := newTestLogger()
	client := NewResilientMetadataClient(
		RxNormConfig{BaseURL: server.URL, RateLimit: 100},
		OpenFDAConfig{BaseURL: server.URL, RateLimit: 100},
		nil,
		logger,
	)

	metadata, err := client.GatherMetadata(context.Background(), "Wegovy", "chronic weight management")
	require.NoError(t, err)

	assert.True(t, metadata.Validated)
	require.NotNil(t, metadata.Identification)
	assert.Equal(t, "2553501", metadata.Identification.RxCUI)
	require.NotNil(t, metadata.Approval)
	assert.True(t, metadata.Approval.Approved)
	assert.True(t, metadata.HasStrength("2.4 mg"))
}

func TestResilientMetadataClient_GatherMetadata_IdentifyFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewResilientMetadataClient(
		RxNormConfig{BaseURL: server.URL, RateLimit: 100},
		OpenFDAConfig{BaseURL: server.URL, RateLimit: 100},
		nil,
		newTestLogger(),
	)

	_, err := client.GatherMetadata(context.Background(), "Wegovy", "")
	require.Error(t, err)
}

func TestResilientMetadataClient_GatherMetadata_PartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rxcui.json":
			w.Write([]byte(`{"idGroup":{"rxnormId":["2553501"]}}`))
		case "/rxcui/2553501/properties.json":
			w.Write([]byte(`{"properties":{"name":"semaglutide"}}`))
		case "/rxclass/class/byRxcui.json":
			w.Write([]byte(`{"rxClassDrugInfoList":{}}`))
		case "/rxcui/2553501/related.json":
			w.Write([]byte(`{"relatedGroup":{"conceptGroup":[]}}`))
		case "/drug/label.json":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewResilientMetadataClient(
		RxNormConfig{BaseURL: server.URL, RateLimit: 100},
		OpenFDAConfig{BaseURL: server.URL, RateLimit: 100},
		nil,
		newTestLogger(),
	)

	metadata, err := client.GatherMetadata(context.Background(), "Wegovy", "chronic weight management")
	require.NoError(t, err)
	assert.True(t, metadata.Validated)
	assert.Nil(t, metadata.Approval)
}

func TestMetadataService_FallsBackToStaticProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	service, err := NewMetadataService(
		RxNormConfig{BaseURL: server.URL, RateLimit: 100},
		OpenFDAConfig{BaseURL: server.URL, RateLimit: 100},
		nil,
		newTestLogger(),
	)
	require.NoError(t, err)

	metadata, err := service.GatherMetadata(context.Background(), "Saxenda", "")
	require.NoError(t, err)
	assert.False(t, metadata.Validated)
	assert.Equal(t, "liraglutide", metadata.Identification.GenericName)

	// A drug with no static profile surfaces the live error.
	_, err = service.GatherMetadata(context.Background(), "Nonexistol", "")
	require.Error(t, err)
}

func TestMetadataService_MemoryCacheHit(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rxcui.json":
			atomic.AddInt64(&calls, 1)
			w.Write([]byte(`{"idGroup":{"rxnormId":["2553501"]}}`))
		case "/rxcui/2553501/properties.json":
			w.Write([]byte(`{"properties":{"name":"semaglutide"}}`))
		case "/rxclass/class/byRxcui.json":
			w.Write([]byte(`{"rxClassDrugInfoList":{}}`))
		case "/rxcui/2553501/related.json":
			w.Write([]byte(`{"relatedGroup":{"conceptGroup":[]}}`))
		case "/drug/label.json":
			w.Write([]byte(`{"results":[{"indications_and_usage":["chronic weight management"]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	service, err := NewMetadataService(
		RxNormConfig{BaseURL: server.URL, RateLimit: 100},
		OpenFDAConfig{BaseURL: server.URL, RateLimit: 100},
		nil,
		newTestLogger(),
	)
	require.NoError(t, err)

	_, err = service.GatherMetadata(context.Background(), "Wegovy", "")
	require.NoError(t, err)
	identifyCalls := atomic.LoadInt64(&calls)

	_, err = service.GatherMetadata(context.Background(), "Wegovy", "")
	require.NoError(t, err)
	assert.Equal(t, identifyCalls, atomic.LoadInt64(&calls), "second gather should be served from memory")
}
