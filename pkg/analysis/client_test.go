package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

const cbcReply = `{
  "report_metadata": {"report_type": "Complete Blood Count", "date": "2024-04-02", "lab_name": "Apollo Diagnostics"},
  "test_values": [
    {"test_name": "Hemoglobin", "value": "10.1", "unit": "g/dL", "normal_range": "13-17", "flag": "low"},
    {"test_name": "WBC", "value": "7000", "unit": "/uL", "normal_range": "4000-11000", "flag": "borderline"}
  ],
  "summary": "What this report is: a CBC.",
  "what_is_wrong": "Low hemoglobin may indicate anaemia.",
  "abnormal_findings": ["Low hemoglobin"]
}`

func testConfig(url string) *config.Config {
	return &config.Config{
		LLMAPIKey:       "test-key",
		LLMBaseURL:      url,
		LLMModelName:    "test-model",
		AnalysisTimeout: 5 * time.Second,
		AnalysisRetries: 2,
	}
}

func completion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}))
}

func TestAnalyzeReportParsesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Hemoglobin 10.1")
		assert.Contains(t, req.Messages[0].Content, "DO NOT claim a diagnosis")

		completion(t, w, cbcReply)
	}))
	defer srv.Close()

	report, err := NewClient(testConfig(srv.URL)).AnalyzeReport(context.Background(), "Hemoglobin 10.1 g/dL")
	require.NoError(t, err)
	assert.Equal(t, "Complete Blood Count", report.ReportMetadata.ReportType)
	assert.Equal(t, "Apollo Diagnostics", report.ReportMetadata.LabName)
	require.Len(t, report.TestValues, 2)
	assert.Equal(t, models.FlagLow, report.TestValues[0].Flag)
	assert.Equal(t, models.FlagUnknown, report.TestValues[1].Flag)
	assert.Equal(t, []string{"Low hemoglobin"}, report.AbnormalFindings)
}

func TestAnalyzeReportRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		completion(t, w, cbcReply)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).AnalyzeReport(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnalyzeReportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
		},
		{
			name: "malformed content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(t, w, "not json at all")
			},
		},
		{
			name: "missing test name",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(t, w, `{"report_metadata":{},"test_values":[{"value":"1","flag":"HIGH"}],"summary":"s","what_is_wrong":"w","abnormal_findings":[]}`)
			},
		},
		{
			name: "empty object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(t, w, `{}`)
			},
		},
		{
			name: "summary only",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(t, w, `{"summary":"x"}`)
			},
		},
		{
			name: "test values only",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(t, w, `{"test_values":[]}`)
			},
		},
		{
			name: "null what_is_wrong",
			handler: func(w http.ResponseWriter, r *http.Request) {
				completion(t, w, `{"report_metadata":{},"test_values":[],"summary":"s","what_is_wrong":null,"abnormal_findings":[]}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cfg := testConfig(srv.URL)
			cfg.AnalysisRetries = 0
			_, err := NewClient(cfg).AnalyzeReport(context.Background(), "text")
			assert.ErrorIs(t, err, ErrAnalysis)
		})
	}
}

func TestDecodeStructuredStripsCodeFence(t *testing.T) {
	report, err := decodeStructured("```json\n" + cbcReply + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-02", report.ReportMetadata.Date)
}

func TestDecodeStructuredRequiresEveryField(t *testing.T) {
	var full map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(cbcReply), &full))

	for _, name := range requiredFields {
		t.Run(name, func(t *testing.T) {
			partial := make(map[string]json.RawMessage, len(full))
			for k, v := range full {
				if k != name {
					partial[k] = v
				}
			}
			body, err := json.Marshal(partial)
			require.NoError(t, err)

			_, err = decodeStructured(string(body))
			assert.ErrorIs(t, err, ErrAnalysis)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestNewFallsBackToMock(t *testing.T) {
	analyzer := New(&config.Config{})
	_, ok := analyzer.(Mock)
	assert.True(t, ok)

	report, err := analyzer.AnalyzeReport(context.Background(), "Lipid Profile\nLDL 160")
	require.NoError(t, err)
	assert.Equal(t, "Lipid Profile", report.ReportMetadata.ReportType)
	assert.Empty(t, report.AbnormalFindings)
	assert.Contains(t, report.Summary, "consult a doctor")
}
