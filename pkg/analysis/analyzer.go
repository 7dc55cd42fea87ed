// Package analysis turns raw report text into a structured, patient-friendly
// report using a chat-completions language model.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/medisetu/platform/pkg/common/models"
)

// ErrAnalysis wraps every failure of the external analysis call.
var ErrAnalysis = errors.New("report analysis failed")

type Analyzer interface {
	AnalyzeReport(ctx context.Context, reportText string) (*models.StructuredReport, error)
}

// requiredFields must all be present, and non-null, in a model reply.
var requiredFields = []string{
	"report_metadata",
	"test_values",
	"summary",
	"what_is_wrong",
	"abnormal_findings",
}

// decodeStructured parses a model reply into a StructuredReport. Unknown or
// missing flags are normalised to UNKNOWN.
func decodeStructured(content string) (*models.StructuredReport, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	body := []byte(strings.TrimSpace(content))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: malformed model output: %v", ErrAnalysis, err)
	}
	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return nil, fmt.Errorf("%w: model output missing %s", ErrAnalysis, name)
		}
	}

	var report models.StructuredReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("%w: malformed model output: %v", ErrAnalysis, err)
	}

	for i := range report.TestValues {
		flag := models.TestFlag(strings.ToUpper(strings.TrimSpace(string(report.TestValues[i].Flag))))
		if !flag.Valid() {
			flag = models.FlagUnknown
		}
		report.TestValues[i].Flag = flag
	}
	if report.TestValues == nil {
		report.TestValues = []models.TestValue{}
	}
	if report.AbnormalFindings == nil {
		report.AbnormalFindings = []string{}
	}

	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	return &report, nil
}
