package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/medisetu/platform/pkg/common/models"
)

// Mock is the development analyzer used when no API key is configured. It
// echoes a fixed, clearly labelled result.
type Mock struct{}

func (Mock) AnalyzeReport(ctx context.Context, reportText string) (*models.StructuredReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	firstLine := strings.TrimSpace(strings.SplitN(strings.TrimSpace(reportText), "\n", 2)[0])
	if firstLine == "" {
		firstLine = "Medical Report"
	}

	return &models.StructuredReport{
		ReportMetadata: models.ReportMetadata{
			ReportType: firstLine,
			Date:       time.Now().UTC().Format("2006-01-02"),
			LabName:    "Offline Analysis",
		},
		TestValues: []models.TestValue{},
		Summary: "What this report is: an offline placeholder analysis. " +
			"What is normal: not assessed. What is not normal: not assessed. " +
			"Next steps: keep the original report, share it with your doctor, and book a follow-up. " +
			"Safety Disclaimer: this is not a diagnosis. Please consult a doctor.",
		WhatIsWrong:      "No automated analysis is available. Please consult a doctor.",
		AbnormalFindings: []string{},
	}, nil
}
