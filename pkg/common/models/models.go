package models

import (
	"errors"
	"fmt"
	"time"
)

// ID prefixes keep generated identifiers readable.
const (
	PrefixPatient     = "P"
	PrefixReport      = "REP"
	PrefixAppointment = "APT"
	PrefixNote        = "NTE"
)

type ReportStatus string

const (
	ReportNormal   ReportStatus = "Normal"
	ReportAbnormal ReportStatus = "Abnormal"
	ReportPending  ReportStatus = "Pending"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportNormal, ReportAbnormal, ReportPending:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentCheckedIn AppointmentStatus = "CheckedIn"
	AppointmentCompleted AppointmentStatus = "Completed"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCheckedIn, AppointmentCompleted:
		return true
	}
	return false
}

type TestFlag string

const (
	FlagLow     TestFlag = "LOW"
	FlagHigh    TestFlag = "HIGH"
	FlagNormal  TestFlag = "NORMAL"
	FlagUnknown TestFlag = "UNKNOWN"
)

func (f TestFlag) Valid() bool {
	switch f {
	case FlagLow, FlagHigh, FlagNormal, FlagUnknown:
		return true
	}
	return false
}

var errMissingID = errors.New("missing id")

type Patient struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Phone  string `json:"phone" yaml:"phone"`
	Age    string `json:"age" yaml:"age"`
	Gender string `json:"gender" yaml:"gender"`
}

func (p Patient) Validate() error {
	if p.ID == "" {
		return errMissingID
	}
	return nil
}

type Doctor struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

func (d Doctor) Validate() error {
	if d.ID == "" {
		return errMissingID
	}
	return nil
}

type ReportMetadata struct {
	ReportType string `json:"report_type" yaml:"report_type"`
	Date       string `json:"date" yaml:"date"`
	LabName    string `json:"lab_name" yaml:"lab_name"`
}

type TestValue struct {
	TestName    string   `json:"test_name" yaml:"test_name"`
	Value       string   `json:"value" yaml:"value"`
	Unit        string   `json:"unit" yaml:"unit"`
	NormalRange string   `json:"normal_range" yaml:"normal_range"`
	Flag        TestFlag `json:"flag" yaml:"flag"`
}

// StructuredReport is the analysis output stored as a report's extractedData.
type StructuredReport struct {
	ReportMetadata   ReportMetadata `json:"report_metadata" yaml:"report_metadata"`
	TestValues       []TestValue    `json:"test_values" yaml:"test_values"`
	Summary          string         `json:"summary" yaml:"summary"`
	WhatIsWrong      string         `json:"what_is_wrong" yaml:"what_is_wrong"`
	AbnormalFindings []string       `json:"abnormal_findings" yaml:"abnormal_findings"`
}

func (r StructuredReport) Validate() error {
	for i, tv := range r.TestValues {
		if tv.TestName == "" {
			return fmt.Errorf("test value %d: missing test_name", i)
		}
		if !tv.Flag.Valid() {
			return fmt.Errorf("test value %d: invalid flag %q", i, tv.Flag)
		}
	}
	return nil
}

type MedicalReport struct {
	ID            string            `json:"id" yaml:"id"`
	PatientID     string            `json:"patientId" yaml:"patientId"`
	Title         string            `json:"title" yaml:"title"`
	Date          string            `json:"date" yaml:"date"`
	Source        string            `json:"source" yaml:"source"`
	Status        ReportStatus      `json:"status" yaml:"status"`
	FileName      string            `json:"fileName" yaml:"fileName"`
	FileURL       string            `json:"fileUrl,omitempty" yaml:"fileUrl,omitempty"`
	ExtractedData *StructuredReport `json:"extractedData,omitempty" yaml:"extractedData,omitempty"`
}

func (r MedicalReport) Validate() error {
	if r.ID == "" {
		return errMissingID
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid report status %q", r.Status)
	}
	if r.ExtractedData != nil {
		if err := r.ExtractedData.Validate(); err != nil {
			return fmt.Errorf("extractedData: %w", err)
		}
	}
	return nil
}

type Appointment struct {
	ID          string            `json:"id"`
	DoctorID    string            `json:"doctorId"`
	PatientName string            `json:"patientName"`
	Phone       string            `json:"phone"`
	Age         string            `json:"age"`
	Gender      string            `json:"gender"`
	Date        string            `json:"date"`
	Slot        string            `json:"slot"`
	Reason      string            `json:"reason"`
	Status      AppointmentStatus `json:"status"`
	CreatedAt   string            `json:"createdAt"`
}

func (a Appointment) Validate() error {
	if a.ID == "" {
		return errMissingID
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid appointment status %q", a.Status)
	}
	return nil
}

type Vitals struct {
	BP          string `json:"bp"`
	Pulse       string `json:"pulse"`
	Temperature string `json:"temperature"`
}

type PatientNote struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
	Complaint string `json:"complaint"`
	NoteText  string `json:"noteText"`
	Vitals    Vitals `json:"vitals"`
}

func (n PatientNote) Validate() error {
	if n.ID == "" {
		return errMissingID
	}
	return nil
}

// Event is the envelope published to the event bus after a successful write.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
