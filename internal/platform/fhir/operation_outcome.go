package fhir

import (
	"fmt"
	"sort"
)

const ResourceTypeOperationOutcome = "OperationOutcome"

// OperationOutcome severity levels per FHIR R4.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes used by this service.
const (
	IssueTypeInvalid    = "invalid"
	IssueTypeRequired   = "required"
	IssueTypeNotFound   = "not-found"
	IssueTypeProcessing = "processing"
	IssueTypeThrottled  = "throttled"
	IssueTypeTooCostly  = "too-costly"
	IssueTypeTimeout    = "timeout"
	IssueTypeLogin      = "login"
	IssueTypeException  = "exception"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: ResourceTypeOperationOutcome,
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, fmt.Sprintf("%s/%s not found", resourceType, id))
}

func ThrottleOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeThrottled, "Rate limit exceeded. Please retry after a delay.")
}

func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}

// FieldIssuesOutcome turns a field-path → message map into one issue per
// field, ordered by path so the output is stable.
func FieldIssuesOutcome(fields map[string]string) *OperationOutcome {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	issues := make([]OperationOutcomeIssue, 0, len(paths))
	for _, p := range paths {
		issues = append(issues, OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeInvalid,
			Diagnostics: fmt.Sprintf("%s: %s", p, fields[p]),
			Expression:  []string{p},
		})
	}
	return &OperationOutcome{ResourceType: ResourceTypeOperationOutcome, Issue: issues}
}
