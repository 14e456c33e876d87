package domain

import "strings"

// Survey status labels, ordered from most to least urgent.
const (
	StatusOverdue  = "Overdue"
	StatusCritical = "Critical"
	StatusDueSoon  = "Due Soon"
	StatusValid    = "Valid"
)

var surveyStatusCodes = map[string]string{
	"overdue":  StatusOverdue,
	"critical": StatusCritical,
	"due_soon": StatusDueSoon,
	"due soon": StatusDueSoon,
	"duesoon":  StatusDueSoon,
	"valid":    StatusValid,
}

// ParseSurveyStatus returns the status label for a query value (case-insensitive).
func ParseSurveyStatus(label string) (string, bool) {
	status, ok := surveyStatusCodes[strings.ToLower(strings.TrimSpace(label))]

	return status, ok
}

// Survey types.
const (
	SurveyAnnual       = "Annual"
	SurveyIntermediate = "Intermediate"
	SurveyRenewal      = "Renewal"
)
