package appointment

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type StepStatus string

const (
	StepCompleted  StepStatus = "completed"
	StepInProgress StepStatus = "in_progress"
	StepPending    StepStatus = "pending"
	StepFailed     StepStatus = "failed"
)

type FlowStep struct {
	Step      int            `json:"step"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Status    StepStatus     `json:"status"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Trace is a read-only view of where an appointment sits in the pipeline.
type Trace struct {
	AppointmentID        string     `json:"appointmentId"`
	InsuredID            string     `json:"insuredId"`
	CountryISO           string     `json:"countryISO"`
	CurrentStatus        Status     `json:"currentStatus"`
	FlowSteps            []FlowStep `json:"flowSteps"`
	CompletionPercentage int        `json:"completionPercentage"`
	Summary              string     `json:"summary"`
}

// BuildTrace derives the eight pipeline steps from status and country only.
func BuildTrace(a *Appointment) Trace {
	steps := buildSteps(a)

	completed := 0
	for _, s := range steps {
		if s.Status == StepCompleted {
			completed++
		}
	}
	pct := int(math.Round(float64(completed) / float64(len(steps)) * 100))

	return Trace{
		AppointmentID:        a.id.String(),
		InsuredID:            a.insuredID.String(),
		CountryISO:           a.country.String(),
		CurrentStatus:        a.status,
		FlowSteps:            steps,
		CompletionPercentage: pct,
		Summary:              summary(a.status, pct),
	}
}

func buildSteps(a *Appointment) []FlowStep {
	status := a.status
	country := a.country.String()
	queue := a.country.Config().QueueName
	if queue == "" {
		queue = "appointments-" + strings.ToLower(country) + "-queue"
	}
	database := "appointments_" + strings.ToLower(country)
	createdAt := a.createdAt
	updatedAt := a.updatedAt

	// Cancelled appointments never leave the intake side of the pipeline.
	routed := status != StatusPending && status != StatusCancelled

	steps := []FlowStep{
		{
			Step:      1,
			Component: "API",
			Action:    "request received and validated",
			Status:    StepCompleted,
			Timestamp: &createdAt,
		},
		{
			Step:      2,
			Component: "DynamoDB",
			Action:    `appointment stored with status "pending"`,
			Status:    StepCompleted,
			Timestamp: &createdAt,
			Details:   map[string]any{"table": "appointments", "status": string(StatusPending)},
		},
		{
			Step:      3,
			Component: "SNS",
			Action:    "message published with filter countryISO=" + country,
			Status:    pick(status == StatusPending, StepInProgress, pick(routed, StepCompleted, StepPending)),
			Details:   map[string]any{"filterAttribute": "countryISO"},
		},
		{
			Step:      4,
			Component: fmt.Sprintf("SQS (%s)", country),
			Action:    "message queued in " + queue,
			Status:    pick(status == StatusProcessing, StepInProgress, pick(routed, StepCompleted, StepPending)),
			Details:   map[string]any{"queue": queue},
		},
		{
			Step:      5,
			Component: fmt.Sprintf("Processor (%s)", country),
			Action:    "processing appointment for the country store",
			Status:    pick(status == StatusProcessing, StepInProgress, pick(status == StatusCompleted, StepCompleted, StepPending)),
		},
		{
			Step:      6,
			Component: fmt.Sprintf("PostgreSQL (%s)", country),
			Action:    "appointment upserted into " + database,
			Status:    pick(status == StatusCompleted, StepCompleted, StepPending),
			Details:   map[string]any{"database": database},
		},
		{
			Step:      7,
			Component: "EventBridge",
			Action:    `event "appointment.completed" emitted`,
			Status:    pick(status == StatusCompleted, StepCompleted, StepPending),
			Details:   map[string]any{"detailType": "appointment.completed"},
		},
		{
			Step:      8,
			Component: "DynamoDB (update)",
			Action:    `status updated to "completed"`,
			Status:    pick(status == StatusCompleted, StepCompleted, StepPending),
			Details:   map[string]any{"finalStatus": string(status)},
		},
	}
	if status == StatusCompleted {
		steps[7].Timestamp = &updatedAt
	}

	if status == StatusFailed {
		for i := range steps {
			if steps[i].Status == StepInProgress || steps[i].Status == StepPending {
				steps[i].Status = StepFailed
				steps[i].Action += " - ERROR"
				break
			}
		}
	}
	return steps
}

func pick(cond bool, a, b StepStatus) StepStatus {
	if cond {
		return a
	}
	return b
}

func summary(status Status, pct int) string {
	switch status {
	case StatusPending:
		return fmt.Sprintf("Appointment queued (%d%% complete). Waiting for country processing.", pct)
	case StatusProcessing:
		return fmt.Sprintf("Appointment being processed (%d%% complete). Writing to the country database.", pct)
	case StatusCompleted:
		return "Appointment processed successfully. Flow complete."
	case StatusFailed:
		return "Appointment processing failed. Check the logs for details."
	case StatusCancelled:
		return "Appointment cancelled."
	default:
		return "Status: " + string(status)
	}
}
