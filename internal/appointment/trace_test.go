package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceFor(t *testing.T, status Status, country string) Trace {
	t.Helper()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a, err := Rehydrate(Record{
		ID:         uuid.New(),
		InsuredID:  "00001",
		ScheduleID: 100,
		Country:    country,
		Status:     status,
		CreatedAt:  created,
		UpdatedAt:  created.Add(time.Minute),
	})
	require.NoError(t, err)
	return BuildTrace(a)
}

func countSteps(tr Trace, s StepStatus) int {
	n := 0
	for _, st := range tr.FlowSteps {
		if st.Status == s {
			n++
		}
	}
	return n
}

func TestTracePending(t *testing.T) {
	tr := traceFor(t, StatusPending, "PE")

	require.Len(t, tr.FlowSteps, 8)
	assert.Equal(t, 2, countSteps(tr, StepCompleted))
	assert.Equal(t, 25, tr.CompletionPercentage)
	assert.Equal(t, StepInProgress, tr.FlowSteps[2].Status)
	assert.Contains(t, tr.Summary, "25%")
}

func TestTraceProcessing(t *testing.T) {
	tr := traceFor(t, StatusProcessing, "CL")

	assert.Equal(t, 3, countSteps(tr, StepCompleted))
	assert.Equal(t, 38, tr.CompletionPercentage)
	assert.Equal(t, StepInProgress, tr.FlowSteps[3].Status)
	assert.Equal(t, StepInProgress, tr.FlowSteps[4].Status)
	assert.Equal(t, "appointments-cl-queue", tr.FlowSteps[3].Details["queue"])
}

func TestTraceCompleted(t *testing.T) {
	tr := traceFor(t, StatusCompleted, "PE")

	assert.Equal(t, 8, countSteps(tr, StepCompleted))
	assert.Equal(t, 100, tr.CompletionPercentage)
	assert.Equal(t, StatusCompleted, tr.CurrentStatus)
	require.NotNil(t, tr.FlowSteps[7].Timestamp)
}

func TestTraceFailedMarksExactlyOneStep(t *testing.T) {
	tr := traceFor(t, StatusFailed, "PE")

	assert.Equal(t, 1, countSteps(tr, StepFailed))
	assert.Equal(t, StepFailed, tr.FlowSteps[4].Status)
	for _, st := range tr.FlowSteps[:4] {
		assert.Equal(t, StepCompleted, st.Status)
	}
	assert.Contains(t, tr.FlowSteps[4].Action, "ERROR")
}

func TestTraceCancelled(t *testing.T) {
	tr := traceFor(t, StatusCancelled, "CL")

	assert.Equal(t, 2, countSteps(tr, StepCompleted))
	assert.Equal(t, 6, countSteps(tr, StepPending))
	assert.Equal(t, 0, countSteps(tr, StepInProgress))
	assert.Equal(t, "Appointment cancelled.", tr.Summary)
}

func TestTraceIsDeterministic(t *testing.T) {
	created := time.Now().UTC()
	a, err := Rehydrate(Record{ID: uuid.New(), InsuredID: "00001", ScheduleID: 1, Country: "PE", Status: StatusProcessing, CreatedAt: created, UpdatedAt: created})
	require.NoError(t, err)
	assert.Equal(t, BuildTrace(a), BuildTrace(a))
}
