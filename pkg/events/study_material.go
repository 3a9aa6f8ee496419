// Package events holds the domain events published when a study material run ends.
package events

import "time"

const (
	StudyMaterialGenerated = "STUDY_MATERIAL_GENERATED"
	StudyMaterialFailed    = "STUDY_MATERIAL_FAILED"
)

// Event is a terminal outcome of one run.
type Event interface {
	EventType() string
	// RunID is the instance id of the run the event is about. A run ends once,
	// so type plus run id identifies the event.
	RunID() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type RunEvent struct {
	Type       string
	InstanceID string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e RunEvent) EventType() string               { return e.Type }
func (e RunEvent) RunID() string                   { return e.InstanceID }
func (e RunEvent) Payload() map[string]interface{} { return e.Data }
func (e RunEvent) Timestamp() time.Time            { return e.OccurredAt }

// NewStudyMaterialGenerated reports a run that produced its study material.
func NewStudyMaterialGenerated(instanceID, userID, pageURL string, at time.Time) Event {
	return RunEvent{
		Type:       StudyMaterialGenerated,
		InstanceID: instanceID,
		Data: map[string]interface{}{
			"instance_id": instanceID,
			"user_id":     userID,
			"page_url":    pageURL,
			"occurred_at": at.Format(time.RFC3339),
		},
		OccurredAt: at,
	}
}

// NewStudyMaterialFailed reports a run that ended errored or terminated.
func NewStudyMaterialFailed(instanceID, userID, status, reason string, at time.Time) Event {
	return RunEvent{
		Type:       StudyMaterialFailed,
		InstanceID: instanceID,
		Data: map[string]interface{}{
			"instance_id": instanceID,
			"user_id":     userID,
			"status":      status,
			"error":       reason,
			"occurred_at": at.Format(time.RFC3339),
		},
		OccurredAt: at,
	}
}
