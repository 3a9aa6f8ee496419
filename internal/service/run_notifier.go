package service

import (
	"context"
	"encoding/json"
	"time"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/pkg/events"
	"clarvis-be/pkg/workflow"
)

// EventPublisher sends domain events to the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// ProgressPublisher fans a run update out to its watchers.
type ProgressPublisher interface {
	Publish(instanceId string, data []byte, terminal bool)
}

// RunEventNotifier publishes a domain event for every finished study material run.
type RunEventNotifier struct {
	publisher EventPublisher
	logger    logger.ILogger
	now       func() time.Time
}

func NewRunEventNotifier(publisher EventPublisher, logger logger.ILogger) *RunEventNotifier {
	return &RunEventNotifier{publisher: publisher, logger: logger, now: time.Now}
}

func (n *RunEventNotifier) RunFinished(ctx context.Context, run *workflow.Run) {
	params := decodeParams(run)
	at := n.now().UTC()
	if run.FinishedAt != nil {
		at = *run.FinishedAt
	}

	var event events.Event
	if run.Status == workflow.StatusComplete {
		event = events.NewStudyMaterialGenerated(run.InstanceID, params.UserID, params.PageContext.URL, at)
	} else {
		event = events.NewStudyMaterialFailed(run.InstanceID, params.UserID, string(run.Status), run.Error, at)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := n.publisher.Publish(pctx, event); err != nil {
		n.logger.Warn(studyModule, "Failed to publish run event", map[string]interface{}{
			"instance_id": run.InstanceID,
			"event":       event.EventType(),
			"error":       err.Error(),
		})
	}
}

// RunProgressNotifier pushes projected progress to websocket watchers.
type RunProgressNotifier struct {
	publisher ProgressPublisher
	labels    []string
	logger    logger.ILogger
}

func NewRunProgressNotifier(publisher ProgressPublisher, labels []string, logger logger.ILogger) *RunProgressNotifier {
	return &RunProgressNotifier{publisher: publisher, labels: labels, logger: logger}
}

func (n *RunProgressNotifier) StepRecorded(_ context.Context, run *workflow.Run) {
	n.push(run)
}

func (n *RunProgressNotifier) RunFinished(_ context.Context, run *workflow.Run) {
	n.push(run)
}

func (n *RunProgressNotifier) push(run *workflow.Run) {
	data, err := ProgressMessage(run, n.labels)
	if err != nil {
		n.logger.Error(studyModule, "Failed to encode progress", map[string]interface{}{
			"instance_id": run.InstanceID,
			"error":       err.Error(),
		})
		return
	}
	n.publisher.Publish(run.InstanceID, data, run.Status.Terminal())
}

// ProgressMessage encodes the websocket frame for a run.
func ProgressMessage(run *workflow.Run, labels []string) ([]byte, error) {
	return json.Marshal(dto.RunProgressMessage{
		Type:       "progress",
		InstanceId: run.InstanceID,
		Status:     string(run.Status),
		Terminal:   run.Status.Terminal(),
		Projection: workflow.Project(run, labels),
	})
}
