package service

import (
	"context"
	"encoding/json"

	"clarvis-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// RunDispatcher hands a persisted run to whatever executes it.
type RunDispatcher interface {
	Dispatch(ctx context.Context, instanceId string) error
}

type queueDispatcher struct {
	publisher message.Publisher
	topicName string
}

func NewRunDispatcher(publisher message.Publisher, topicName string) RunDispatcher {
	return &queueDispatcher{
		publisher: publisher,
		topicName: topicName,
	}
}

func (d *queueDispatcher) Dispatch(ctx context.Context, instanceId string) error {
	payload, err := json.Marshal(dto.PublishWorkflowRunMessage{InstanceId: instanceId})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return d.publisher.Publish(d.topicName, msg)
}
