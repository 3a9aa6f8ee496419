package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "WORKFLOW_CONSUMER"

type IConsumerService interface {
	// Consume starts executing dispatched runs in the background until ctx is done.
	Consume(ctx context.Context) error
	// Wait blocks until every started execution has returned.
	Wait()
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	engine     *workflow.Engine
	logger     logger.ILogger
	slots      chan struct{}
	wg         sync.WaitGroup
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	engine *workflow.Engine,
	workers int,
	logger logger.ILogger,
) IConsumerService {
	if workers <= 0 {
		workers = 1
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		engine:     engine,
		logger:     logger,
		slots:      make(chan struct{}, workers),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) Wait() {
	cs.wg.Wait()
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishWorkflowRunMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.InstanceId == "" {
		cs.logger.Error(consumerModule, "Dropping malformed dispatch message", map[string]interface{}{
			"message_id": msg.UUID,
		})
		msg.Ack()
		return
	}

	select {
	case cs.slots <- struct{}{}:
	case <-ctx.Done():
		msg.Nack()
		return
	}
	// the run is durable, so it is acknowledged as soon as a worker owns it
	msg.Ack()

	cs.wg.Add(1)
	go func() {
		defer func() {
			<-cs.slots
			cs.wg.Done()
		}()
		cs.execute(ctx, payload.InstanceId)
	}()
}

func (cs *consumerService) execute(ctx context.Context, instanceId string) {
	err := cs.engine.Execute(ctx, instanceId)
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrRunLeased):
		cs.logger.Debug(consumerModule, "Run already executing elsewhere", map[string]interface{}{
			"instance_id": instanceId,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		cs.logger.Info(consumerModule, "Execution interrupted, run left for resume", map[string]interface{}{
			"instance_id": instanceId,
		})
	default:
		cs.logger.Error(consumerModule, "Execution failed", map[string]interface{}{
			"instance_id": instanceId,
			"error":       err.Error(),
		})
	}
}
