// Package events publishes job lifecycle changes and distribution outcomes to a
// watermill publisher so other processes can follow what the client is doing.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"adwise/src/core/distribution"
	"adwise/src/core/job"
)

const (
	TopicJobState            = "job.state"
	TopicDistributionOutcome = "distribution.outcome"
)

// Supported drivers
const (
	DriverNone      = "none"
	DriverGoChannel = "gochannel"
	DriverAMQP      = "amqp"
)

// JobStateMessage is the payload published on TopicJobState
type JobStateMessage struct {
	JobID         string    `json:"job_id,omitempty"`
	State         string    `json:"state"`
	ArtifactID    string    `json:"artifact_id,omitempty"`
	FailureKind   string    `json:"failure_kind,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OutcomeMessage is the payload published on TopicDistributionOutcome
type OutcomeMessage struct {
	ID            int64     `json:"id"`
	Kind          string    `json:"kind"`
	JobID         string    `json:"job_id,omitempty"`
	Succeeded     bool      `json:"succeeded"`
	PosterRefs    []string  `json:"poster_refs,omitempty"`
	FailureKind   string    `json:"failure_kind,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher implements job.Notifier and distribution.Notifier. Publish failures
// are logged and never reach the coordinator or the dispatcher.
type Publisher struct {
	publisher message.Publisher
	logger    watermill.LoggerAdapter
	now       func() time.Time
}

func NewPublisher(publisher message.Publisher, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// JobChanged publishes a job snapshot on TopicJobState
func (p *Publisher) JobChanged(j job.Job) {
	msg := JobStateMessage{
		JobID:      j.ID,
		State:      string(j.State),
		ArtifactID: j.ArtifactID,
		OccurredAt: p.now().UTC(),
	}
	if j.Failure != nil {
		msg.FailureKind = string(j.Failure.Kind)
		msg.FailureReason = j.Failure.Reason()
	}
	p.publish(TopicJobState, msg)
}

// Dispatched publishes a distribution outcome on TopicDistributionOutcome
func (p *Publisher) Dispatched(o distribution.Outcome) {
	msg := OutcomeMessage{
		ID:         o.ID,
		Kind:       string(o.Kind),
		JobID:      o.JobID,
		Succeeded:  o.Succeeded(),
		PosterRefs: o.PosterRefs,
		DurationMS: o.Duration.Milliseconds(),
		OccurredAt: p.now().UTC(),
	}
	if o.Err != nil {
		msg.FailureKind = string(o.Err.Kind)
		msg.FailureReason = o.Err.Reason()
	}
	p.publish(TopicDistributionOutcome, msg)
}

func (p *Publisher) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal event", err, watermill.LogFields{"topic": topic})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := p.publisher.Publish(topic, msg); err != nil {
		p.logger.Error("Failed to publish event", err, watermill.LogFields{
			"topic":      topic,
			"message_id": msg.UUID,
		})
	}
}

// NewGoChannel creates an in-process pub/sub usable as both publisher and subscriber.
// Publish waits for subscribers to ack, so messages arrive in publish order.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// NewAMQPPublisher connects a durable-queue AMQP publisher
func NewAMQPPublisher(url string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(url), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp publisher: %w", err)
	}
	return publisher, nil
}

// NewAMQPSubscriber connects a durable-queue AMQP subscriber
func NewAMQPSubscriber(url string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	config := amqp.NewDurableQueueConfig(url)
	config.Consume.NoRequeueOnNack = true

	subscriber, err := amqp.NewSubscriber(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp subscriber: %w", err)
	}
	return subscriber, nil
}

// Bus bundles the publisher and subscriber of one driver. Both are nil for DriverNone.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

// Open builds the bus selected by driver
func Open(driver, amqpURL string, logger watermill.LoggerAdapter) (*Bus, error) {
	switch driver {
	case "", DriverNone:
		return &Bus{}, nil
	case DriverGoChannel:
		pubsub := NewGoChannel(logger)
		return &Bus{Publisher: pubsub, Subscriber: pubsub, closers: []func() error{pubsub.Close}}, nil
	case DriverAMQP:
		publisher, err := NewAMQPPublisher(amqpURL, logger)
		if err != nil {
			return nil, err
		}
		subscriber, err := NewAMQPSubscriber(amqpURL, logger)
		if err != nil {
			publisher.Close()
			return nil, err
		}
		return &Bus{
			Publisher:  publisher,
			Subscriber: subscriber,
			closers:    []func() error{publisher.Close, subscriber.Close},
		}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", driver)
	}
}

// Enabled reports whether the bus publishes anywhere
func (b *Bus) Enabled() bool {
	return b != nil && b.Publisher != nil
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
