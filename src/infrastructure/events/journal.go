package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// SinkFunc receives every journaled event
type SinkFunc func(topic string, msg *message.Message) error

// NewJournal builds a router that feeds every job and distribution event into sink.
// The caller runs it with router.Run and stops it with router.Close.
func NewJournal(subscriber message.Subscriber, logger watermill.LoggerAdapter, sink SinkFunc) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
	)

	for _, topic := range []string{TopicJobState, TopicDistributionOutcome} {
		router.AddNoPublisherHandler(
			topic+".journal",
			topic,
			subscriber,
			func(msg *message.Message) error {
				return sink(topic, msg)
			},
		)
	}

	return router, nil
}
