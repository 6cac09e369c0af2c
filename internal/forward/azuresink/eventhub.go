// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuresink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/v2"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	eventHubLoggerName = "actorlog:sink:eventhub"

	levelProperty  = "level"
	logIDProperty  = "logid"
	targetProperty = "target"
)

// eventSender delivers a group of events to a hub.
type eventSender interface {
	Send(ctx context.Context, events []*azeventhubs.EventData) error
	Close(ctx context.Context) error
}

var (
	_ forward.Sink    = &EventHubSink{}
	_ forward.Flusher = &EventHubSink{}
	_ forward.Closer  = &EventHubSink{}
)

// EventHubSink buffers records as Event Hubs events, sent in batches on Flush.
type EventHubSink struct {
	sender eventSender

	lock   sync.Mutex
	events []*azeventhubs.EventData
}

// NewEventHubSink connects to the hub described by cfg, with the connection string
// when present and the default Azure credential otherwise.
func NewEventHubSink(cfg Config) (*EventHubSink, error) {
	if err := cfg.validateForEventHub(); err != nil {
		return nil, handleError(err)
	}

	client, err := cfg.newProducerClient()
	if err != nil {
		return nil, handleError(err)
	}

	return &EventHubSink{sender: &producerSender{client: client}}, nil
}

func (s *EventHubSink) Forward(_ context.Context, record *runtime.Record) error {
	properties := map[string]any{
		levelProperty: record.Level.String(),
		logIDProperty: int64(record.ID),
	}
	if record.Target != "" {
		properties[targetProperty] = record.Target
	}

	event := &azeventhubs.EventData{
		Body:        forward.EncodeJSON(record),
		ContentType: to.Ptr("application/json"),
		Properties:  properties,
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Flush sends the buffered events. On failure the events are dropped.
func (s *EventHubSink) Flush(ctx context.Context) error {
	s.lock.Lock()
	events := s.events
	s.events = nil
	s.lock.Unlock()

	if len(events) == 0 {
		return nil
	}

	if err := s.sender.Send(ctx, events); err != nil {
		return handleError(err)
	}

	logger.Named(ctx, eventHubLoggerName).Trace("sent events", "count", len(events))
	return nil
}

// Close flushes the buffered events and closes the producer.
func (s *EventHubSink) Close(ctx context.Context) error {
	log := logger.Named(ctx, eventHubLoggerName)
	log.Debug("closing Azure Event Hubs producer")

	err := errors.Join(s.Flush(ctx), handleError(s.sender.Close(ctx)))
	if err != nil {
		return err
	}

	log.Debug("closed Azure Event Hubs producer")
	return nil
}

// producerSender packs events into as few batches as the hub allows.
type producerSender struct {
	client *azeventhubs.ProducerClient
}

func (p *producerSender) Send(ctx context.Context, events []*azeventhubs.EventData) error {
	batch, err := p.client.NewEventDataBatch(ctx, nil)
	if err != nil {
		return err
	}

	for _, event := range events {
		err := batch.AddEventData(event, nil)
		if errors.Is(err, azeventhubs.ErrEventDataTooLarge) {
			if batch.NumEvents() == 0 {
				return fmt.Errorf("event of %d bytes exceeds the batch size", len(event.Body))
			}

			if err := p.client.SendEventDataBatch(ctx, batch, nil); err != nil {
				return err
			}
			if batch, err = p.client.NewEventDataBatch(ctx, nil); err != nil {
				return err
			}
			err = batch.AddEventData(event, nil)
		}
		if err != nil {
			return err
		}
	}

	if batch.NumEvents() == 0 {
		return nil
	}
	return p.client.SendEventDataBatch(ctx, batch, nil)
}

func (p *producerSender) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}
