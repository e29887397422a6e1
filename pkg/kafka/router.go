package pkgkafka

import (
	"context"
	"fmt"
	"sync"

	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/sirupsen/logrus"
)

type Handler func(ctx context.Context, payload *pkgtypes.Payload) error

type deadLetterer interface {
	Publish(topic string, msg []byte) error
}

// MsgRouter maps routing keys (topics) onto handlers. A message that cannot
// be parsed or has no handler is moved to "<topic>.dlq" and treated as done,
// so a poisoned payload never blocks the partition.
type MsgRouter struct {
	handlers map[pkgtypes.RoutingKey]Handler
	mu       *sync.RWMutex
	dlq      deadLetterer
}

func NewMsgRouter(dlq deadLetterer) *MsgRouter {
	return &MsgRouter{
		handlers: make(map[pkgtypes.RoutingKey]Handler),
		mu:       new(sync.RWMutex),
		dlq:      dlq,
	}
}

func (r *MsgRouter) AddHandler(event pkgtypes.RoutingKey, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = h
}

func (r *MsgRouter) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.handlers))
	for key := range r.handlers {
		topics = append(topics, string(key))
	}
	return topics
}

// Dispatch returns a non-nil error only for handler failures, which the
// consumer turns into a redelivery. Malformed messages are dead-lettered
// and reported as handled.
func (r *MsgRouter) Dispatch(ctx context.Context, topic string, value []byte) error {
	handler, err := r.getHandler(pkgtypes.RoutingKey(topic))
	if err != nil {
		r.deadLetter(topic, value, err)
		return nil
	}

	payload, err := pkgtypes.ParsePayload(value)
	if err != nil {
		r.deadLetter(topic, value, err)
		return nil
	}

	return handler(ctx, payload)
}

func (r *MsgRouter) getHandler(event pkgtypes.RoutingKey) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[event]
	if !ok {
		return nil, fmt.Errorf("handler is missing for %s event type", event)
	}
	return h, nil
}

func (r *MsgRouter) deadLetter(topic string, value []byte, cause error) {
	deadLetteredTotal.WithLabelValues(topic).Inc()
	logrus.WithFields(logrus.Fields{
		"TOPIC": topic,
		"CAUSE": cause,
	}).Warn("Dead-lettering message")

	if err := r.dlq.Publish(topic+".dlq", value); err != nil {
		logrus.Errorf("failed to dead-letter message from %s: %v", topic, err)
	}
}
