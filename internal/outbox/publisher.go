package outbox

import (
	"context"
	"fmt"
	"time"

	dbpostgres "github.com/gnd-labs/scooter-saga/pkg/db/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const drainBatchSize = 100

type producer interface {
	Publish(topic string, msg []byte) error
}

type source interface {
	Drain(ctx context.Context, publish func(*Event) error) (int, error)
}

// Publisher drains the service's outbox to the bus on a fixed tick. An event
// that fails to publish stays pending and is retried on the next tick, which
// gives at-least-once publication for every committed state transition.
type Publisher struct {
	source   source
	producer producer
	interval time.Duration
}

func NewPublisher(src source, p producer, interval time.Duration) *Publisher {
	return &Publisher{
		source:   src,
		producer: p,
		interval: interval,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainOnce(ctx)
		}
	}
}

func (p *Publisher) drainOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := p.source.Drain(ctx, func(e *Event) error {
		return p.producer.Publish(e.RoutingKey, e.Payload)
	})
	if err != nil {
		logrus.Errorf("err draining outbox: %v", err)
		return
	}
	if count > 0 {
		logrus.WithField("COUNT", count).Info("OUTBOX:DRAINED")
	}
}

// Drain publishes pending events and marks the published ones produced, all
// inside one transaction over the locked rows.
func (r *EventRepo) Drain(ctx context.Context, publish func(*Event) error) (int, error) {
	return dbpostgres.TxClosure(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		events, err := r.GetAllPending(ctx, tx, drainBatchSize)
		if err != nil {
			return 0, err
		}

		toUpdateIds := []string{}
		for _, e := range events {
			if err := publish(e); err != nil {
				logrus.Errorf("error producing event %s: %v", e.EventID, err)
				continue
			}
			toUpdateIds = append(toUpdateIds, e.EventID)
		}

		rows, err := r.UpdateStatusByIds(ctx, tx, toUpdateIds, EventStatus_Produced)
		if err != nil {
			return 0, err
		}
		if rows != len(toUpdateIds) {
			return 0, fmt.Errorf("updated row count didn't match: %d != %d", rows, len(toUpdateIds))
		}
		return rows, nil
	})
}
