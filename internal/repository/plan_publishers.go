package repository

import (
	"context"
	"fmt"

	"StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
	pkgkafka "StratEngine/pkg/kafka"
	"StratEngine/pkg/queue"
)

// Message types used on the plan queue and as Kafka msg_type headers.
const (
	MsgTypePlan = "strat.plan"
	MsgTypeExit = "strat.exit"
)

// KafkaPlanPublisher implements PlanSink for Kafka. Messages are keyed by
// symbol so a consumer sees one symbol's plans in order.
type KafkaPlanPublisher struct {
	producer  *pkgkafka.Producer
	planTopic string
	exitTopic string
}

var _ domrepo.PlanSink = (*KafkaPlanPublisher)(nil)

// NewKafkaPlanPublisher creates the Kafka sink. An empty exitTopic sends exits to planTopic.
func NewKafkaPlanPublisher(producer *pkgkafka.Producer, planTopic, exitTopic string) *KafkaPlanPublisher {
	if exitTopic == "" {
		exitTopic = planTopic
	}
	return &KafkaPlanPublisher{producer: producer, planTopic: planTopic, exitTopic: exitTopic}
}

func (p *KafkaPlanPublisher) PublishPlan(ctx context.Context, plan *models.TradePlan) error {
	if plan == nil {
		return nil
	}
	if err := p.producer.Send(ctx, p.planTopic, pkgkafka.Record{Key: []byte(plan.Symbol), Type: MsgTypePlan, Value: plan}); err != nil {
		return fmt.Errorf("publish plan %s: %w", plan.ID, err)
	}
	return nil
}

func (p *KafkaPlanPublisher) PublishExit(ctx context.Context, e *models.ExitSignal) error {
	if e == nil {
		return nil
	}
	if err := p.producer.Send(ctx, p.exitTopic, pkgkafka.Record{Key: []byte(e.Symbol), Type: MsgTypeExit, Value: e}); err != nil {
		return fmt.Errorf("publish exit %s: %w", e.Symbol, err)
	}
	return nil
}

func (p *KafkaPlanPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// RedisPlanQueue implements PlanSink on a Redis list.
type RedisPlanQueue struct {
	q queue.QueueService
}

var _ domrepo.PlanSink = (*RedisPlanQueue)(nil)

func NewRedisPlanQueue(q queue.QueueService) *RedisPlanQueue {
	return &RedisPlanQueue{q: q}
}

func (r *RedisPlanQueue) PublishPlan(ctx context.Context, plan *models.TradePlan) error {
	if plan == nil {
		return nil
	}
	return r.q.PublishMessage(ctx, MsgTypePlan, plan)
}

func (r *RedisPlanQueue) PublishExit(ctx context.Context, e *models.ExitSignal) error {
	if e == nil {
		return nil
	}
	return r.q.PublishMessage(ctx, MsgTypeExit, e)
}

func (r *RedisPlanQueue) Close() error { return nil }
