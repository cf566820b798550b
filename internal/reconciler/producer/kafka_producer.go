package producer

import (
	"context"
	"encoding/json"

	sharedkafka "github.com/radieske/settlement-engine/internal/shared/kafka"
	"github.com/radieske/settlement-engine/pkg/contracts/events"
)

// KafkaProducer publica os eventos de ciclo de vida do motor em três
// tópicos. Cada writer é dedicado ao seu tópico.
type KafkaProducer struct {
	fixtureFinal     *sharedkafka.Writer
	resultCorrection *sharedkafka.Writer
	wagerSettled     *sharedkafka.Writer
}

func NewKafkaProducer(brokers, topicFinal, topicCorrection, topicSettled string) *KafkaProducer {
	return &KafkaProducer{
		fixtureFinal:     sharedkafka.NewWriter(brokers, topicFinal),
		resultCorrection: sharedkafka.NewWriter(brokers, topicCorrection),
		wagerSettled:     sharedkafka.NewWriter(brokers, topicSettled),
	}
}

func (p *KafkaProducer) PublishFixtureFinal(ctx context.Context, e events.FixtureFinal) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.fixtureFinal, e.FixtureID, payload)
}

func (p *KafkaProducer) PublishResultCorrection(ctx context.Context, e events.ResultCorrection) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.resultCorrection, e.FixtureID, payload)
}

func (p *KafkaProducer) PublishWagerSettled(ctx context.Context, e events.WagerSettled) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.wagerSettled, e.WagerID, payload)
}

func (p *KafkaProducer) Close() error {
	err := p.fixtureFinal.Close()
	if e := p.resultCorrection.Close(); err == nil {
		err = e
	}
	if e := p.wagerSettled.Close(); err == nil {
		err = e
	}
	return err
}
