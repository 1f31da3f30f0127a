package queue

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
	"github.com/ltick/tick-soa/utility"
)

var (
	errKafkaInitiate = "queue(kafka): initiate error"
	errKafkaProducer = "queue(kafka): new producer for '%s' error"
	errPublish       = "queue(kafka): publish to '%s' error"
)

type KafkaHandler struct {
	brokers []string
	config  *sarama.Config
}

func NewKafkaHandler() Handler {
	return &KafkaHandler{}
}

func (this *KafkaHandler) Initiate(ctx context.Context, settings *config.Settings) error {
	if settings == nil {
		return errors.Annotate(errors.NotValidf("nil settings"), errKafkaInitiate)
	}
	brokers := utility.SplitTrim(settings.KafkaBrokers, ",")
	if len(brokers) == 0 {
		return errors.Annotate(errors.NotValidf("empty kafka brokers"), errKafkaInitiate)
	}
	this.brokers = brokers
	this.config = sarama.NewConfig()
	this.config.ChannelBufferSize = 2000
	this.config.Producer.Return.Errors = true
	return nil
}

func (this *KafkaHandler) Brokers() []string {
	return this.brokers
}

func (this *KafkaHandler) NewProducer(ctx context.Context, topic string, handle ErrorHandle) (*Producer, error) {
	p, err := sarama.NewAsyncProducer(this.brokers, this.config)
	if err != nil {
		return nil, errors.Annotatef(err, errKafkaProducer, topic)
	}
	return NewProducer(ctx, p, topic, handle), nil
}

// Producer publishes keyed messages to one topic. Delivery failures are
// passed to its ErrorHandle from a background goroutine.
type Producer struct {
	topic    string
	producer sarama.AsyncProducer

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewProducer wraps an already connected producer.
func NewProducer(ctx context.Context, producer sarama.AsyncProducer, topic string, handle ErrorHandle) *Producer {
	if handle == nil {
		handle = func(context.Context, string, string, error) {}
	}
	p := &Producer{
		topic:    topic,
		producer: producer,
		done:     make(chan struct{}),
	}
	go p.startProducerErrorsHandle(ctx, handle)
	return p
}

func (p *Producer) Topic() string {
	return p.topic
}

// Publish enqueues value under key. It returns once the message is handed to
// the producer, not once the broker acknowledged it.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.Annotatef(errors.New("producer closed"), errPublish, p.topic)
	}
	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}
	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return errors.Annotatef(ctx.Err(), errPublish, p.topic)
	}
}

// Close flushes buffered messages and waits for pending errors to be handled.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	err := p.producer.Close()
	<-p.done
	return err
}

func (p *Producer) startProducerErrorsHandle(ctx context.Context, handle ErrorHandle) {
	defer close(p.done)
	for producerErr := range p.producer.Errors() {
		var message []byte
		if producerErr.Msg != nil && producerErr.Msg.Value != nil {
			message, _ = producerErr.Msg.Value.Encode()
		}
		topic := p.topic
		if producerErr.Msg != nil {
			topic = producerErr.Msg.Topic
		}
		handle(ctx, topic, string(message), producerErr.Err)
	}
}
