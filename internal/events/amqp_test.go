package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ivanoskov/fincontrol/internal/logger"
	"github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	declareErr error
	publishErr error
	published  []amqp091.Publishing
	keys       []string
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return c.declareErr
	}
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestNewPublisherDeclaresExchange(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "fincontrol", logger.Nop())
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "fincontrol:topic" {
		t.Errorf("declared = %v, want [fincontrol:topic]", ch.declared)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !ch.closed {
		t.Error("Close did not close the channel")
	}
}

func TestNewPublisherDeclareFailure(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	if _, err := newPublisher(ch, "fincontrol", logger.Nop()); err == nil {
		t.Fatal("expected an error when the exchange cannot be declared")
	}
	if !ch.closed {
		t.Error("channel should be closed after a failed declare")
	}
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "fincontrol", logger.Nop())
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	p.now = func() time.Time { return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC) }

	payload := map[string]string{"id": "tx-1", "amount": "150.00"}
	if err := p.Publish(context.Background(), "transaction.created", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	if ch.keys[0] != "fincontrol/transaction.created" {
		t.Errorf("routing = %s", ch.keys[0])
	}
	pub := ch.published[0]
	if pub.ContentType != "application/json" || pub.DeliveryMode != amqp091.Persistent {
		t.Errorf("publishing = %+v", pub)
	}

	msg, err := MessageFromJSON(pub.Body)
	if err != nil {
		t.Fatalf("MessageFromJSON: %v", err)
	}
	if msg.Type != "transaction.created" || !msg.Timestamp.Equal(p.now()) {
		t.Errorf("envelope = %+v", msg)
	}
	var got map[string]string
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got["id"] != "tx-1" || got["amount"] != "150.00" {
		t.Errorf("payload = %v", got)
	}
}

func TestPublishErrors(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "fincontrol", logger.Nop())
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}

	if err := p.Publish(context.Background(), "x", func() {}); err == nil {
		t.Error("expected an error for an unmarshalable payload")
	}

	ch.publishErr = errors.New("channel closed")
	if err := p.Publish(context.Background(), "x", "payload"); err == nil {
		t.Error("expected the channel error to be returned")
	}
}

func TestPublishConcurrent(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "fincontrol", logger.Nop())
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Publish(context.Background(), "invoice.paid", i); err != nil {
				t.Errorf("Publish: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(ch.published) != 20 {
		t.Errorf("published %d messages, want 20", len(ch.published))
	}
}
