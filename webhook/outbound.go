package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
)

// OutboundMessage is the durable unit of work an OutboundEmitter hands to
// the queue and a delivery worker later reads back off it.
type OutboundMessage struct {
	InternalID string                      `json:"internal_id"`
	Class      connector.WebhookEventClass `json:"class"`
	EmittedAt  time.Time                   `json:"emitted_at"`
}

// MerchantURLResolver looks up the URL a merchant has registered to receive
// outbound webhook deliveries for an internal intent/payout id.
type MerchantURLResolver func(ctx context.Context, internalID string) (url string, err error)

// NewAMQPOutboundEmitter declares a durable queue on ch and returns an
// OutboundEmitter that publishes a persistent message to it, so a webhook
// classified while the merchant's endpoint happens to be down is not lost:
// it stays on the queue until AMQPDeliveryWorker.Run successfully delivers
// and acks it, giving the at-least-once guarantee OutboundEmitter promises
// without coupling classification to one synchronous HTTP POST.
func NewAMQPOutboundEmitter(ch *amqp.Channel, queue string) (OutboundEmitter, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "declare outbound webhook queue").With("queue", queue)
	}

	return func(ctx context.Context, internalID string, class connector.WebhookEventClass) error {
		body, err := json.Marshal(OutboundMessage{InternalID: internalID, Class: class, EmittedAt: time.Now()})
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "encode outbound webhook message")
		}
		err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "publish outbound webhook message").With("queue", queue)
		}
		return nil
	}, nil
}

// AMQPDeliveryWorker drains the outbound webhook queue and POSTs each
// message to the merchant URL resolve returns, acking only on a 2xx
// response so a delivery failure (merchant endpoint down, timeout, 5xx)
// leaves the message on the queue for redelivery rather than dropping it.
type AMQPDeliveryWorker struct {
	ch      *amqp.Channel
	queue   string
	resolve MerchantURLResolver
	client  *http.Client
}

// NewAMQPDeliveryWorker builds a worker that drains queue on ch, resolving
// each message's merchant URL via resolve before delivering it with client.
func NewAMQPDeliveryWorker(ch *amqp.Channel, queue string, resolve MerchantURLResolver, client *http.Client) *AMQPDeliveryWorker {
	return &AMQPDeliveryWorker{ch: ch, queue: queue, resolve: resolve, client: client}
}

// Run consumes deliveries until ctx is canceled or the channel closes.
// Each delivery is handled synchronously so a slow merchant endpoint
// naturally backpressures the queue instead of piling up goroutines.
func (w *AMQPDeliveryWorker) Run(ctx context.Context) error {
	deliveries, err := w.ch.ConsumeWithContext(ctx, w.queue, "", false, false, false, false, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "consume outbound webhook queue").With("queue", w.queue)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := w.deliver(ctx, d.Body); err != nil {
				_ = d.Nack(false, true) // requeue: merchant endpoint unreachable or returned an error status
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (w *AMQPDeliveryWorker) deliver(ctx context.Context, body []byte) error {
	var msg OutboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "decode outbound webhook message")
	}

	url, err := w.resolve(ctx, msg.InternalID)
	if err != nil {
		return err
	}
	if url == "" {
		return nil // merchant hasn't registered a webhook URL; nothing to deliver
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "build outbound webhook delivery request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindConnectorTransient, err, "deliver outbound webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.New(apperr.KindConnectorTransient, "merchant webhook endpoint rejected delivery").With("status_code", strconv.Itoa(resp.StatusCode))
	}
	return nil
}
