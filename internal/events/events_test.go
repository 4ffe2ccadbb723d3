package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

var eventTime = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func testOrder() *models.Order {
	return &models.Order{
		ID:     "ord_1",
		UserID: "usr_1",
		Lines:  []models.OrderLine{{ProductID: "prd_1", Name: "Lamp", Quantity: 2, Price: decimal.NewFromInt(20)}},
		Total:  decimal.NewFromInt(49),
		Status: models.OrderStatusProcessing,
	}
}

func decodeEvent(t *testing.T, msg kafka.Message) OrderEvent {
	t.Helper()
	var event OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	return event
}

func TestKafkaPublisher_OrderCreated(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, clock.Fixed{At: eventTime})
	ctx := logging.ContextWithRequestID(context.Background(), "req-7")

	require.NoError(t, p.PublishOrderCreated(ctx, testOrder()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ord_1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("order.created")})

	event := decodeEvent(t, msg)
	assert.Equal(t, EventTypeOrderCreated, event.Type)
	assert.Equal(t, "usr_1", event.UserID)
	assert.Equal(t, "req-7", event.CorrelationID)
	assert.True(t, eventTime.Equal(event.Timestamp))
	assert.NotEmpty(t, event.ID)

	var order models.Order
	require.NoError(t, json.Unmarshal(event.Data, &order))
	assert.Equal(t, "ord_1", order.ID)
}

func TestKafkaPublisher_StatusChangePayload(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, clock.Fixed{At: eventTime})

	require.NoError(t, p.PublishOrderStatusChanged(context.Background(), testOrder(), models.OrderStatusPending))

	cancelled := testOrder()
	cancelled.Status = models.OrderStatusCanceled
	require.NoError(t, p.PublishOrderCancelled(context.Background(), cancelled, models.OrderStatusProcessing))
	require.Len(t, w.msgs, 2)

	changed := decodeEvent(t, w.msgs[0])
	assert.Equal(t, EventTypeOrderStatusChanged, changed.Type)
	var payload statusChange
	require.NoError(t, json.Unmarshal(changed.Data, &payload))
	assert.Equal(t, models.OrderStatusPending, payload.PreviousStatus)
	assert.Equal(t, models.OrderStatusProcessing, payload.NewStatus)

	cancel := decodeEvent(t, w.msgs[1])
	assert.Equal(t, EventTypeOrderCancelled, cancel.Type)
	assert.Empty(t, cancel.CorrelationID)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, clock.System{})

	err := p.PublishOrderCreated(context.Background(), testOrder())
	assert.EqualError(t, err, "leader not available")
}

type queueReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *queueReader) ReadMessage(_ context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *queueReader) Close() error {
	r.closed = true
	return nil
}

type recordingHandler struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	err       error
}

func (h *recordingHandler) HandlePaymentCompleted(_ context.Context, orderID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, orderID)
	return h.err
}

func (h *recordingHandler) HandlePaymentFailed(_ context.Context, orderID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, orderID)
	return h.err
}

func paymentMessage(t *testing.T, eventType PaymentEventType, orderID string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(PaymentEvent{ID: "evt_1", Type: eventType, PaymentID: "pay_1", OrderID: orderID})
	require.NoError(t, err)
	return kafka.Message{Topic: "payments.events", Value: value}
}

func TestKafkaConsumer_DispatchesPaymentEvents(t *testing.T) {
	reader := &queueReader{msgs: []kafka.Message{
		paymentMessage(t, PaymentEventCompleted, "ord_1"),
		paymentMessage(t, PaymentEventFailed, "ord_2"),
		paymentMessage(t, "payment.refunded", "ord_3"),
		paymentMessage(t, PaymentEventCompleted, ""),
		{Value: []byte("not json")},
	}}
	handler := &recordingHandler{}

	err := newKafkaConsumer(reader, handler).Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ord_1"}, handler.completed)
	assert.Equal(t, []string{"ord_2"}, handler.failed)
}

func TestKafkaConsumer_HandlerErrorsDoNotStopConsumption(t *testing.T) {
	reader := &queueReader{msgs: []kafka.Message{
		paymentMessage(t, PaymentEventCompleted, "ord_1"),
		paymentMessage(t, PaymentEventCompleted, "ord_2"),
	}}
	handler := &recordingHandler{err: errors.New("invalid status transition")}

	require.NoError(t, newKafkaConsumer(reader, handler).Start(context.Background()))
	assert.Equal(t, []string{"ord_1", "ord_2"}, handler.completed)
}

func TestKafkaConsumer_Stop(t *testing.T) {
	reader := &queueReader{msgs: []kafka.Message{paymentMessage(t, PaymentEventCompleted, "ord_1")}}
	handler := &recordingHandler{}
	c := newKafkaConsumer(reader, handler)

	c.Stop()
	c.Stop()

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, reader.closed)
	assert.Empty(t, handler.completed)
}

func TestKafkaConsumer_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newKafkaConsumer(&queueReader{}, &recordingHandler{}).Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
