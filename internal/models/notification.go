package models

// NotificationType identifies the template of an outgoing notification.
type NotificationType string

const (
	NotificationOrderPlaced    NotificationType = "order_placed"
	NotificationOrderReceived  NotificationType = "order_received"
	NotificationOrderConfirmed NotificationType = "order_confirmed"
	NotificationOrderShipped   NotificationType = "order_shipped"
	NotificationOrderDelivered NotificationType = "order_delivered"
	NotificationOrderCanceled  NotificationType = "order_canceled"
)

// Notification is an email-style message handed to the notification sink.
type Notification struct {
	Type      NotificationType  `json:"type"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
