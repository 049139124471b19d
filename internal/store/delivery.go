package store

// Delivery states. A delivery moves pending -> retry* -> delivered, or to
// failed once the worker gives up and dead-letters it.
const (
    DeliveryPending   = "pending"
    DeliveryRetry     = "retry"
    DeliveryDelivered = "delivered"
    DeliveryFailed    = "failed"
)

// WebhookDelivery is one queued attempt to POST an event to a subscriber.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string // solution.completed, solution.failed
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
}
