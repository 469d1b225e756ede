package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// InboundRequest is one raw inbound webhook request, transport-agnostic.
// Body carries the exact bytes as received; re-serializing the payload
// before signature verification would invalidate the signature.
type InboundRequest struct {
	Vendor      Vendor
	Headers     map[string]string
	Body        []byte
	ContentType string
	RemoteAddr  string
	Form        map[string]string
	Metadata    map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// InboundHandler processes a verified inbound request for one vendor.
type InboundHandler interface {
	Vendor() Vendor
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

// WebhookStore persists webhook ingest records. Transition commits a
// state change conditionally: the write carries the previously read
// state and fails with ErrStateConflict when the stored state differs.
type WebhookStore interface {
	Create(ctx context.Context, record *WebhookRecord) (*WebhookRecord, error)
	Get(ctx context.Context, id string) (*WebhookRecord, error)
	SetSource(ctx context.Context, id string, source string) error
	SetContent(ctx context.Context, id string, content map[string]any) error
	Transition(ctx context.Context, id string, from State, to State) error
}

// OrderStore persists orders. GetOrCreate races safely: a concurrent
// insert of the same (vendor, external id) resolves to the existing row.
type OrderStore interface {
	GetOrCreate(ctx context.Context, order *Order) (*Order, bool, error)
	Get(ctx context.Context, vendor Vendor, externalID string) (*Order, error)
	Transition(ctx context.Context, id string, from State, to State) error
}

// OrderItemStore persists order line items under the (order, sku, email)
// uniqueness constraint.
type OrderItemStore interface {
	GetOrCreate(ctx context.Context, item *OrderItem) (*OrderItem, bool, error)
	ListForOrder(ctx context.Context, orderID string) ([]*OrderItem, error)
	Transition(ctx context.Context, id string, from State, to State) error
}

// StoreProvider hands out the persistence-layer stores.
type StoreProvider interface {
	WebhookStore() WebhookStore
	OrderStore() OrderStore
	OrderItemStore() OrderItemStore
}

// EnrollOptions mirror the bulk enrollment API request flags.
type EnrollOptions struct {
	AutoEnroll    bool
	EmailStudents bool
}

// Enroller registers a learner, by email, into a course. Implementations
// surface any HTTP 4xx/5xx from the enrollment API as an error.
type Enroller interface {
	Enroll(ctx context.Context, courseID string, email string, opts EnrollOptions) error
}

// CourseResolver maps a SKU to a canonical course identifier. SKUs
// already shaped like a course identifier come back unchanged without a
// network call.
type CourseResolver interface {
	Resolve(ctx context.Context, sku string) (string, error)
}

// LineItemParser extracts the vendor-independent line item shape from one
// raw payload entry.
type LineItemParser interface {
	ParseLineItem(raw map[string]any) (LineItem, error)
}

// OrderJob is one unit of asynchronous work: process a single order
// end-to-end against its originating payload.
type OrderJob struct {
	Vendor     Vendor
	ExternalID string
	Payload    map[string]any
	SendEmail  bool
}

// JobExecutionMessage is the queue-level envelope for an OrderJob.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
