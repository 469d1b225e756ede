package receiver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/providers/shopify"
	"github.com/hastexo/webhook-receiver/tasks"
	"github.com/hastexo/webhook-receiver/webhooks"
)

type memoryStores struct {
	webhooks *memoryWebhookStore
	orders   *memoryOrderStore
	items    *memoryOrderItemStore
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		webhooks: &memoryWebhookStore{records: map[string]*core.WebhookRecord{}},
		orders:   &memoryOrderStore{orders: map[string]*core.Order{}},
		items:    &memoryOrderItemStore{items: map[string]*core.OrderItem{}},
	}
}

func (s *memoryStores) WebhookStore() core.WebhookStore     { return s.webhooks }
func (s *memoryStores) OrderStore() core.OrderStore         { return s.orders }
func (s *memoryStores) OrderItemStore() core.OrderItemStore { return s.items }

type memoryWebhookStore struct {
	mu      sync.Mutex
	records map[string]*core.WebhookRecord
}

func (s *memoryWebhookStore) Create(_ context.Context, record *core.WebhookRecord) (*core.WebhookRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	s.records[copied.ID] = &copied
	return &copied, nil
}

func (s *memoryWebhookStore) Get(_ context.Context, id string) (*core.WebhookRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, core.ErrWebhookNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *memoryWebhookStore) SetSource(_ context.Context, id string, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return core.ErrWebhookNotFound
	}
	record.Source = source
	return nil
}

func (s *memoryWebhookStore) SetContent(_ context.Context, id string, content map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return core.ErrWebhookNotFound
	}
	record.Content = content
	return nil
}

func (s *memoryWebhookStore) Transition(_ context.Context, id string, from core.State, to core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return core.ErrWebhookNotFound
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	if record.Status != from {
		return core.ErrStateConflict
	}
	record.Status = to
	return nil
}

type memoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*core.Order
}

func (s *memoryOrderStore) GetOrCreate(_ context.Context, order *core.Order) (*core.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.Vendor == order.Vendor && existing.ExternalID == order.ExternalID {
			copied := *existing
			return &copied, false, nil
		}
	}
	copied := *order
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	s.orders[copied.ID] = &copied
	result := copied
	return &result, true, nil
}

func (s *memoryOrderStore) Get(_ context.Context, vendor core.Vendor, externalID string) (*core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.Vendor == vendor && existing.ExternalID == externalID {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: %s order %s", core.ErrOrderNotFound, vendor, externalID)
}

func (s *memoryOrderStore) Transition(_ context.Context, id string, from core.State, to core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return core.ErrOrderNotFound
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	if order.Status != from {
		return core.ErrStateConflict
	}
	order.Status = to
	return nil
}

type memoryOrderItemStore struct {
	mu    sync.Mutex
	items map[string]*core.OrderItem
}

func (s *memoryOrderItemStore) GetOrCreate(_ context.Context, item *core.OrderItem) (*core.OrderItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Email == "" {
		return nil, false, fmt.Errorf("order item email is required")
	}
	for _, existing := range s.items {
		if existing.OrderID == item.OrderID && existing.SKU == item.SKU && existing.Email == item.Email {
			copied := *existing
			return &copied, false, nil
		}
	}
	copied := *item
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	s.items[copied.ID] = &copied
	result := copied
	return &result, true, nil
}

func (s *memoryOrderItemStore) ListForOrder(_ context.Context, orderID string) ([]*core.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.OrderItem
	for _, existing := range s.items {
		if existing.OrderID == orderID {
			copied := *existing
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryOrderItemStore) Transition(_ context.Context, id string, from core.State, to core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return core.ErrOrderItemNotFound
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	if item.Status != from {
		return core.ErrStateConflict
	}
	item.Status = to
	return nil
}

type recordingEnroller struct {
	mu          sync.Mutex
	enrollments []string
}

func (e *recordingEnroller) Enroll(_ context.Context, courseID string, email string, _ core.EnrollOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enrollments = append(e.enrollments, courseID+"|"+email)
	return nil
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(_ context.Context, sku string) (string, error) {
	return sku, nil
}

type captureEnqueuer struct {
	mu       sync.Mutex
	messages []*core.JobExecutionMessage
}

func (e *captureEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
	return nil
}

func newTestReceiver(t *testing.T) (*Receiver, *memoryStores, *recordingEnroller, *captureEnqueuer) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Shopify.Secret = "shopify-secret"
	cfg.Shopify.Source = "shop.example.com"

	stores := newMemoryStores()
	enroller := &recordingEnroller{}
	enqueuer := &captureEnqueuer{}

	runtime, err := NewRuntime(cfg,
		WithStores(stores),
		WithEnroller(enroller),
		WithCourseResolver(passthroughResolver{}),
		WithJobEnqueuer(enqueuer),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	rcv, err := NewReceiver(runtime)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	return rcv, stores, enroller, enqueuer
}

func TestReceiver_EndToEndShopifyOrder(t *testing.T) {
	rcv, stores, enroller, enqueuer := newTestReceiver(t)
	ctx := context.Background()

	body := []byte(`{
		"id": 1001,
		"customer": {"email": "learner@example.com", "first_name": "Ada", "last_name": "Lovelace"},
		"line_items": [
			{"sku": "course-v1:org+course+run", "properties": [{"name": "email", "value": "learner@example.com"}]}
		]
	}`)

	result, err := rcv.Dispatcher().Dispatch(ctx, core.InboundRequest{
		Vendor: core.VendorShopify,
		Headers: map[string]string{
			shopify.HeaderShopDomain: "shop.example.com",
			shopify.HeaderSignature:  webhooks.Digest("shopify-secret", body),
		},
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}

	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one scheduled job, got %d", len(enqueuer.messages))
	}
	job, err := tasks.DecodeOrderJob(enqueuer.messages[0])
	if err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Vendor != core.VendorShopify || job.ExternalID != "1001" {
		t.Fatalf("unexpected job %+v", job)
	}

	if err := rcv.Runner().Run(ctx, job); err != nil {
		t.Fatalf("run job: %v", err)
	}

	order, err := stores.orders.Get(ctx, core.VendorShopify, "1001")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != core.StateProcessed {
		t.Fatalf("expected processed order, got %s", order.Status)
	}
	if len(enroller.enrollments) != 1 || enroller.enrollments[0] != "course-v1:org+course+run|learner@example.com" {
		t.Fatalf("unexpected enrollments %+v", enroller.enrollments)
	}
}

func TestReceiver_ReplayDoesNotRescheduleOrReenroll(t *testing.T) {
	rcv, _, enroller, enqueuer := newTestReceiver(t)
	ctx := context.Background()

	body := []byte(`{
		"id": 1001,
		"customer": {"email": "learner@example.com"},
		"line_items": [
			{"sku": "course-v1:org+course+run", "properties": [{"name": "email", "value": "learner@example.com"}]}
		]
	}`)
	req := core.InboundRequest{
		Vendor: core.VendorShopify,
		Headers: map[string]string{
			shopify.HeaderShopDomain: "shop.example.com",
			shopify.HeaderSignature:  webhooks.Digest("shopify-secret", body),
		},
		Body:        body,
		ContentType: "application/json",
	}

	if _, err := rcv.Dispatcher().Dispatch(ctx, req); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	job, err := tasks.DecodeOrderJob(enqueuer.messages[0])
	if err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if err := rcv.Runner().Run(ctx, job); err != nil {
		t.Fatalf("run job: %v", err)
	}

	result, err := rcv.Dispatcher().Dispatch(ctx, req)
	if err != nil {
		t.Fatalf("replay dispatch: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected replay to answer 200, got %d", result.StatusCode)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected no second job, got %d", len(enqueuer.messages))
	}
	if len(enroller.enrollments) != 1 {
		t.Fatalf("expected one enrollment, got %d", len(enroller.enrollments))
	}
}

func TestNewReceiver_RequiresCollaborators(t *testing.T) {
	cfg := DefaultConfig()
	runtime, err := NewRuntime(cfg, WithStores(newMemoryStores()))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if _, err := NewReceiver(runtime); err == nil {
		t.Fatal("expected missing enroller to fail")
	}
}

func TestReceiver_WorkerOnlyWithDequeuer(t *testing.T) {
	rcv, _, _, _ := newTestReceiver(t)
	if rcv.Worker() != nil {
		t.Fatal("expected no worker without a dequeuer")
	}
	if rcv.HTTPHandler() == nil {
		t.Fatal("expected http handler")
	}
}
