package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/enrollment"
)

type memoryOrderStore struct {
	orders map[string]*core.Order
	nextID int
	gets   int
}

func newMemoryOrderStore() *memoryOrderStore {
	return &memoryOrderStore{orders: map[string]*core.Order{}}
}

func (s *memoryOrderStore) add(vendor core.Vendor, externalID string, status core.State) *core.Order {
	s.nextID++
	order := &core.Order{
		ID:         fmt.Sprintf("order-%d", s.nextID),
		Vendor:     vendor,
		ExternalID: externalID,
		Status:     status,
	}
	s.orders[order.ID] = order
	return order
}

func (s *memoryOrderStore) GetOrCreate(_ context.Context, order *core.Order) (*core.Order, bool, error) {
	for _, existing := range s.orders {
		if existing.Vendor == order.Vendor && existing.ExternalID == order.ExternalID {
			return existing, false, nil
		}
	}
	clone := *order
	s.nextID++
	clone.ID = fmt.Sprintf("order-%d", s.nextID)
	s.orders[clone.ID] = &clone
	return &clone, true, nil
}

func (s *memoryOrderStore) Get(_ context.Context, vendor core.Vendor, externalID string) (*core.Order, error) {
	s.gets++
	for _, existing := range s.orders {
		if existing.Vendor == vendor && existing.ExternalID == externalID {
			clone := *existing
			return &clone, nil
		}
	}
	return nil, core.ErrOrderNotFound
}

func (s *memoryOrderStore) Transition(_ context.Context, id string, from, to core.State) error {
	order, ok := s.orders[id]
	if !ok {
		return core.ErrOrderNotFound
	}
	if order.Status != from {
		return core.ErrStateConflict
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	order.Status = to
	return nil
}

type stubProcessor struct {
	calls   int
	results []error
	onCall  func(ctx context.Context, order *core.Order)
	store   *memoryOrderStore
}

func (p *stubProcessor) ProcessOrder(ctx context.Context, order *core.Order, _ map[string]any, _ bool) (*core.Order, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(ctx, order)
	}
	var err error
	if len(p.results) > 0 {
		err = p.results[0]
		p.results = p.results[1:]
	}
	if err != nil {
		// Mirror the engine: a failing attempt leaves the order
		// claimed in processing.
		if p.store != nil {
			if stored, ok := p.store.orders[order.ID]; ok && stored.Status == core.StateNew {
				stored.Status = core.StateProcessing
			}
		}
		return nil, err
	}
	if p.store != nil {
		if stored, ok := p.store.orders[order.ID]; ok {
			stored.Status = core.StateProcessed
		}
	}
	order.Status = core.StateProcessed
	return order, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newRunnerFixture(t *testing.T, processor *stubProcessor, store *memoryOrderStore) *Runner {
	t.Helper()
	processor.store = store
	runner, err := NewRunner(RunnerConfig{
		Processor:     processor,
		Orders:        store,
		MaxAttempts:   3,
		SoftTimeLimit: 5 * time.Second,
		Sleep:         noSleep,
	})
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}
	return runner
}

func orderJob() core.OrderJob {
	return core.OrderJob{
		Vendor:     core.VendorShopify,
		ExternalID: "1001",
		Payload:    map[string]any{"id": "1001"},
		SendEmail:  true,
	}
}

func TestRunner_Success(t *testing.T) {
	store := newMemoryOrderStore()
	store.add(core.VendorShopify, "1001", core.StateNew)
	processor := &stubProcessor{}
	runner := newRunnerFixture(t, processor, store)

	if err := runner.Run(context.Background(), orderJob()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if processor.calls != 1 {
		t.Fatalf("expected one attempt, got %d", processor.calls)
	}
}

func TestRunner_TransientFailureRetriesThenSucceeds(t *testing.T) {
	store := newMemoryOrderStore()
	order := store.add(core.VendorShopify, "1001", core.StateNew)
	transient := &enrollment.APIError{StatusCode: http.StatusBadGateway, Message: "upstream down"}
	processor := &stubProcessor{results: []error{transient, transient, nil}}
	runner := newRunnerFixture(t, processor, store)

	if err := runner.Run(context.Background(), orderJob()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if processor.calls != 3 {
		t.Fatalf("expected three attempts, got %d", processor.calls)
	}
	if store.orders[order.ID].Status != core.StateProcessed {
		t.Fatalf("expected processed order, got %v", store.orders[order.ID].Status)
	}
}

func TestRunner_RetriesExhaustedMovesOrderToError(t *testing.T) {
	store := newMemoryOrderStore()
	order := store.add(core.VendorShopify, "1001", core.StateNew)
	permanent := &enrollment.APIError{StatusCode: http.StatusBadRequest, Message: "bad course"}
	processor := &stubProcessor{results: []error{permanent, permanent, permanent}}
	runner := newRunnerFixture(t, processor, store)

	err := runner.Run(context.Background(), orderJob())
	if err == nil {
		t.Fatal("expected final failure")
	}
	if processor.calls != 3 {
		t.Fatalf("expected three attempts, got %d", processor.calls)
	}
	if store.orders[order.ID].Status != core.StateError {
		t.Fatalf("expected errored order, got %v", store.orders[order.ID].Status)
	}
}

func TestRunner_NonRetryableFailsImmediately(t *testing.T) {
	store := newMemoryOrderStore()
	order := store.add(core.VendorShopify, "1001", core.StateNew)
	processor := &stubProcessor{results: []error{errors.New("line item has no email")}}
	runner := newRunnerFixture(t, processor, store)

	if err := runner.Run(context.Background(), orderJob()); err == nil {
		t.Fatal("expected failure")
	}
	if processor.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", processor.calls)
	}
	if store.orders[order.ID].Status != core.StateError {
		t.Fatalf("expected errored order, got %v", store.orders[order.ID].Status)
	}
}

func TestRunner_FinalizeRefetchesBeforeErrorWrite(t *testing.T) {
	store := newMemoryOrderStore()
	order := store.add(core.VendorShopify, "1001", core.StateNew)
	failure := errors.New("hard failure")
	processor := &stubProcessor{
		results: []error{failure},
		onCall: func(_ context.Context, _ *core.Order) {
			// Another worker finished the order while this attempt
			// was running. The failure handler must observe that and
			// leave the row alone.
			store.orders[order.ID].Status = core.StateProcessed
		},
	}
	// Disable the stub's own status bookkeeping for this scenario.
	runner := newRunnerFixture(t, processor, store)
	processor.store = nil

	if err := runner.Run(context.Background(), orderJob()); err == nil {
		t.Fatal("expected failure to propagate")
	}
	if store.orders[order.ID].Status != core.StateProcessed {
		t.Fatalf("expected processed order untouched, got %v", store.orders[order.ID].Status)
	}
}

func TestRunner_SoftTimeLimit(t *testing.T) {
	store := newMemoryOrderStore()
	order := store.add(core.VendorShopify, "1001", core.StateNew)
	processor := &stubProcessor{
		results: []error{context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded},
		onCall: func(ctx context.Context, _ *core.Order) {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatal("expected attempt context to carry a deadline")
			}
		},
	}
	runner := newRunnerFixture(t, processor, store)

	if err := runner.Run(context.Background(), orderJob()); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if processor.calls != 3 {
		t.Fatalf("expected timeout to be retried, got %d attempts", processor.calls)
	}
	if store.orders[order.ID].Status != core.StateError {
		t.Fatalf("expected errored order, got %v", store.orders[order.ID].Status)
	}
}

func TestRunner_MissingOrder(t *testing.T) {
	store := newMemoryOrderStore()
	processor := &stubProcessor{}
	runner := newRunnerFixture(t, processor, store)

	err := runner.Run(context.Background(), orderJob())
	if !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
	if processor.calls != 0 {
		t.Fatal("expected no processing attempts")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api 5xx", &enrollment.APIError{StatusCode: http.StatusBadGateway}, true},
		{"api 4xx", &enrollment.APIError{StatusCode: http.StatusBadRequest}, true},
		{"wrapped api", fmt.Errorf("enroll: %w", &enrollment.APIError{StatusCode: 500}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"conflict", core.ErrStateConflict, true},
		{"parse", errors.New("no email property"), false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: Retryable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOrderJobCodec(t *testing.T) {
	job := core.OrderJob{
		Vendor:     core.VendorWooCommerce,
		ExternalID: "9001",
		Payload:    map[string]any{"id": "9001"},
		SendEmail:  true,
	}
	msg, err := EncodeOrderJob(job)
	if err != nil {
		t.Fatalf("EncodeOrderJob() error: %v", err)
	}
	if msg.JobID != OrderJobID {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	if msg.IdempotencyKey == "" {
		t.Fatal("expected an idempotency key")
	}

	decoded, err := DecodeOrderJob(msg)
	if err != nil {
		t.Fatalf("DecodeOrderJob() error: %v", err)
	}
	if decoded.Vendor != job.Vendor || decoded.ExternalID != job.ExternalID || !decoded.SendEmail {
		t.Fatalf("unexpected decoded job %+v", decoded)
	}

	if _, err := EncodeOrderJob(core.OrderJob{Vendor: "ebay", ExternalID: "1"}); err == nil {
		t.Fatal("expected error for unknown vendor")
	}
	if _, err := DecodeOrderJob(&core.JobExecutionMessage{JobID: "other"}); err == nil {
		t.Fatal("expected error for wrong job id")
	}
	if _, err := DecodeOrderJob(nil); err == nil {
		t.Fatal("expected error for nil message")
	}
}
