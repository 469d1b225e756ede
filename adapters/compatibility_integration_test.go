package adapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/hastexo/webhook-receiver/adapters/gojob"
	"github.com/hastexo/webhook-receiver/adapters/gologger"
	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/tasks"
)

func TestRuntimeCompatibility_GoJobGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("webhook-receiver", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	msg, err := tasks.EncodeOrderJob(core.OrderJob{
		Vendor:     core.VendorShopify,
		ExternalID: "1001",
		Payload:    map[string]any{"id": float64(1001)},
		SendEmail:  true,
	})
	if err != nil {
		t.Fatalf("encode order job: %v", err)
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != tasks.OrderJobID {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}
	if enqueueProbe.last.IdempotencyKey != msg.IdempotencyKey {
		t.Fatalf("expected idempotency key to survive mapping, got %q", enqueueProbe.last.IdempotencyKey)
	}

	roundTripped := gojob.FromExecutionMessage(enqueueProbe.last)
	decoded, err := tasks.DecodeOrderJob(roundTripped)
	if err != nil {
		t.Fatalf("decode round-tripped job: %v", err)
	}
	if decoded.Vendor != core.VendorShopify || decoded.ExternalID != "1001" || !decoded.SendEmail {
		t.Fatalf("unexpected round-tripped job %+v", decoded)
	}
}

func TestRuntimeCompatibility_DequeuerBridgesDeliveries(t *testing.T) {
	ctx := context.Background()

	msg, err := tasks.EncodeOrderJob(core.OrderJob{
		Vendor:     core.VendorWooCommerce,
		ExternalID: "77",
		Payload:    map[string]any{},
	})
	if err != nil {
		t.Fatalf("encode order job: %v", err)
	}

	stub := &compatDelivery{message: gojob.ToExecutionMessage(msg)}
	dequeuer := gojob.NewDequeuerAdapter(&compatDequeuer{delivery: stub}, gojob.DefaultRetryPolicy())

	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.JobID != tasks.OrderJobID {
		t.Fatalf("expected mapped delivery message, got %+v", got)
	}

	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !stub.acked {
		t.Fatalf("expected ack to reach the underlying delivery")
	}

	if err := delivery.Nack(ctx, core.JobNackOptions{Requeue: true, Delay: -time.Second}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if stub.lastNack.Delay != 0 {
		t.Fatalf("expected negative delay normalized to zero, got %v", stub.lastNack.Delay)
	}
	if !stub.lastNack.Requeue {
		t.Fatalf("expected requeue to survive normalization")
	}
}

func TestRetryPolicy_DeadLettersAtMaxAttempts(t *testing.T) {
	policy := gojob.DefaultRetryPolicy()

	normalized := policy.NormalizeAttempt(core.JobNackOptions{Requeue: true}, policy.MaxAttempts)
	if normalized.Requeue {
		t.Fatalf("expected no requeue at max attempts")
	}
	if !normalized.DeadLetter {
		t.Fatalf("expected dead letter at max attempts")
	}

	normalized = policy.NormalizeAttempt(core.JobNackOptions{}, 1)
	if !normalized.Requeue || normalized.DeadLetter {
		t.Fatalf("expected early attempts to requeue, got %+v", normalized)
	}
}

func TestWorkerHookAdapter_MapsEvents(t *testing.T) {
	hook := &compatHook{}
	adapter := gojob.NewWorkerHookAdapter(hook)

	msg, err := tasks.EncodeOrderJob(core.OrderJob{Vendor: core.VendorShopify, ExternalID: "5"})
	if err != nil {
		t.Fatalf("encode order job: %v", err)
	}

	adapter.OnRetry(context.Background(), workerEvent(gojob.ToExecutionMessage(msg), 2))
	if len(hook.retries) != 1 {
		t.Fatalf("expected one retry event, got %d", len(hook.retries))
	}
	event := hook.retries[0]
	if event.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", event.Attempt)
	}
	if event.Message == nil || event.Message.JobID != tasks.OrderJobID {
		t.Fatalf("expected mapped message in event, got %+v", event.Message)
	}
}

func workerEvent(msg *job.ExecutionMessage, attempt int) worker.Event {
	return worker.Event{
		Message:   msg,
		Attempt:   attempt,
		StartedAt: time.Now(),
	}
}

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatDequeuer struct {
	delivery queue.Delivery
}

func (d *compatDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return d.delivery, nil
}

type compatDelivery struct {
	message  *job.ExecutionMessage
	acked    bool
	lastNack queue.NackOptions
}

func (d *compatDelivery) Message() *job.ExecutionMessage {
	return d.message
}

func (d *compatDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *compatDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.lastNack = opts
	return nil
}

type compatHook struct {
	mu      sync.Mutex
	retries []core.JobWorkerEvent
}

func (h *compatHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *compatHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *compatHook) OnFailure(context.Context, core.JobWorkerEvent) {}

func (h *compatHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, event)
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
