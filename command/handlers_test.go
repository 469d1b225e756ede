package command

import (
	"context"
	"errors"
	"testing"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/tasks"
)

type stubRunner struct {
	jobs []core.OrderJob
	err  error
}

func (r *stubRunner) Run(_ context.Context, job core.OrderJob) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

type captureEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (e *captureEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	e.messages = append(e.messages, msg)
	return e.err
}

func validJob() core.OrderJob {
	return core.OrderJob{
		Vendor:     core.VendorShopify,
		ExternalID: "1001",
		Payload:    map[string]any{"id": "1001"},
		SendEmail:  true,
	}
}

func TestProcessOrderCommand(t *testing.T) {
	runner := &stubRunner{}
	cmd := NewProcessOrderCommand(runner)

	if err := cmd.Execute(context.Background(), ProcessOrderMessage{Job: validJob()}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(runner.jobs) != 1 || runner.jobs[0].ExternalID != "1001" {
		t.Fatalf("unexpected runner jobs %+v", runner.jobs)
	}
}

func TestProcessOrderCommand_Validation(t *testing.T) {
	runner := &stubRunner{}
	cmd := NewProcessOrderCommand(runner)

	if err := cmd.Execute(context.Background(), ProcessOrderMessage{}); err == nil {
		t.Fatal("expected validation error for empty message")
	}
	msg := ProcessOrderMessage{Job: core.OrderJob{Vendor: "ebay", ExternalID: "1"}}
	if err := cmd.Execute(context.Background(), msg); err == nil {
		t.Fatal("expected validation error for unknown vendor")
	}
	if len(runner.jobs) != 0 {
		t.Fatal("expected invalid messages not to reach the runner")
	}
}

func TestProcessOrderCommand_PropagatesRunnerError(t *testing.T) {
	wantErr := errors.New("processing failed")
	cmd := NewProcessOrderCommand(&stubRunner{err: wantErr})

	err := cmd.Execute(context.Background(), ProcessOrderMessage{Job: validJob()})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestScheduleOrderCommand(t *testing.T) {
	enqueuer := &captureEnqueuer{}
	cmd := NewScheduleOrderCommand(enqueuer, tasks.EncodeOrderJob)

	if err := cmd.Execute(context.Background(), ScheduleOrderMessage{Job: validJob()}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued message, got %d", len(enqueuer.messages))
	}
	if enqueuer.messages[0].JobID != tasks.OrderJobID {
		t.Fatalf("unexpected job id %q", enqueuer.messages[0].JobID)
	}
}

func TestScheduleOrderCommand_MissingDependencies(t *testing.T) {
	cmd := NewScheduleOrderCommand(nil, nil)
	if err := cmd.Execute(context.Background(), ScheduleOrderMessage{Job: validJob()}); err == nil {
		t.Fatal("expected dependency error")
	}
}
