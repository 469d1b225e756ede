package receiver

import (
	"fmt"

	receivercommand "github.com/hastexo/webhook-receiver/command"
	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/inbound"
	"github.com/hastexo/webhook-receiver/processing"
	"github.com/hastexo/webhook-receiver/providers/shopify"
	"github.com/hastexo/webhook-receiver/providers/woocommerce"
	"github.com/hastexo/webhook-receiver/tasks"
	"github.com/hastexo/webhook-receiver/webhooks"
)

type Commands struct {
	ProcessOrder  *receivercommand.ProcessOrderCommand
	ScheduleOrder *receivercommand.ScheduleOrderCommand
}

// Receiver is the assembled webhook receiver: the inbound dispatcher
// with both vendor handlers registered, the order processing engine, and
// the task runner that drives it. Build one per process with NewReceiver.
type Receiver struct {
	runtime    *Runtime
	ingest     *webhooks.IngestService
	dispatcher *inbound.Dispatcher
	engine     *processing.Engine
	runner     *tasks.Runner
	worker     *tasks.Worker
	commands   Commands
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	dequeuer core.JobDequeuer
	hook     core.JobWorkerHook
}

// WithDequeuer attaches a queue consumer; without one the receiver can
// schedule jobs but NewReceiver builds no worker.
func WithDequeuer(dequeuer core.JobDequeuer) FacadeOption {
	return func(options *facadeOptions) {
		options.dequeuer = dequeuer
	}
}

func WithWorkerHook(hook core.JobWorkerHook) FacadeOption {
	return func(options *facadeOptions) {
		options.hook = hook
	}
}

func NewReceiver(runtime *Runtime, opts ...FacadeOption) (*Receiver, error) {
	if runtime == nil {
		return nil, fmt.Errorf("receiver: runtime is required")
	}
	stores := runtime.Stores()
	if stores == nil {
		return nil, fmt.Errorf("receiver: store provider is required")
	}
	enroller := runtime.Enroller()
	if enroller == nil {
		return nil, fmt.Errorf("receiver: enroller is required")
	}
	resolver := runtime.CourseResolver()
	if resolver == nil {
		return nil, fmt.Errorf("receiver: course resolver is required")
	}
	enqueuer := runtime.JobEnqueuer()
	if enqueuer == nil {
		return nil, fmt.Errorf("receiver: job enqueuer is required")
	}

	options := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	cfg := runtime.Config()
	logger := runtime.Logger()

	ingest := webhooks.NewIngestService(stores.WebhookStore(), logger)

	shopifyHandler, err := shopify.NewHandler(shopify.HandlerConfig{
		Config:   cfg.Shopify,
		Ingest:   ingest,
		Orders:   stores.OrderStore(),
		Enqueuer: enqueuer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	wooHandler, err := woocommerce.NewHandler(woocommerce.HandlerConfig{
		Config:   cfg.WooCommerce,
		Ingest:   ingest,
		Orders:   stores.OrderStore(),
		Enqueuer: enqueuer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	dispatcher := inbound.NewDispatcher(logger)
	if err := dispatcher.Register(shopifyHandler); err != nil {
		return nil, err
	}
	if err := dispatcher.Register(wooHandler); err != nil {
		return nil, err
	}

	engine, err := processing.NewEngine(processing.EngineConfig{
		Orders:   stores.OrderStore(),
		Items:    stores.OrderItemStore(),
		Resolver: resolver,
		Enroller: enroller,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	engine.RegisterParser(shopify.VendorID, shopify.LineItemParser{})
	engine.RegisterParser(woocommerce.VendorID, woocommerce.LineItemParser{Logger: logger})

	runner, err := tasks.NewRunner(tasks.RunnerConfig{
		Processor:     engine,
		Orders:        stores.OrderStore(),
		MaxAttempts:   cfg.Tasks.MaxAttempts,
		SoftTimeLimit: cfg.Tasks.SoftTimeLimit,
		Logger:        logger,
		Hook:          options.hook,
	})
	if err != nil {
		return nil, err
	}

	var worker *tasks.Worker
	if options.dequeuer != nil {
		worker, err = tasks.NewWorker(tasks.WorkerConfig{
			Dequeuer: options.dequeuer,
			Runner:   runner,
			Logger:   logger,
			Hook:     options.hook,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Receiver{
		runtime:    runtime,
		ingest:     ingest,
		dispatcher: dispatcher,
		engine:     engine,
		runner:     runner,
		worker:     worker,
		commands: Commands{
			ProcessOrder:  receivercommand.NewProcessOrderCommand(runner),
			ScheduleOrder: receivercommand.NewScheduleOrderCommand(enqueuer, tasks.EncodeOrderJob),
		},
	}, nil
}

func (r *Receiver) Runtime() *Runtime {
	if r == nil {
		return nil
	}
	return r.runtime
}

func (r *Receiver) Dispatcher() *inbound.Dispatcher {
	if r == nil {
		return nil
	}
	return r.dispatcher
}

// HTTPHandler returns an http.Handler serving POST /webhooks/{vendor}.
func (r *Receiver) HTTPHandler() *inbound.HTTPHandler {
	if r == nil {
		return nil
	}
	return inbound.NewHTTPHandler(r.dispatcher)
}

func (r *Receiver) Engine() *processing.Engine {
	if r == nil {
		return nil
	}
	return r.engine
}

func (r *Receiver) Runner() *tasks.Runner {
	if r == nil {
		return nil
	}
	return r.runner
}

// Worker returns the queue consumer, or nil when no dequeuer was given.
func (r *Receiver) Worker() *tasks.Worker {
	if r == nil {
		return nil
	}
	return r.worker
}

func (r *Receiver) Commands() Commands {
	if r == nil {
		return Commands{}
	}
	return r.commands
}
