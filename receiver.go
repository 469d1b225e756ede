package receiver

import "github.com/hastexo/webhook-receiver/core"

type Config = core.Config

type VendorConfig = core.VendorConfig

type EnrollmentConfig = core.EnrollmentConfig

type TasksConfig = core.TasksConfig

type Option = core.Option

type Runtime = core.Runtime

type State = core.State
type Vendor = core.Vendor
type WebhookRecord = core.WebhookRecord
type Order = core.Order
type OrderItem = core.OrderItem
type OrderJob = core.OrderJob

type StoreProvider = core.StoreProvider
type Enroller = core.Enroller
type CourseResolver = core.CourseResolver
type InboundHandler = core.InboundHandler
type InboundRequest = core.InboundRequest
type InboundResult = core.InboundResult

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStores          = core.WithStores
	WithEnroller        = core.WithEnroller
	WithCourseResolver  = core.WithCourseResolver
	WithJobEnqueuer     = core.WithJobEnqueuer
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewRuntime(cfg Config, opts ...Option) (*Runtime, error) {
	return core.NewRuntime(cfg, opts...)
}
