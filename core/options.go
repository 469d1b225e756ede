package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type receiverBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	stores          StoreProvider
	enroller        Enroller
	resolver        CourseResolver
	enqueuer        JobEnqueuer
}

type Option func(*receiverBuilder)

func WithLogger(logger Logger) Option {
	return func(b *receiverBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *receiverBuilder) {
		b.loggerProvider = provider
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *receiverBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *receiverBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *receiverBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *receiverBuilder) {
		b.optionsResolver = resolver
	}
}

func WithStores(stores StoreProvider) Option {
	return func(b *receiverBuilder) {
		b.stores = stores
	}
}

func WithEnroller(enroller Enroller) Option {
	return func(b *receiverBuilder) {
		b.enroller = enroller
	}
}

func WithCourseResolver(resolver CourseResolver) Option {
	return func(b *receiverBuilder) {
		b.resolver = resolver
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *receiverBuilder) {
		b.enqueuer = enqueuer
	}
}

func defaultReceiverBuilder(runtime Config) receiverBuilder {
	loggerProvider, logger := glog.Resolve("webhook-receiver", nil, nil)
	return receiverBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		errorFactory:    goerrors.New,
		errorMapper:     ReceiverErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if vendor := vendorToLayerMap(cfg.Shopify, includeZero); len(vendor) > 0 {
		layer["shopify"] = vendor
	}
	if vendor := vendorToLayerMap(cfg.WooCommerce, includeZero); len(vendor) > 0 {
		layer["woocommerce"] = vendor
	}
	enrollment := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Enrollment.LMSBaseURL) != "" {
		enrollment["lms_base_url"] = cfg.Enrollment.LMSBaseURL
	}
	if includeZero || strings.TrimSpace(cfg.Enrollment.APIBaseURL) != "" {
		enrollment["api_base_url"] = cfg.Enrollment.APIBaseURL
	}
	if includeZero || strings.TrimSpace(cfg.Enrollment.OAuthClientID) != "" {
		enrollment["oauth_client_id"] = cfg.Enrollment.OAuthClientID
	}
	if includeZero || strings.TrimSpace(cfg.Enrollment.OAuthClientSecret) != "" {
		enrollment["oauth_client_secret"] = cfg.Enrollment.OAuthClientSecret
	}
	if len(enrollment) > 0 {
		layer["enrollment"] = enrollment
	}
	tasks := map[string]any{}
	if includeZero || cfg.Tasks.MaxAttempts > 0 {
		tasks["max_attempts"] = cfg.Tasks.MaxAttempts
	}
	if includeZero || cfg.Tasks.SoftTimeLimit > 0 {
		tasks["soft_time_limit"] = cfg.Tasks.SoftTimeLimit
	}
	if len(tasks) > 0 {
		layer["tasks"] = tasks
	}
	return layer
}

func vendorToLayerMap(cfg VendorConfig, includeZero bool) map[string]any {
	vendor := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Secret) != "" {
		vendor["secret"] = cfg.Secret
	}
	if includeZero || strings.TrimSpace(cfg.Source) != "" {
		vendor["source"] = cfg.Source
	}
	if includeZero || cfg.SendEmail {
		vendor["send_email"] = cfg.SendEmail
	}
	if includeZero || cfg.RequirePayment {
		vendor["require_payment"] = cfg.RequirePayment
	}
	return vendor
}
