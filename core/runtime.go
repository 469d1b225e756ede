package core

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
)

// Runtime carries the resolved configuration and shared dependencies for
// the receiver. It is assembled once at startup and handed to the
// ingest, processing and task layers.
type Runtime struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	errorFactory   ErrorFactory
	errorMapper    ErrorMapper
	stores         StoreProvider
	enroller       Enroller
	resolver       CourseResolver
	enqueuer       JobEnqueuer
}

func NewRuntime(cfg Config, options ...Option) (*Runtime, error) {
	builder := defaultReceiverBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("webhook-receiver", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("webhook-receiver"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorMapper == nil {
		builder.errorMapper = ReceiverErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, fmt.Errorf("core: load config: %w", err)
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("core: resolve config: %w", err)
	}

	return &Runtime{
		config:         resolved,
		logger:         logger,
		loggerProvider: provider,
		errorFactory:   builder.errorFactory,
		errorMapper:    builder.errorMapper,
		stores:         builder.stores,
		enroller:       builder.enroller,
		resolver:       builder.resolver,
		enqueuer:       builder.enqueuer,
	}, nil
}

func (r *Runtime) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.config
}

func (r *Runtime) Logger() Logger {
	if r == nil {
		return glog.Ensure(nil)
	}
	return r.logger
}

func (r *Runtime) LoggerProvider() LoggerProvider {
	if r == nil {
		return nil
	}
	return r.loggerProvider
}

func (r *Runtime) MapError(err error) error {
	if r == nil || r.errorMapper == nil {
		return err
	}
	if err == nil {
		return nil
	}
	return r.errorMapper(err)
}

func (r *Runtime) Stores() StoreProvider {
	if r == nil {
		return nil
	}
	return r.stores
}

func (r *Runtime) Enroller() Enroller {
	if r == nil {
		return nil
	}
	return r.enroller
}

func (r *Runtime) CourseResolver() CourseResolver {
	if r == nil {
		return nil
	}
	return r.resolver
}

func (r *Runtime) JobEnqueuer() JobEnqueuer {
	if r == nil {
		return nil
	}
	return r.enqueuer
}
