package providers

import (
	"context"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/global"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Log is the global logger.
var Log *zap.Logger

// Providers holds constructors for shared components.
var Providers = []interface{}{
	// kafka.go
	NewPropagator,
	NewPublishMetrics,
	// mysql.go
	NewMySQL,
	NewStore,
	// providers.go
	NewContext,
	// sarama.go
	NewSaramaConfig,
	NewSaramaClient,
	NewSaramaSyncProducer,
}

func NewApp(cmd *cobra.Command, opts ...fx.Option) *fx.App {
	metricsHandler, err := SetupPrometheus()
	if err != nil {
		Log.Fatal("Failed to set up Prometheus exporters", zap.Error(err))
	}
	baseOpts := []fx.Option{
		fx.Provide(Providers...),
		fx.Supply(cmd),
		fx.Supply(Log),
		fx.Logger(zap.NewStdLog(Log)),
		fx.Supply(global.GetMeterProvider().Meter(cmd.Name())),
		fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger) {
			ServeMetrics(lc, log, metricsHandler)
		}),
	}
	baseOpts = append(baseOpts, opts...)
	return fx.New(baseOpts...)
}

func NewContext(lc fx.Lifecycle) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
	return ctx
}
