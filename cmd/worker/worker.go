// Package worker runs the stateless evaluation worker pool.
package worker

import (
	"context"
	"net/http"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.calcjobs.dev/calcjobs/cmd/providers"
	"go.calcjobs.dev/calcjobs/pkg/api"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.calcjobs.dev/calcjobs/pkg/publish"
	"go.calcjobs.dev/calcjobs/pkg/worker"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "worker",
	Short: "Run evaluation worker pool.",
	Long: "Runs a pool of consumers that evaluate operation requests\n" +
		"and publish their results.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(cmd, fx.Invoke(Run))
		app.Run()
	},
}

// Worker config keys.
const (
	ConfConcurrency = "worker.concurrency"
	ConfGroup       = "worker.group"
	ConfListen      = "worker.listen_addr"
)

func init() {
	viper.SetDefault(ConfConcurrency, worker.DefaultConcurrency)
	viper.SetDefault(ConfGroup, "operation-request-group")
	viper.SetDefault(ConfListen, ":8081")
}

type workerIn struct {
	fx.In

	Lifecycle      fx.Lifecycle
	Shutdown       fx.Shutdowner
	Config         *sarama.Config
	Producer       sarama.SyncProducer
	Propagator     *kafkatrace.Propagator
	PublishMetrics *publish.Metrics
	Meter          metric.Meter
}

func Run(log *zap.Logger, inputs workerIn) error {
	// Liveness probe beside the metrics listener.
	apiMetrics, err := api.NewMetrics(inputs.Meter)
	if err != nil {
		return err
	}
	sock := providers.MustListen(log, "tcp", viper.GetString(ConfListen))
	providers.LifecycleServe(log, inputs.Lifecycle, sock, providers.HTTPServer{
		Server: &http.Server{Handler: api.HealthRouter(log.Named("http"), apiMetrics)},
	})
	results := publish.NewPublisher(
		inputs.Producer,
		viper.GetString(providers.ConfKafkaResultTopic),
		inputs.Propagator,
		log.Named("publish"),
		inputs.PublishMetrics)
	workerMetrics, err := worker.NewMetrics(inputs.Meter)
	if err != nil {
		return err
	}
	handler := worker.NewHandler(
		results, inputs.Propagator, log.Named("worker"), workerMetrics)
	pool := &worker.Pool{
		Addrs:   viper.GetStringSlice(providers.ConfSaramaAddrs),
		GroupID: viper.GetString(ConfGroup),
		Topics:  []string{viper.GetString(providers.ConfKafkaRequestTopic)},
		Size:    viper.GetInt(ConfConcurrency),
		Config:  inputs.Config,
		Handler: handler,
		Log:     log.Named("pool"),
	}
	innerCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	inputs.Lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer inputs.Shutdown.Shutdown()
				pool.Run(innerCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
	return nil
}
