// Package api runs the HTTP front door together with the result sink.
package api

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
	"go.calcjobs.dev/calcjobs/pkg/reporter"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.calcjobs.dev/calcjobs/pkg/submit"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "api",
	Short: "Run job submission API.",
	Long: "Runs the HTTP API for submitting, inspecting and deleting jobs,\n" +
		"and the consumer that merges evaluated results back into the store.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(cmd, fx.Invoke(Run))
		app.Run()
	},
}

// API config keys.
const (
	ConfListen        = "api.listen_addr"
	ConfChunkSize     = "submit.chunk_size"
	ConfReporterGroup = "reporter.group"
)

func init() {
	viper.SetDefault(ConfListen, ":8080")
	viper.SetDefault(ConfChunkSize, submit.DefaultChunkSize)
	viper.SetDefault(ConfReporterGroup, "operation-result-group")
}

type apiIn struct {
	fx.In

	Lifecycle      fx.Lifecycle
	Shutdown       fx.Shutdowner
	Store          *store.Store
	Client         sarama.Client
	Producer       sarama.SyncProducer
	Propagator     *kafkatrace.Propagator
	PublishMetrics *publish.Metrics
	Meter          metric.Meter
}

func Run(log *zap.Logger, inputs apiIn) error {
	// Submission pipeline feeding the request topic.
	requests := publish.NewPublisher(
		inputs.Producer,
		viper.GetString(providers.ConfKafkaRequestTopic),
		inputs.Propagator,
		log.Named("publish"),
		inputs.PublishMetrics)
	pipeline := &submit.Pipeline{
		Store:     inputs.Store,
		Requests:  requests,
		ChunkSize: viper.GetInt(ConfChunkSize),
		Log:       log.Named("submit"),
	}
	// HTTP server.
	apiMetrics, err := api.NewMetrics(inputs.Meter)
	if err != nil {
		return err
	}
	server := &api.Server{
		Reader:    inputs.Store,
		Submitter: pipeline,
		Log:       log.Named("api"),
		Metrics:   apiMetrics,
	}
	sock := providers.MustListen(log, "tcp", viper.GetString(ConfListen))
	providers.LifecycleServe(log, inputs.Lifecycle, sock,
		providers.HTTPServer{Server: &http.Server{Handler: server.Router()}})
	// Result sink consumer group.
	consumerGroup, err := providers.GetSaramaConsumerGroup(
		inputs.Lifecycle, log, inputs.Client, viper.GetString(ConfReporterGroup))
	if err != nil {
		return err
	}
	reporterMetrics, err := reporter.NewMetrics(inputs.Meter)
	if err != nil {
		return err
	}
	sink := reporter.NewWorker(
		inputs.Store, inputs.Propagator, log.Named("reporter"), reporterMetrics)
	topics := []string{viper.GetString(providers.ConfKafkaResultTopic)}
	innerCtx, cancel := context.WithCancel(context.Background())
	run := func() {
		defer inputs.Shutdown.Shutdown()
		for innerCtx.Err() == nil {
			// Consume returns on rebalance; that is not an error.
			if err := consumerGroup.Consume(innerCtx, topics, sink); err != nil {
				log.Error("Consumer group exited", zap.Error(err))
				return
			}
		}
	}
	var wg sync.WaitGroup
	inputs.Lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				run()
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
