package providers

import (
	"context"
	"os"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pelletier/go-toml"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sarama config keys.
const (
	ConfSaramaAddrs         = "sarama.addrs"
	ConfSaramaConfigFile    = "sarama.config_file"
	ConfPublishQueueTimeout = "publish.queue_timeout"
)

func init() {
	viper.SetDefault(ConfSaramaAddrs, []string{"127.0.0.1:9092"})
	viper.SetDefault(ConfSaramaConfigFile, "")
	viper.SetDefault(ConfPublishQueueTimeout, 4*time.Second)
}

// NewSaramaConfig builds the shared Kafka client configuration.
// An optional TOML file overlays fine-grained sarama options; the
// settings the services rely on are applied on top of it.
func NewSaramaConfig(log *zap.Logger) (*sarama.Config, error) {
	config := sarama.NewConfig()
	// Since sarama has so many options, it's easiest to read in a file.
	configFilePath := viper.GetString(ConfSaramaConfigFile)
	if configFilePath != "" {
		log.Info("Reading sarama config",
			zap.String(ConfSaramaConfigFile, configFilePath))
		f, err := os.Open(configFilePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dec := toml.NewDecoder(f)
		if err := dec.Decode(config); err != nil {
			return nil, err
		}
	}
	// Record headers need protocol v2.
	config.Version = sarama.V2_0_0_0
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionZSTD
	config.Producer.Return.Successes = true
	config.Producer.Timeout = viper.GetDuration(ConfPublishQueueTimeout)
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	// Offsets are stored explicitly per message and flushed by the
	// periodic auto-commit.
	config.Consumer.Offsets.AutoCommit.Enable = true
	config.MetricRegistry = metrics.DefaultRegistry
	return config, nil
}

func NewSaramaClient(lc fx.Lifecycle, log *zap.Logger, config *sarama.Config) (sarama.Client, error) {
	// Construct client.
	addrs := viper.GetStringSlice(ConfSaramaAddrs)
	log.Info("Connecting to Kafka (sarama)",
		zap.Strings(ConfSaramaAddrs, addrs))
	client, err := sarama.NewClient(addrs, config)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func NewSaramaSyncProducer(
	log *zap.Logger,
	saramaClient sarama.Client,
	lc fx.Lifecycle,
) (sarama.SyncProducer, error) {
	producer, err := sarama.NewSyncProducerFromClient(saramaClient)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Kafka producer")
			return producer.Close()
		},
	})
	return producer, nil
}

// GetSaramaConsumerGroup binds a named consumer group on the shared
// client and closes it with the app.
func GetSaramaConsumerGroup(
	lc fx.Lifecycle,
	log *zap.Logger,
	cl sarama.Client,
	name string,
) (sarama.ConsumerGroup, error) {
	log.Info("Binding to Kafka consumer group",
		zap.String("kafka.consumer_group", name))
	consumerGroup, err := sarama.NewConsumerGroupFromClient(name, cl)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Kafka consumer group client")
			return consumerGroup.Close()
		},
	})
	return consumerGroup, nil
}
