package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"curveStatApp/config"
	"curveStatApp/internal/domain/model"
	"curveStatApp/internal/domain/repository"
	"curveStatApp/internal/domain/service"
	ws "curveStatApp/internal/handlers/websocket"
	redisrepo "curveStatApp/internal/infrastructure/cache"
	"curveStatApp/internal/infrastructure/chain"
	"curveStatApp/internal/infrastructure/metrics"
	"curveStatApp/internal/infrastructure/queue"
	chrepo "curveStatApp/internal/infrastructure/storage"
	"curveStatApp/internal/lib/logger/sl"

	"github.com/google/uuid"
)

const warmStartWindow = time.Hour

// Processor defines the common interface for both standard and Kafka event processors
type Processor interface {
	Run(ctx context.Context) error
}

// AppContext holds all app dependencies
type AppContext struct {
	Config         *config.Config
	Trends         *service.TrendAggregator
	Broadcaster    *ws.WebSocketBroadcaster
	EventProcessor Processor
	// EventCh carries chain events: to the processor in direct mode, to the relay on a
	// Kafka ingest replica.
	EventCh chan *model.CurveEvent

	Chain         *chain.Client
	Relay         *service.EventRelay
	KafkaConsumer *queue.KafkaConsumer
	KafkaProducer *queue.KafkaProducer
	Cache         *redisrepo.RedisRepository
	Publisher     *SnapshotPublisher
	Archive       *chrepo.ClickHouseRepository

	log *slog.Logger
}

// NewApp initializes the app context with all dependencies. Every external system is
// optional: failures are logged and the service starts with what is available.
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*AppContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	curve := strings.ToLower(cfg.CurveAddress)
	app := &AppContext{
		Config:      cfg,
		Trends:      service.NewTrendAggregator(log, cfg.TradeRetention),
		Broadcaster: ws.NewWebSocketBroadcaster(log),
		EventCh:     make(chan *model.CurveEvent, cfg.EventBufferSize),
		log:         log.With(slog.String("component", "app")),
	}
	app.log.Info("configuration loaded", slog.String("curve", curve), slog.String("event_source", cfg.EventSource))

	var archive repository.TradeArchive
	if cfg.ClickhouseAddr != "" {
		repo, err := chrepo.NewClickHouseRepository(ctx, chrepo.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Database: cfg.ClickhouseDatabase,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
			Curve:    curve,
		})
		if err != nil {
			app.log.Warn("ClickHouse unavailable, continuing without trade archive", sl.Err(err))
		} else {
			app.Archive = repo
			archive = repo
			app.log.Info("ClickHouse trade archive initialized")
			if cfg.WarmStart {
				app.warmStart(ctx, repo)
			}
		}
	}

	if cfg.RedisAddr != "" {
		app.Cache = redisrepo.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL)
		if err := app.Cache.Ping(ctx); err != nil {
			app.log.Warn("Redis not reachable yet, snapshots will be retried", sl.Err(err))
		}
		app.Publisher = NewSnapshotPublisher(log, app.Cache, app.Trends, curve, cfg.SnapshotInterval)
		app.log.Info("Redis snapshot cache initialized")
	}

	if cfg.CurveAddress != "" {
		app.setupChain(ctx, log)
	} else {
		app.log.Warn("CURVE_ADDRESS not set, chain ingestion disabled")
	}

	deps := Dependencies{
		Trends:      app.Trends,
		Broadcaster: app.Broadcaster,
		Archive:     archive,
	}

	if cfg.EventSource == config.EventSourceKafka {
		// Every replica reads the whole topic, so each gets a group of its own.
		group := replicaGroup(cfg.KafkaConsumerGroup)
		kafkaConfig := queue.KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: group,
			BatchSize:     cfg.KafkaBatchSize,
			BatchTimeout:  cfg.KafkaBatchTimeout,
		}
		if app.ingestsChain() {
			app.KafkaProducer = queue.NewKafkaProducer(kafkaConfig)
			app.Relay = service.NewEventRelay(log, app.KafkaProducer, curve, cfg.KafkaBatchSize)
		}
		app.KafkaConsumer = queue.NewKafkaConsumer(log, kafkaConfig)
		app.EventProcessor = NewKafkaEventProcessor(log, app.KafkaConsumer, deps)
		app.log.Info("Kafka event source initialized",
			slog.String("topic", cfg.KafkaTopic),
			slog.String("role", cfg.KafkaRole),
			slog.String("group", group),
		)
	} else {
		app.EventProcessor = NewEventProcessor(log, app.EventCh, deps)
		app.log.Info("direct event channel initialized", slog.Int("buffer", cfg.EventBufferSize))
	}

	return app, nil
}

func (a *AppContext) setupChain(ctx context.Context, log *slog.Logger) {
	client, err := chain.NewClient(ctx, log, chain.Options{
		RPCURL:       a.Config.RPCURL,
		CurveAddress: a.Config.CurveAddress,
		PollInterval: a.Config.ChainPollInterval,
		ReadTimeout:  a.Config.ChainReadTimeout,
	})
	if err != nil {
		a.log.Error("chain client unavailable, serving empty stats", sl.Err(err))
		return
	}
	if a.ingestsChain() {
		a.Chain = client
	} else {
		defer client.Close()
	}

	step, price, err := client.ReadCurveState(ctx)
	if err != nil {
		a.log.Warn("failed to read initial curve state", sl.Err(err))
		return
	}
	a.Trends.SeedSnapshot(step, price)
	metrics.SetCurrentStep(step)
	a.log.Info("curve state seeded", slog.Uint64("step", step), slog.String("price", price.String()))
}

// ingestsChain reports whether this replica subscribes to chain logs. Kafka consumer
// replicas only use the RPC endpoint for the startup read.
func (a *AppContext) ingestsChain() bool {
	return a.Config.EventSource != config.EventSourceKafka || a.Config.KafkaRole == config.KafkaRoleIngest
}

func replicaGroup(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// warmStart replays the last hour of archived trades, oldest first, so the ledger keeps
// newest-first order.
func (a *AppContext) warmStart(ctx context.Context, archive repository.TradeArchive) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	trades, err := archive.GetTradesSince(ctx, time.Now().Add(-warmStartWindow), a.Config.TradeRetention)
	if err != nil {
		a.log.Warn("warm start failed, starting with an empty ledger", sl.Err(err))
		return
	}
	for _, t := range trades {
		a.Trends.RecordTrade(*t)
	}
	metrics.SetLedgerSize(a.Trends.TradeCount())
	a.log.Info("ledger warmed from archive", slog.Int("trades", len(trades)))
}

// Start launches the background workers. It returns immediately.
func (a *AppContext) Start(ctx context.Context) {
	go a.run(ctx, "event processor", a.EventProcessor.Run)

	if a.Relay != nil {
		go a.run(ctx, "event relay", func(ctx context.Context) error {
			return a.Relay.Run(ctx, a.EventCh)
		})
	}
	if a.Chain != nil {
		go a.run(ctx, "chain subscription", func(ctx context.Context) error {
			return a.Chain.Subscribe(ctx, a.EventCh)
		})
	}
	if a.Publisher != nil {
		go a.run(ctx, "snapshot publisher", a.Publisher.Run)
	}
}

func (a *AppContext) run(ctx context.Context, name string, fn func(context.Context) error) {
	a.log.Info("starting " + name)
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		a.log.Error(name+" stopped", sl.Err(err))
		return
	}
	a.log.Info(name + " stopped")
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.KafkaConsumer != nil {
		a.log.Info("closing Kafka consumer")
		if err := a.KafkaConsumer.Close(); err != nil {
			a.log.Error("failed to close Kafka consumer", sl.Err(err))
		}
	}

	if a.KafkaProducer != nil {
		a.log.Info("closing Kafka producer")
		if err := a.KafkaProducer.Close(); err != nil {
			a.log.Error("failed to close Kafka producer", sl.Err(err))
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.log.Error("failed to close Redis client", sl.Err(err))
		}
	}

	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.log.Error("failed to close ClickHouse connection", sl.Err(err))
		}
	}

	if a.Chain != nil {
		a.Chain.Close()
	}

	a.Broadcaster.Close()

	a.log.Info("all resources cleaned up")
}
