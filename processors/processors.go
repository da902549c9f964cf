package processors

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/brpix/pix-processor/artifacts"
	"github.com/brpix/pix-processor/config/database"
	"github.com/brpix/pix-processor/config/gmail"
	"github.com/brpix/pix-processor/config/kafka"
	"github.com/brpix/pix-processor/config/redis"
	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/scheduler"
	"github.com/brpix/pix-processor/utils"
)

const (
	envEnv                        = "ENV"
	envDatabaseURL                = "DATABASE_URL"
	envDatabaseMaxConnections     = "PIX_DATABASE_MAX_CONNECTIONS"
	envRedisURL                   = "PIX_REDIS_URL"
	envRedisPassword              = "PIX_REDIS_PASSWORD"
	envRedisDB                    = "PIX_REDIS_DB"
	envRedisTLS                   = "PIX_REDIS_TLS"
	envKafkaBootstrapServers      = "PIX_KAFKA_BOOTSTRAP_SERVERS"
	envKafkaChargeEventsTopic     = "PIX_KAFKA_CHARGE_EVENTS_TOPIC"
	envKafkaScramAlgorithm        = "PIX_KAFKA_SCRAM_ALGORITHM"
	envKafkaTLS                   = "PIX_KAFKA_TLS"
	envKafkaUsername              = "PIX_KAFKA_USERNAME"
	envKafkaPassword              = "PIX_KAFKA_PASSWORD"
	envGmailClientID              = "PIX_GMAIL_CLIENT_ID"
	envGmailClientSecret          = "PIX_GMAIL_CLIENT_SECRET"
	envGmailRefreshToken          = "PIX_GMAIL_REFRESH_TOKEN"
	envGmailSender                = "PIX_GMAIL_SENDER"
	envGmailFailedLabelID         = "PIX_GMAIL_FAILED_LABEL_ID"
	envWebhookURL                 = "PIX_WEBHOOK_URL"
	envWebhookSecret              = "PIX_WEBHOOK_SECRET"
	envMerchantKey                = "PIX_MERCHANT_KEY"
	envMerchantName               = "PIX_MERCHANT_NAME"
	envMerchantCity               = "PIX_MERCHANT_CITY"
	envChargeTTL                  = "PIX_CODE_TTL"
	envArtifactDir                = "PIX_QRCODE_DIR"
	envInboxSweepInterval         = "PIX_INBOX_SWEEP_INTERVAL"
	envExpirySweepInterval        = "PIX_EXPIRY_SWEEP_INTERVAL"
	envRetentionSweepInterval     = "PIX_RETENTION_SWEEP_INTERVAL"
)

// Default subject terms of the supported bank notification templates.
var defaultSubjectTerms = []string{"transferência", "Pix", "pagamento"}

type Config struct {
	Logger       *slog.Logger
	UseTelemetry bool
}

// Runtime holds the wired components. The HTTP layer reads the public
// fields; Stop tears everything down in reverse order.
type Runtime struct {
	Logger   *slog.Logger
	Store    *models.ApiStore
	Issuer   *ChargeIssuer
	Renderer *artifacts.Renderer

	scheduler   *scheduler.Scheduler
	db          *database.DB
	offsetStore *models.OffsetStore
}

// Start wires the stores, the mail source, the sweeps and the issuer, and
// launches the scheduler. Any unrecoverable init error panics via
// LogAndPanic, matching a deploy that must not come up half-wired.
func Start(ctx context.Context, config *Config) *Runtime {
	logger := config.Logger

	maxConns, err := utils.GetEnvAsInt(envDatabaseMaxConnections, 20)
	if err != nil {
		utils.LogAndPanic(logger, err, "Error converting max connections into integer")
	}

	db, err := database.NewConnection(database.DBConfig{
		Url:      os.Getenv(envDatabaseURL),
		MaxConns: int32(maxConns),
	})
	if err != nil {
		utils.LogAndPanic(logger, err, "Error connecting to the database")
	}
	store := models.NewApiStore(db)

	chargeTTL, err := utils.GetEnvAsDuration(envChargeTTL, time.Hour)
	if err != nil {
		utils.LogAndPanic(logger, err, "Error parsing the charge TTL")
	}

	offsetStore, err := initOffsetStore(ctx, config, chargeTTL)
	if err != nil {
		utils.LogAndPanic(logger, err, "Error connecting to the offset store")
	}

	var flagger models.OffsetFlagger
	if offsetStore != nil {
		flagger = offsetStore
	}

	renderer, err := artifacts.NewRenderer(utils.GetEnv(envArtifactDir, "public/qrcodes"))
	if err != nil {
		utils.LogAndPanic(logger, err, "Error preparing the artifact directory")
	}

	events := initChargeEventService(ctx, logger)

	issuer := NewChargeIssuer(
		store,
		NewAmountDisambiguator(flagger),
		renderer,
		events,
		IssuerConfig{
			MerchantKey:  os.Getenv(envMerchantKey),
			MerchantName: utils.GetEnv(envMerchantName, "MERCHANT"),
			MerchantCity: utils.GetEnv(envMerchantCity, "CITY"),
			ChargeTTL:    chargeTTL,
		},
		logger,
	)

	mailSource, err := gmail.NewGmailSource(ctx, gmail.GmailConfig{
		ClientID:      os.Getenv(envGmailClientID),
		ClientSecret:  os.Getenv(envGmailClientSecret),
		RefreshToken:  os.Getenv(envGmailRefreshToken),
		Sender:        os.Getenv(envGmailSender),
		SubjectTerms:  defaultSubjectTerms,
		FailedLabelID: os.Getenv(envGmailFailedLabelID),
	})
	if err != nil {
		utils.LogAndPanic(logger, err, "Error connecting to the mail source")
	}

	notifier := NewWebhookNotifier(
		os.Getenv(envWebhookURL),
		os.Getenv(envWebhookSecret),
		store,
		logger,
	)

	reconciler := NewReconciliationService(store, mailSource, notifier, events, renderer, logger)
	expirer := NewExpiryService(store, events, renderer, logger)

	sched := scheduler.New(logger, nil)
	registerSweeps(sched, logger, reconciler, expirer)
	sched.Start(ctx)

	return &Runtime{
		Logger:      logger,
		Store:       store,
		Issuer:      issuer,
		Renderer:    renderer,
		scheduler:   sched,
		db:          db,
		offsetStore: offsetStore,
	}
}

func registerSweeps(sched *scheduler.Scheduler, logger *slog.Logger, reconciler *ReconciliationService, expirer *ExpiryService) {
	inboxInterval, err := utils.GetEnvAsDuration(envInboxSweepInterval, 20*time.Second)
	if err != nil {
		utils.LogAndPanic(logger, err, "Error parsing the inbox sweep interval")
	}
	expiryInterval, err := utils.GetEnvAsDuration(envExpirySweepInterval, time.Hour)
	if err != nil {
		utils.LogAndPanic(logger, err, "Error parsing the expiry sweep interval")
	}
	retentionInterval, err := utils.GetEnvAsDuration(envRetentionSweepInterval, 24*time.Hour)
	if err != nil {
		utils.LogAndPanic(logger, err, "Error parsing the retention sweep interval")
	}

	sched.Every("inbox_sweep", inboxInterval, reconciler.RunInboxSweep)
	sched.Every("expiry_sweep", expiryInterval, expirer.RunExpirySweep)
	// The mailbox may already hold stale messages when the process comes up,
	// so the retention sweep does not wait out its first full interval.
	sched.EveryFromStart("retention_sweep", retentionInterval, reconciler.RunRetentionSweep)
}

func initOffsetStore(ctx context.Context, config *Config, ttl time.Duration) (*models.OffsetStore, error) {
	address := os.Getenv(envRedisURL)
	if address == "" {
		// Without Redis the disambiguator degrades to random offsets.
		return nil, nil
	}

	redisDb, err := utils.GetEnvAsInt(envRedisDB, 0)
	if err != nil {
		return nil, err
	}

	db, err := redis.NewRedisDB(ctx, redis.RedisConfig{
		Address:   address,
		Password:  os.Getenv(envRedisPassword),
		DB:        redisDb,
		UseTracer: config.UseTelemetry,
		UseTLS:    utils.GetEnvAsBool(envRedisTLS, false),
	})
	if err != nil {
		return nil, err
	}

	return models.NewOffsetStore(ctx, db, "settled_amounts", ttl), nil
}

func initChargeEventService(ctx context.Context, logger *slog.Logger) *ChargeEventService {
	brokers := os.Getenv(envKafkaBootstrapServers)
	topic := os.Getenv(envKafkaChargeEventsTopic)
	if brokers == "" || topic == "" {
		return NewChargeEventService(nil, logger)
	}

	serverConfig := kafka.ServerConfig{
		ScramAlgorithm: os.Getenv(envKafkaScramAlgorithm),
		TLS:            utils.GetEnvAsBool(envKafkaTLS, false),
		Servers:        utils.ParseBrokersEnv(brokers),
		UserName:       os.Getenv(envKafkaUsername),
		Password:       os.Getenv(envKafkaPassword),
	}

	producer, err := kafka.NewProducer(serverConfig, &kafka.ProducerConfig{Topic: topic})
	if err != nil {
		utils.LogAndPanic(logger, err, "Error starting the charge events producer")
	}

	if err := producer.Ping(ctx); err != nil {
		utils.LogAndPanic(logger, err, "Error reaching the charge events brokers")
	}

	return NewChargeEventService(producer, logger)
}

// Stop halts the sweeps and releases connections. In-flight sweep runs are
// allowed to finish.
func (r *Runtime) Stop() {
	r.scheduler.Stop()

	if r.offsetStore != nil {
		if err := r.offsetStore.Close(); err != nil {
			r.Logger.Error("error closing offset store", slog.String("error", err.Error()))
		}
	}

	r.db.Close()
}
