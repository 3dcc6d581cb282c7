package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/procflow/internal/config"
	"github.com/example/procflow/internal/db"
	httpserver "github.com/example/procflow/internal/http"
	"github.com/example/procflow/internal/lifecycle"
	"github.com/example/procflow/internal/metrics"
	"github.com/example/procflow/internal/models"
	"github.com/example/procflow/internal/mq"
	"github.com/example/procflow/internal/notify"
	"github.com/example/procflow/internal/repository"
	"github.com/example/procflow/internal/service"
	"github.com/example/procflow/internal/sla"
	"github.com/example/procflow/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	database, err := db.New(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	autoMigrate(database, logger)

	var publisher mq.Publisher
	publisher, err = mq.NewRabbitPublisher(cfg.MQURL, cfg.MQExchange, logger)
	if err != nil {
		logger.Warnf("rabbitmq unavailable (%v), continuing without events", err)
		publisher = nil
	}
	var consumer mq.Consumer
	if publisher != nil {
		consumer = startEventLog(cfg, logger)
	}

	policy := buildPolicy(cfg)
	machine := lifecycle.NewMachine(policy.Limits)
	evaluator := sla.NewEvaluator(policy)

	requestRepo := repository.NewRequestRepository(database)
	snapshots := snapshotStore(cfg, database, logger)
	aggregator := metrics.NewAggregator(requestRepo, snapshots, evaluator, cfg.SnapshotFreshness, logger)

	procurement := service.NewProcurementService(database, requestRepo, machine, evaluator, aggregator, publisher, logger)
	apiServer := httpserver.NewServer(requestRepo, procurement)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	webhook := notify.NewWebhookClient(cfg.AlertWebhookURL)
	monitor := worker.NewSLAMonitor(procurement, webhook, cfg.MonitorInterval, logger)
	go monitor.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}

	if consumer != nil {
		_ = consumer.Close()
	}
	if publisher != nil {
		if closer, ok := publisher.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	logger.Info("bye")
}

// startEventLog binds the request.* queue and journals every event the
// service emits, so deployments get an audit trail of stage movement
// without a dedicated downstream consumer.
func startEventLog(cfg config.Config, logger *logrus.Logger) mq.Consumer {
	consumer, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQExchange, cfg.MQQueue, logger)
	if err != nil {
		logger.Warnf("rabbitmq consumer unavailable: %v", err)
		return nil
	}
	err = consumer.Consume(func(msg amqp091.Delivery) {
		logger.WithFields(logrus.Fields{
			"routing_key": msg.RoutingKey,
			"payload":     string(msg.Body),
		}).Info("request event")
		if err := msg.Ack(false); err != nil {
			logger.Warnf("ack event: %v", err)
		}
	})
	if err != nil {
		logger.Warnf("start event log: %v", err)
		_ = consumer.Close()
		return nil
	}
	return consumer
}

func autoMigrate(database *gorm.DB, logger *logrus.Logger) {
	if err := database.AutoMigrate(&models.Request{}, &models.MetricSnapshot{}); err != nil {
		logger.Fatalf("auto migrate: %v", err)
	}
}

func buildPolicy(cfg config.Config) sla.Policy {
	policy := sla.DefaultPolicy()
	policy.Days = map[models.Priority]int{
		models.PriorityUrgent: cfg.SLAUrgentDays,
		models.PriorityHigh:   cfg.SLAHighDays,
		models.PriorityNormal: cfg.SLANormalDays,
		models.PriorityLow:    cfg.SLALowDays,
	}
	policy.DefaultDays = cfg.SLANormalDays
	policy.Limits = sla.ApprovalLimits{Manager: cfg.ManagerLimit, Director: cfg.DirectorLimit}
	policy.BusinessDays = cfg.BusinessDays
	return policy
}

// snapshotStore picks the metric cache backend: Redis when configured,
// otherwise the relational database.
func snapshotStore(cfg config.Config, database *gorm.DB, logger *logrus.Logger) metrics.SnapshotStore {
	if cfg.RedisAddr == "" {
		return repository.NewSnapshotRepository(database)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Infof("metric snapshots cached in redis at %s", cfg.RedisAddr)
	return metrics.NewRedisStore(client)
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
