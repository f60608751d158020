package config

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shipabox/shipment-saga/orchestrator-service/application"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/orchestrator-service/handlers"
	"github.com/shipabox/shipment-saga/orchestrator-service/infrastructure"
	"github.com/shipabox/shipment-saga/shared/events"
	sharedinfra "github.com/shipabox/shipment-saga/shared/infrastructure"
	"github.com/shipabox/shipment-saga/shared/logging"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.uber.org/zap"
)

// SubscriptionPattern is the topic pattern the orchestrator consumes
const SubscriptionPattern = "shipabox.#"

type Dependencies struct {
	// Telemetry
	Telemetry         *telemetry.Telemetry
	telemetryShutdown func()

	// Storage
	DB          *sqlx.DB
	RedisClient redis.UniversalClient
	Store       domain.InstanceStore
	Journal     events.EventStore

	// Transport
	EventPublisher  events.Publisher
	EventSubscriber events.Subscriber
	snsPublisher    *sharedinfra.SNSPublisherAdapter
	sqsSubscriber   *sharedinfra.SQSSubscriberAdapter

	// Use Cases
	Workflow           *domain.Workflow
	Orchestrator       *application.Orchestrator
	DropBox            *application.DropBox
	GetShipment        *application.GetShipment
	ListShipments      *application.ListShipments
	FindStaleShipments *application.FindStaleShipments
	GetShipmentHistory *application.GetShipmentHistory
	ListFaults         *application.ListFaults
	StaleMonitor       *application.StaleMonitor

	// HTTP Handlers
	ShipmentHandlers *handlers.ShipmentHandlers

	// Event Handlers
	ShipmentEventHandler *handlers.ShipmentEventHandler
}

// BuildDependencies wires every component selected by config
func BuildDependencies(ctx context.Context, config *Config, logger *zap.Logger) (*Dependencies, error) {
	logger = logging.OrNop(logger)
	deps := &Dependencies{}
	built := false
	defer func() {
		if !built {
			deps.Close(context.Background())
		}
	}()

	if config.Telemetry.Enabled {
		telConfig := telemetry.OrchestratorServiceConfig.
			WithServiceName(config.ServiceName).
			WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, shutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize telemetry")
		}
		deps.Telemetry = tel
		deps.telemetryShutdown = shutdown
	}

	if config.NeedsDatabase() {
		db, err := OpenDatabase(ctx, config)
		if err != nil {
			return nil, err
		}
		deps.DB = db
	}

	if err := deps.buildStorage(ctx, config); err != nil {
		return nil, err
	}
	if err := deps.buildTransport(ctx, config, logger); err != nil {
		return nil, err
	}

	policy, err := domain.ParsePolicy(config.Dispatch.Policy)
	if err != nil {
		return nil, err
	}
	workflow, err := domain.NewWorkflow(policy)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build workflow")
	}
	deps.Workflow = workflow

	// Initialize use cases
	deps.Orchestrator = application.NewOrchestrator(workflow, deps.Store, deps.EventPublisher,
		application.WithJournal(deps.Journal),
		application.WithLogger(logger.Named("orchestrator")),
		application.WithMaxConcurrent(config.Dispatch.MaxConcurrent),
	)
	deps.DropBox = application.NewDropBox(deps.Orchestrator)
	deps.GetShipment = application.NewGetShipment(deps.Store)
	deps.ListShipments = application.NewListShipments(deps.Store)
	deps.FindStaleShipments = application.NewFindStaleShipments(deps.Store)
	deps.GetShipmentHistory = application.NewGetShipmentHistory(deps.Journal)
	deps.ListFaults = application.NewListFaults(deps.Journal)
	deps.StaleMonitor = application.NewStaleMonitor(deps.FindStaleShipments,
		config.Monitor.StaleAfter, config.Monitor.Interval, logger.Named("stale-monitor"))

	// Initialize handlers
	deps.ShipmentHandlers = handlers.NewShipmentHandlers(
		deps.DropBox,
		deps.GetShipment,
		deps.ListShipments,
		deps.FindStaleShipments,
		deps.GetShipmentHistory,
		deps.ListFaults,
		config.Monitor.StaleAfter,
		logger.Named("http"),
	)
	deps.ShipmentEventHandler = handlers.NewShipmentEventHandler(deps.Orchestrator, deps.EventPublisher, deps.Journal, logger.Named("events"))

	built = true
	return deps, nil
}

func (d *Dependencies) buildStorage(ctx context.Context, config *Config) error {
	switch config.Store.Driver {
	case DriverPostgres:
		d.Store = infrastructure.NewPostgresInstanceStore(d.DB)
	case DriverRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{config.Redis.Addr},
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		d.RedisClient = client
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "failed to ping redis")
		}
		d.Store = infrastructure.NewRedisInstanceStore(client, config.Redis.KeyPrefix)
	default:
		d.Store = infrastructure.NewMemoryInstanceStore()
	}

	switch config.Journal.Driver {
	case DriverPostgres:
		d.Journal = sharedinfra.NewPostgresEventStore(d.DB)
	default:
		d.Journal = sharedinfra.NewMemoryEventStore()
	}
	return nil
}

func (d *Dependencies) buildTransport(ctx context.Context, config *Config, logger *zap.Logger) error {
	if config.Transport.Driver != DriverSQS {
		bus := sharedinfra.NewMemoryBus(
			sharedinfra.WithBusConcurrency(config.Dispatch.MaxConcurrent),
			sharedinfra.WithBusLogger(logger.Named("bus")),
		)
		d.EventPublisher = bus
		d.EventSubscriber = bus
		return nil
	}

	publisher, err := sharedinfra.NewSNSPublisherAdapter(ctx,
		sharedinfra.AWSSettings{Region: config.AWS.Region, Endpoint: config.AWS.EndpointSNS},
		config.AWS.SNSTopicArn,
		logger.Named("sns"),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create SNS publisher")
	}
	d.snsPublisher = publisher
	d.EventPublisher = publisher

	subscriber, err := sharedinfra.NewSQSSubscriberAdapter(ctx,
		sharedinfra.AWSSettings{Region: config.AWS.Region, Endpoint: config.AWS.EndpointSQS},
		config.AWS.SQSQueueURL,
		logger.Named("sqs"),
		sharedinfra.WithWorkers(int32(config.Dispatch.MaxConcurrent)),
		sharedinfra.WithVisibilityTimeout(config.AWS.VisibilityTimeout),
		sharedinfra.WithSubscriberName(config.ServiceName),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create SQS subscriber")
	}
	d.sqsSubscriber = subscriber
	d.EventSubscriber = subscriber
	return nil
}

// Subscribe starts consuming inbound events
func (d *Dependencies) Subscribe(ctx context.Context) error {
	return d.EventSubscriber.Subscribe(ctx, SubscriptionPattern, d.ShipmentEventHandler)
}

// OpenDatabase connects to PostgreSQL
func OpenDatabase(ctx context.Context, config *Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

// Migrate creates the shipment and journal tables
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, infrastructure.ShipmentsSchema); err != nil {
		return errors.Wrap(err, "failed to create shipments schema")
	}
	if _, err := db.ExecContext(ctx, sharedinfra.EventStreamSchema); err != nil {
		return errors.Wrap(err, "failed to create event_stream schema")
	}
	return nil
}

// Close stops the subscriber first so no dispatch is in flight when
// storage goes away
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error

	if d.sqsSubscriber != nil {
		if err := d.sqsSubscriber.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.snsPublisher != nil {
		if err := d.snsPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.telemetryShutdown != nil {
		d.telemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
