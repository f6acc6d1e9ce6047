package main

import (
	"context"
	"fmt"
	"time"

	_ "github.com/nerrad567/gray-logic-radio/migrations"

	"github.com/nerrad567/gray-logic-radio/internal/api"
	blebridge "github.com/nerrad567/gray-logic-radio/internal/bridges/ble"
	"github.com/nerrad567/gray-logic-radio/internal/bridges/lora"
	"github.com/nerrad567/gray-logic-radio/internal/framing"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/redis"
	"github.com/nerrad567/gray-logic-radio/internal/reading"
)

// historyRetention bounds reading_history when history is enabled.
const historyRetention = 30 * 24 * time.Hour

// RunCmd runs the gateway until interrupted.
type RunCmd struct {
	Config string `help:"Configuration file." default:"${default_config}" env:"RADIOGW_CONFIG" type:"path"`
}

// Run implements the run command.
func (c *RunCmd) Run(ctx context.Context) error {
	return run(ctx, c.Config)
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting radio gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	readings := reading.NewSQLiteRepository(db.DB, cfg.BLE.History)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to Redis (optional, shared BLE duplicate suppression)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		log.Info("Redis connected", "addr", cfg.Redis.Addr)
	}

	adapter := &mqttBridgeAdapter{client: mqttClient}

	var loraBridge *lora.Bridge
	if cfg.LoRa.Enabled {
		loraBridge, err = startLoRaBridge(ctx, cfg, adapter, influxClient, log.Component("lora"))
		if err != nil {
			return fmt.Errorf("starting LoRa bridge: %w", err)
		}
		defer func() {
			log.Info("stopping LoRa bridge")
			loraBridge.Stop()
		}()
	} else {
		log.Info("LoRa bridge disabled")
	}

	var bleBridge *blebridge.Bridge
	if cfg.BLE.Enabled {
		bleBridge, err = startBLEBridge(ctx, cfg, adapter, readings, influxClient, redisClient, log.Component("ble"))
		if err != nil {
			return fmt.Errorf("starting BLE bridge: %w", err)
		}
		defer func() {
			log.Info("stopping BLE bridge")
			bleBridge.Stop()
		}()
		if cfg.BLE.History {
			go pruneHistory(ctx, readings, log)
		}
	} else {
		log.Info("BLE bridge disabled")
	}

	if cfg.API.Enabled {
		server, srvErr := startAPI(ctx, cfg, mqttClient, readings, loraBridge, bleBridge, log.Component("api"))
		if srvErr != nil {
			return fmt.Errorf("starting API server: %w", srvErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, redisClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, bridges, Redis, InfluxDB, MQTT, database.
	log.Info("radio gateway stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient, redisClient: Optional clients (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, redisClient *redis.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// newLoRaTransport builds the configured radio transport.
func newLoRaTransport(cfg *config.Config, client lora.MQTTClient, rpcSource string, log *logging.Logger) (lora.Transport, error) {
	switch cfg.LoRa.Transport {
	case config.LoRaTransportSerial:
		t := lora.NewSerialTransport(lora.SerialConfig{
			Port:              cfg.LoRa.Serial.Port,
			Baud:              cfg.LoRa.Serial.Baud,
			Address:           cfg.LoRa.Serial.Address,
			ReadTimeout:       cfg.LoRa.Serial.ReadTimeout,
			ReconnectDelay:    cfg.LoRa.Serial.ReconnectDelay,
			MaxReconnectDelay: cfg.LoRa.Serial.MaxReconnectDelay,
		})
		t.SetLogger(log)
		return t, nil
	case config.LoRaTransportMQTT, "":
		t := lora.NewMQTTTransport(client, cfg.LoRa.DeviceTopic, cfg.LoRa.ComponentID, rpcSource)
		t.SetLogger(log)
		return t, nil
	default:
		return nil, fmt.Errorf("unknown lora transport %q", cfg.LoRa.Transport)
	}
}

// startLoRaBridge creates and starts the LoRa bridge.
func startLoRaBridge(ctx context.Context, cfg *config.Config, client lora.MQTTClient, influxClient *influxdb.Client, log *logging.Logger) (*lora.Bridge, error) {
	key, err := framing.ParseKey(cfg.LoRa.KeyHex)
	if err != nil {
		return nil, err
	}
	codec, err := framing.NewCodec(key)
	if err != nil {
		return nil, err
	}

	rpcSource := lora.DefaultRPCSource()
	transport, err := newLoRaTransport(cfg, client, rpcSource, log)
	if err != nil {
		return nil, err
	}

	opts := lora.BridgeOptions{
		Codec:            codec,
		Transport:        transport,
		MQTTClient:       client,
		CoverDeviceTopic: cfg.LoRaCoverDeviceTopic(),
		Covers:           cfg.LoRa.Covers,
		RPCSource:        rpcSource,
		Version:          version,
		Logger:           log,
	}
	if influxClient != nil {
		opts.Recorder = influxClient
	}

	bridge, err := lora.NewBridge(opts)
	if err != nil {
		return nil, err
	}
	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("LoRa bridge started", "transport", cfg.LoRa.Transport, "address", transport.Address())
	return bridge, nil
}

// startBLEBridge creates and starts the BLE bridge.
func startBLEBridge(ctx context.Context, cfg *config.Config, client blebridge.MQTTClient, readings *reading.SQLiteRepository,
	influxClient *influxdb.Client, redisClient *redis.Client, log *logging.Logger) (*blebridge.Bridge, error) {
	opts := blebridge.BridgeOptions{
		MQTTClient: client,
		ScanTopic:  cfg.BLE.ScanTopic,
		Buttons:    blebridge.BindingsFromConfig(cfg.BLE.Buttons),
		Addresses:  cfg.BLE.Addresses,
		Store:      readings,
		Version:    version,
		Logger:     log,
	}
	if influxClient != nil {
		opts.Recorder = influxClient
	}
	if cfg.BLE.Dedupe.Backend == config.DedupeRedis && redisClient != nil {
		opts.Deduper = blebridge.NewSharedDeduper(redisClient, cfg.BLE.Dedupe.TTL)
		log.Info("BLE duplicate suppression shared via Redis", "ttl", cfg.BLE.Dedupe.TTL)
	}
	switch {
	case cfg.BLE.WebSocketURL != "":
		stream := blebridge.NewWebSocketSource(cfg.BLE.WebSocketURL)
		stream.SetLogger(log)
		opts.Stream = stream
	case len(cfg.BLE.Scanner.Command) > 0:
		stream := blebridge.NewCommandSource(blebridge.CommandOptions{
			Command:      cfg.BLE.Scanner.Command,
			StallAfter:   cfg.BLE.Scanner.StallAfter,
			RestartDelay: cfg.BLE.Scanner.RestartDelay,
		})
		stream.SetLogger(log)
		opts.Stream = stream
		log.Info("BLE scanner process configured", "command", stream.Address())
	}

	bridge, err := blebridge.NewBridge(opts)
	if err != nil {
		return nil, err
	}
	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}
	return bridge, nil
}

// startAPI creates and starts the HTTP API.
func startAPI(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, readings *reading.SQLiteRepository,
	loraBridge *lora.Bridge, bleBridge *blebridge.Bridge, log *logging.Logger) (*api.Server, error) {
	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Readings: readings,
		MQTT:     mqttClient,
		Version:  version,
	}
	if loraBridge != nil {
		deps.LoRa = loraBridge
	}

	server, err := api.New(deps)
	if err != nil {
		return nil, err
	}
	if loraBridge != nil {
		server.RegisterBridge(lora.BridgeName, loraBridge)
	}
	if bleBridge != nil {
		server.RegisterBridge(blebridge.BridgeName, bleBridge)
	}
	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	return server, nil
}

// pruneHistory trims reading_history once a day.
func pruneHistory(ctx context.Context, readings *reading.SQLiteRepository, log *logging.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := readings.Prune(ctx, historyRetention)
			if err != nil {
				log.Error("pruning reading history failed", "error", err)
				continue
			}
			log.Info("reading history pruned", "rows", n)
		}
	}
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridges'
// MQTTClient interface.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements the bridge MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements the bridge MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Bridge handlers do not return errors
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements the bridge MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements the bridge MQTTClient.
// No-op: the MQTT client lifecycle is managed by run's defer chain.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}
