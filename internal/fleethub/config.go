package fleethub

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/command"
	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/service"
	"github.com/autopeer-io/fleethub/internal/fleethub/geofence"
	"github.com/autopeer-io/fleethub/internal/fleethub/ingest"
	"github.com/autopeer-io/fleethub/internal/fleethub/notifier"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
	"github.com/autopeer-io/fleethub/internal/fleethub/server"
	"github.com/autopeer-io/fleethub/internal/fleethub/storage"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/options"
)

type Config struct {
	HttpOptions     *options.HttpOptions
	GrpcOptions     *options.GrpcOptions
	MqttOptions     *options.MqttOptions
	S3Options       *options.S3Options
	RedisOptions    *options.RedisOptions
	GeofenceOptions *options.GeofenceOptions
	CommandOptions  *options.CommandOptions
}

func (cfg *Config) NewHubServer(ctx context.Context) (*FleetHubServer, error) {
	// 1. Infrastructure: static documents (geometry + snapshot)
	resolver := storage.NewS3Resolver(cfg.S3Options)
	geo, err := LoadGeometry(ctx, resolver, cfg.GeofenceOptions)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if _, err := LoadSnapshot(ctx, resolver, cfg.GeofenceOptions.SnapshotURI, reg); err != nil {
		return nil, err
	}
	metrics.VehiclesTracked.Set(float64(reg.Len()))

	// 2. Infrastructure: transport, shared by ingress and commands
	mqttClient, err := InitializeMQTTClient(cfg.MqttOptions)
	if err != nil {
		return nil, err
	}
	topics := cfg.MqttOptions.Topics()

	// 3. Infrastructure: notifiers (Secondary Adapters)
	notifiers := notifier.Fanout{notifier.NewLogNotifier()}
	if cfg.MqttOptions.EventKind != "" {
		notifiers = append(notifiers, notifier.NewMQTTNotifier(mqttClient, topics, cfg.MqttOptions.EventKind))
	}
	var mirror core.StateMirror
	if cfg.RedisOptions.Enabled() {
		rn := notifier.NewRedisNotifier(cfg.RedisOptions.NewClient(), cfg.RedisOptions.ChannelPrefix, cfg.RedisOptions.StateTTL)
		notifiers = append(notifiers, rn)
		if cfg.RedisOptions.MirrorState {
			mirror = rn
		}
		log.Info("Redis notifier enabled", "addr", cfg.RedisOptions.Addr, "mirror", cfg.RedisOptions.MirrorState)
	}

	// Slow outbound channels sit behind a bounded queue, off the ingestion path.
	outbound := notifier.NewQueue(notifiers, mirror, cfg.GeofenceOptions.OutboundQueue)

	// 4. Core domain
	monitor := geofence.New(geo, outbound, geofence.WithExitEvents(cfg.GeofenceOptions.EmitExit))

	ingestOpts := []ingest.Option{ingest.WithPositionSink(monitor)}
	if mirror != nil {
		ingestOpts = append(ingestOpts, ingest.WithStateMirror(outbound))
	}
	ingestor := ingest.New(topics, reg, outbound, ingestOpts...)

	dispatcher := command.New(command.ConfigFromOptions(cfg.CommandOptions), mqttClient, topics, reg)
	svc := service.New(reg, geo, monitor, dispatcher, cfg.CommandOptions.ConfirmTimeout)

	// 5. Ingress Servers (Primary Adapters)
	serverConfig := &server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
		MqttOptions: cfg.MqttOptions,
	}
	srvManager, err := server.NewManager(serverConfig, svc, mqttClient, ingestor.OnMessage, outbound, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("failed to init server manager: %w", err)
	}

	return &FleetHubServer{
		serverManager: srvManager,
		startedAt:     time.Now(),
	}, nil
}
