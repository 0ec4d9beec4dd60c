package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/pkg/log"
)

// redisTimeout bounds every redis round trip.
const redisTimeout = 2 * time.Second

// RedisClient is the subset of *redis.Client the notifier uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

var (
	_ core.Notifier    = (*RedisNotifier)(nil)
	_ core.StateMirror = (*RedisNotifier)(nil)
	_ RedisClient      = (*redis.Client)(nil)
)

// RedisNotifier publishes events on redis pub/sub channels and can mirror
// vehicle states into hashes plus a geo set:
//
//	PUBLISH <prefix>:geofence:<subject>
//	PUBLISH <prefix>:diagnostics
//	HSET    <prefix>:vehicle:<id>:state
//	GEOADD  <prefix>:vehicles:geo
type RedisNotifier struct {
	client   RedisClient
	prefix   string
	stateTTL time.Duration
	logger   log.Logger
}

func NewRedisNotifier(client RedisClient, prefix string, stateTTL time.Duration) *RedisNotifier {
	return &RedisNotifier{
		client:   client,
		prefix:   prefix,
		stateTTL: stateTTL,
		logger:   log.WithName("notifier.redis"),
	}
}

func (n *RedisNotifier) NotifyGeofence(ctx context.Context, ev model.GeofenceEvent) {
	n.publish(ctx, fmt.Sprintf("%s:geofence:%s", n.prefix, ev.SubjectID), ev)
}

func (n *RedisNotifier) NotifyDiagnostic(ctx context.Context, d model.Diagnostic) {
	n.publish(ctx, n.prefix+":diagnostics", d)
}

// MirrorState writes s to redis in a single pipeline.
func (n *RedisNotifier) MirrorState(ctx context.Context, s model.VehicleState) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisTimeout)
	defer cancel()

	key := fmt.Sprintf("%s:vehicle:%s:state", n.prefix, s.ID)
	fields := map[string]any{
		"id":           s.ID,
		"name":         s.DisplayName(),
		"lat":          s.Position.Latitude,
		"lng":          s.Position.Longitude,
		"batteryLevel": s.Battery,
		"isAvailable":  s.Available,
		"timestamp":    s.Timestamp.UnixMilli(),
		"version":      s.Version,
	}

	_, err := n.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if n.stateTTL > 0 {
			pipe.Expire(ctx, key, n.stateTTL)
		}
		pipe.GeoAdd(ctx, n.prefix+":vehicles:geo", &redis.GeoLocation{
			Name:      s.ID,
			Longitude: s.Position.Longitude,
			Latitude:  s.Position.Latitude,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.logger.Error(err, "Failed to marshal event", "channel", channel)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisTimeout)
	defer cancel()
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		n.logger.Warn("Failed to publish event to redis", "channel", channel, "err", err.Error())
	}
}
