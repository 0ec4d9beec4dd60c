package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configures the optional redis notifier and state mirror.
// An empty address disables redis entirely.
type RedisOptions struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	Password      string        `json:"password" mapstructure:"password"`
	DB            int           `json:"db" mapstructure:"db"`
	PoolSize      int           `json:"pool-size" mapstructure:"pool-size"`
	DialTimeout   time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ChannelPrefix string        `json:"channel-prefix" mapstructure:"channel-prefix"`

	// MirrorState additionally writes every accepted vehicle state to a hash.
	MirrorState bool          `json:"mirror-state" mapstructure:"mirror-state"`
	StateTTL    time.Duration `json:"state-ttl" mapstructure:"state-ttl"`
}

func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		PoolSize:      20,
		DialTimeout:   5 * time.Second,
		ChannelPrefix: "fleethub",
		StateTTL:      10 * time.Minute,
	}
}

// Enabled reports whether a redis address is configured.
func (o *RedisOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

func (o *RedisOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errs := []error{}
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative, got %d", o.DB))
	}
	if o.ChannelPrefix == "" {
		errs = append(errs, errors.New("redis.channel-prefix must not be empty"))
	}
	return errs
}

func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis address (host:port). Empty disables the redis notifier.")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.IntVar(&o.PoolSize, "redis.pool-size", o.PoolSize, "Maximum number of redis socket connections.")
	fs.DurationVar(&o.DialTimeout, "redis.dial-timeout", o.DialTimeout, "Timeout for establishing redis connections.")
	fs.StringVar(&o.ChannelPrefix, "redis.channel-prefix", o.ChannelPrefix, "Prefix of published channels and mirrored keys.")
	fs.BoolVar(&o.MirrorState, "redis.mirror-state", o.MirrorState, "Mirror accepted vehicle states into redis hashes.")
	fs.DurationVar(&o.StateTTL, "redis.state-ttl", o.StateTTL, "Expiry of mirrored vehicle state keys.")
}

// NewClient builds a redis client from the options.
func (o *RedisOptions) NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  o.DialTimeout,
	})
}
