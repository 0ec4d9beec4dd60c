package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	for _, addr := range []string{"0.0.0.0:8080", ":8080", "localhost:6379", "[::1]:1883", "redis.internal:6379"} {
		assert.NoError(t, ValidateAddress(addr), addr)
	}
	for _, addr := range []string{"", "8080", "host:port", "host:70000", "bad_host!:80"} {
		assert.Error(t, ValidateAddress(addr), addr)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	all := map[string]IOptions{
		"mqtt":    NewMqttOptions(),
		"http":    NewHttpOptions(),
		"grpc":    NewGrpcOptions(),
		"s3":      NewS3Options(),
		"redis":   NewRedisOptions(),
		"command": NewCommandOptions(),
	}
	for name, o := range all {
		assert.Empty(t, o.Validate(), name)
	}

	// Geometry is mandatory unless empty geometry is explicitly allowed.
	g := NewGeofenceOptions()
	assert.Len(t, g.Validate(), 1)
	g.AllowEmpty = true
	assert.Empty(t, g.Validate())

	g.OutboundQueue = 0
	assert.Len(t, g.Validate(), 1)
}

func TestMqttOptionsFlags(t *testing.T) {
	o := NewMqttOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--mqtt.broker=ssl://broker:8883",
		"--mqtt.namespace=okeride",
		"--mqtt.share-group=hubs",
		"--mqtt.keep-alive=45s",
	}))
	assert.Empty(t, o.Validate())

	cfg := o.ToClientConfig()
	assert.Equal(t, "ssl://broker:8883", cfg.BrokerURL)
	assert.Equal(t, uint16(45), cfg.KeepAlive)

	topics := o.Topics()
	assert.Equal(t, "okeride/u1/src", topics.Command("u1"))
	assert.Equal(t, "$share/hubs/okeride/+/status", topics.StatusWildcard())
}

func TestMqttOptionsValidate(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = ""
	o.Namespace = "a/b"
	o.CommandKind = o.StatusKind
	o.KeepAlive = 0
	assert.Len(t, o.Validate(), 4)
}

func TestCommandOptionsValidate(t *testing.T) {
	o := NewCommandOptions()
	o.MaxAttempts = 0
	o.Timeout = time.Second
	o.AttemptTimeout = 2 * time.Second
	o.BackoffFactor = 0.5
	assert.Len(t, o.Validate(), 3)
}

func TestRedisOptions(t *testing.T) {
	o := NewRedisOptions()
	assert.False(t, o.Enabled())

	o.Addr = "nope"
	assert.True(t, o.Enabled())
	assert.Len(t, o.Validate(), 1)

	o.Addr = "127.0.0.1:6379"
	assert.Empty(t, o.Validate())
	c := o.NewClient()
	defer c.Close()
	assert.Equal(t, "127.0.0.1:6379", c.Options().Addr)
}

func TestS3OptionsValidate(t *testing.T) {
	o := NewS3Options()
	o.Endpoint = "minio:9000"
	assert.Len(t, o.Validate(), 1)
	o.AccessKeyID, o.SecretAccessKey = "k", "s"
	assert.Empty(t, o.Validate())
}
