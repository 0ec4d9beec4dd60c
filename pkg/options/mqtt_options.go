package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/fleethub/pkg/mqtt"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for MQTT client and topics.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// Client behavior
	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// InsecureSkipVerify controls whether a client verifies the server's certificate chain and host name.
	// This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// Topic layout: {Namespace}/{vehicleID}/{StatusKind|CommandKind}
	Namespace   string `json:"namespace" mapstructure:"namespace"`
	StatusKind  string `json:"status-kind" mapstructure:"status-kind"`
	CommandKind string `json:"command-kind" mapstructure:"command-kind"`

	// EventKind is the topic kind geofence events are republished on. Empty disables it.
	EventKind string `json:"event-kind" mapstructure:"event-kind"`

	// ShareGroup, when set, subscribes to status through $share/<group>/ so
	// several hubs split the load.
	ShareGroup string `json:"share-group" mapstructure:"share-group"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:           "tcp://127.0.0.1:1883",
		KeepAlive:        30 * time.Second,
		ConnectTimeout:   5 * time.Second,
		ReconnectBackoff: 2 * time.Second,
		SessionExpiry:    60,
		CleanStart:       true,
		Namespace:        topic.DefaultNamespace,
		StatusKind:       topic.KindStatus,
		CommandKind:      topic.KindCommand,
		EventKind:        topic.KindGeofence,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker must not be empty"))
	}
	if o.KeepAlive < time.Second || o.KeepAlive.Seconds() > 65535 {
		errs = append(errs, fmt.Errorf("mqtt.keep-alive %s is out of range [1s, 65535s]", o.KeepAlive))
	}
	if o.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("mqtt.connect-timeout must be positive"))
	}
	for flag, v := range map[string]string{
		"mqtt.namespace":    o.Namespace,
		"mqtt.status-kind":  o.StatusKind,
		"mqtt.command-kind": o.CommandKind,
	} {
		if err := topic.ValidateSegment(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", flag, err))
		}
	}
	if o.EventKind != "" {
		if err := topic.ValidateSegment(o.EventKind); err != nil {
			errs = append(errs, fmt.Errorf("mqtt.event-kind: %w", err))
		} else if o.EventKind == o.StatusKind || o.EventKind == o.CommandKind {
			errs = append(errs, fmt.Errorf("mqtt.event-kind %q collides with another topic kind", o.EventKind))
		}
	}
	if o.StatusKind == o.CommandKind {
		errs = append(errs, fmt.Errorf("mqtt.status-kind and mqtt.command-kind must differ, both are %q", o.StatusKind))
	}

	return errs
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker (tcp://, ssl://, ws:// or wss://).")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit Client ID (optional, usually generated).")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.DurationVar(&o.ReconnectBackoff, "mqtt.reconnect-backoff", o.ReconnectBackoff, "Delay between reconnection attempts.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Start a clean MQTT session on connect.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")

	// Topics
	fs.StringVar(&o.Namespace, "mqtt.namespace", o.Namespace, "First topic segment shared by all fleet topics.")
	fs.StringVar(&o.StatusKind, "mqtt.status-kind", o.StatusKind, "Topic kind segment of vehicle status messages.")
	fs.StringVar(&o.CommandKind, "mqtt.command-kind", o.CommandKind, "Topic kind segment of the vehicle command channel.")
	fs.StringVar(&o.EventKind, "mqtt.event-kind", o.EventKind, "Topic kind geofence events are republished on. Empty disables republishing.")
	fs.StringVar(&o.ShareGroup, "mqtt.share-group", o.ShareGroup, "Shared subscription group for status topics (optional).")
}

func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           o.ClientID,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		ReconnectBackoff:   o.ReconnectBackoff,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}
}

// Topics returns the topic builder for the configured layout.
func (o *MqttOptions) Topics() *topic.Builder {
	return topic.NewBuilder(o.Namespace, o.StatusKind, o.CommandKind).Shared(o.ShareGroup)
}
