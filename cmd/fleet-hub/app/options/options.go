package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/fleethub/internal/fleethub"
	"github.com/autopeer-io/fleethub/pkg/app"
	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/options"
)

type HubOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	GrpcOptions     *options.GrpcOptions     `json:"grpc" mapstructure:"grpc"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	S3Options       *options.S3Options       `json:"s3" mapstructure:"s3"`
	RedisOptions    *options.RedisOptions    `json:"redis" mapstructure:"redis"`
	GeofenceOptions *options.GeofenceOptions `json:"geofence" mapstructure:"geofence"`
	CommandOptions  *options.CommandOptions  `json:"command" mapstructure:"command"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*HubOptions)(nil)

func NewHubOptions() *HubOptions {
	o := &HubOptions{
		HttpOptions:     options.NewHttpOptions(),
		GrpcOptions:     options.NewGrpcOptions(),
		MqttOptions:     options.NewMqttOptions(),
		S3Options:       options.NewS3Options(),
		RedisOptions:    options.NewRedisOptions(),
		GeofenceOptions: options.NewGeofenceOptions(),
		CommandOptions:  options.NewCommandOptions(),
		Log:             log.NewOptions(),
	}

	return o
}

func (o *HubOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.GeofenceOptions.AddFlags(fss.FlagSet("geofence"))
	o.CommandOptions.AddFlags(fss.FlagSet("command"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *HubOptions) Complete() error {
	log.Init(o.Log)
	return nil
}

func (o *HubOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.GeofenceOptions.Validate()...)
	errs = append(errs, o.CommandOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *HubOptions) Config() (*fleethub.Config, error) {
	return &fleethub.Config{
		HttpOptions:     o.HttpOptions,
		GrpcOptions:     o.GrpcOptions,
		MqttOptions:     o.MqttOptions,
		S3Options:       o.S3Options,
		RedisOptions:    o.RedisOptions,
		GeofenceOptions: o.GeofenceOptions,
		CommandOptions:  o.CommandOptions,
	}, nil
}
