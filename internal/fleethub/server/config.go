package server

import "github.com/autopeer-io/fleethub/pkg/options"

type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions
	MqttOptions *options.MqttOptions
}
