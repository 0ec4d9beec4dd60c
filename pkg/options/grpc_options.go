package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

// GrpcOptions configures the gRPC health endpoint.
type GrpcOptions struct {
	// Network with server network.
	Network string `json:"network" mapstructure:"network"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds graceful shutdown of the server.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewGrpcOptions creates a GrpcOptions object with default parameters.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Network: "tcp",
		Addr:    "0.0.0.0:8090",
		Timeout: 30 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GrpcOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, fmt.Errorf("grpc.addr: %w", err))
	}
	return errs
}

// AddFlags adds flags related to features for a specific api server to the
// specified FlagSet.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "grpc.network", o.Network, "Specify the network for the gRPC server.")
	fs.StringVar(&o.Addr, "grpc.addr", o.Addr, "Specify the gRPC server bind address and port.")
	fs.DurationVar(&o.Timeout, "grpc.timeout", o.Timeout, "Timeout for server connections.")
}
