package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
	Nested  struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"demo"`

	completed bool
	invalid   bool
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("demo")
	fs.StringVar(&o.Addr, "addr", o.Addr, "address")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "timeout")
	fs.StringVar(&o.Nested.Level, "demo.level", o.Nested.Level, "level")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid options")
	}
	return nil
}

func TestAppLayersFlagsEnvAndConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "demo.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("timeout: 3s\ndemo:\n  level: debug\n"), 0o600))
	t.Setenv("DEMOAPP_ADDR", "10.0.0.1:80")
	t.Cleanup(func() { cfgFile = "" })

	opts := &testOptions{Addr: "127.0.0.1:1", Timeout: time.Second, Nested: struct {
		Level string `mapstructure:"level"`
	}{Level: "info"}}
	ran := false
	a := NewApp("demo-app", "demo", WithOptions(opts), WithDefaultValidArgs(), WithSilence(),
		WithRunFunc(func() error { ran = true; return nil }))

	a.Command().SetArgs([]string{"--config", cfg})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "10.0.0.1:80", opts.Addr)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, "debug", opts.Nested.Level)
}

func TestAppRejectsInvalidOptions(t *testing.T) {
	opts := &testOptions{invalid: true}
	a := NewApp("demo", "demo", WithOptions(opts), WithSilence(), WithRunFunc(func() error {
		t.Fatal("run must not be called")
		return nil
	}))
	a.Command().SetArgs(nil)
	assert.EqualError(t, a.Command().Execute(), "invalid options")
}

func TestAppRejectsArgs(t *testing.T) {
	a := NewApp("demo", "demo", WithDefaultValidArgs(), WithSilence(), WithRunFunc(func() error { return nil }))
	a.Command().SetArgs([]string{"extra"})
	assert.Error(t, a.Command().Execute())
}
