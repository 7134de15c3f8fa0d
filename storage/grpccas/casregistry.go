package grpccas

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
)

var (
	flagTarget      string
	flagTimeout     time.Duration
	flagMaxMsgBytes int
)

func open(target string, timeout time.Duration, maxMsg int) (storage.CAS, casregistry.Closer, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil, fmt.Errorf("grpc: missing target (--grpc-target or config key grpc-target)")
	}
	client, err := Dial(target, DialOptions{Timeout: timeout, MaxMsgBytes: maxMsg})
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func openConfig(cfg map[string]string) (storage.CAS, casregistry.Closer, error) {
	var timeout time.Duration
	if v := cfg["grpc-timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, nil, fmt.Errorf("grpc: invalid grpc-timeout %q: %w", v, err)
		}
		timeout = d
	}
	var maxMsg int
	if v := cfg["grpc-max-msg-bytes"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("grpc: invalid grpc-max-msg-bytes %q: %w", v, err)
		}
		maxMsg = n
	}
	return open(cfg["grpc-target"], timeout, maxMsg)
}

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "gRPC CAS client (talks to mpst-storaged)",
		Usage:       casregistry.UsageCLI,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "gRPC target host:port (for --backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 10*time.Second, "Per-RPC timeout (for --backend=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-max-msg-bytes", 0, "Max gRPC message size in bytes; 0 uses grpc defaults")
		},
		Open: func() (storage.CAS, casregistry.Closer, error) {
			return open(flagTarget, flagTimeout, flagMaxMsgBytes)
		},
		OpenConfig: openConfig,
	})
}
