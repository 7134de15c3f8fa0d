// Command mpst-storaged serves a CAS backend over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"besedarium.dev/mpst/internal/logging"
	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casconfig"
	"besedarium.dev/mpst/storage/casregistry"
	"besedarium.dev/mpst/storage/grpccas"

	_ "besedarium.dev/mpst/storage/localfs"
	_ "besedarium.dev/mpst/storage/memcas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("mpst-storaged", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	storageConfig := fs.String("storage-config", "", "CAS config file (TOML, JSONC or YAML); overrides --backend")
	prefer := fs.String("prefer", "", "With --storage-config, move this backend to the front")
	maxMsg := fs.Int("max-msg-bytes", 0, "Maximum gRPC message size (0 keeps the gRPC default)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	lc := logging.DefaultConfig(logging.ProfileRuntime)
	lc.Output = errOut
	logging.ApplyEnvOverrides(&lc)
	logging.Install(lc)
	log := logging.Component("mpst-storaged")

	var (
		cas     storage.CAS
		closeFn casregistry.Closer
		err     error
	)
	if *storageConfig != "" {
		var cfg casconfig.Config
		cfg, err = casconfig.LoadFile(*storageConfig)
		if err == nil {
			cas, closeFn, err = cfg.Open(casregistry.UsageDaemon, *prefer)
		}
	} else {
		cas, closeFn, err = casregistry.Open(*backend, casregistry.UsageDaemon)
	}
	if err != nil {
		log.Error().Err(err).Msg("opening CAS")
		return 2
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Error().Err(err).Str("listen", *listen).Msg("listen failed")
		return 1
	}

	var opts []grpc.ServerOption
	if *maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(*maxMsg), grpc.MaxSendMsgSize(*maxMsg))
	}
	log.Info().Str("addr", lis.Addr().String()).Str("backend", *backend).Msg("listening")
	if err := serve(ctx, lis, cas, log, opts...); err != nil {
		log.Error().Err(err).Msg("serve failed")
		return 1
	}
	log.Info().Msg("stopped")
	return 0
}

// serve runs the CAS service on lis until ctx is done, then drains in-flight
// calls.
func serve(ctx context.Context, lis net.Listener, cas storage.CAS, log zerolog.Logger, opts ...grpc.ServerOption) error {
	opts = append(opts, grpc.ChainUnaryInterceptor(grpccas.LoggingInterceptor(log)))
	s := grpc.NewServer(opts...)
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	select {
	case <-ctx.Done():
		s.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
