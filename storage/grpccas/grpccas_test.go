package grpccas

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"besedarium.dev/mpst/internal/testutil/testlog"
	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
	"besedarium.dev/mpst/storage/localfs"
	"besedarium.dev/mpst/storage/testkit"
)

func startServer(t *testing.T, cas storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(testlog.Logger(t))))
	RegisterCASServer(srv, &Server{CAS: cas})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{
		Timeout: 2 * time.Second,
		GRPC:    []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		cas, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return startServer(t, cas)
	})
}

func TestGRPCCAS_MapsErrors(t *testing.T) {
	client := startServer(t, storage.NewMemCAS())
	id, err := client.Put([]byte("hello grpccas"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := client.Get(id)
	if err != nil || string(got) != "hello grpccas" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	other, err := storage.NewMemCAS().Put([]byte("elsewhere"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Get(other); !storage.IsNotFound(err) {
		t.Fatalf("Get(missing) = %v, want not found", err)
	}
}

func TestGRPCCAS_OpenConfigValidates(t *testing.T) {
	if _, _, err := casregistry.OpenWithConfig("grpc", casregistry.UsageCLI, map[string]string{}); err == nil {
		t.Fatalf("expected missing target error")
	}
	if _, _, err := casregistry.OpenWithConfig("grpc", casregistry.UsageCLI, map[string]string{"grpc-target": "x:1", "grpc-timeout": "soon"}); err == nil {
		t.Fatalf("expected bad timeout error")
	}
	cas, closeFn, err := casregistry.OpenWithConfig("grpc", casregistry.UsageCLI, map[string]string{"grpc-target": "localhost:1", "grpc-timeout": "1s"})
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	defer closeFn()
	if c := cas.(*Client); c.Timeout != time.Second {
		t.Fatalf("timeout = %s", c.Timeout)
	}
}
