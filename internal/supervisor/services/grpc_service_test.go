package services

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// stubbornGRPCServer never finishes a graceful stop until Stop is called.
type stubbornGRPCServer struct {
	started   chan struct{}
	stopped   chan struct{}
	once      sync.Once
	hardStops atomic.Int32
}

func (s *stubbornGRPCServer) Serve(lis net.Listener) error {
	defer lis.Close()
	close(s.started)
	<-s.stopped
	return nil
}

func (s *stubbornGRPCServer) GracefulStop() {
	<-s.stopped
}

func (s *stubbornGRPCServer) Stop() {
	s.hardStops.Add(1)
	s.once.Do(func() { close(s.stopped) })
}

func TestGRPCServerService_GracefulStop(t *testing.T) {
	server := grpc.NewServer()
	svc := NewGRPCServerService(server, "127.0.0.1:0", time.Second)
	assert.Equal(t, "grpc-server", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestGRPCServerService_ForcesStopAfterTimeout(t *testing.T) {
	server := &stubbornGRPCServer{started: make(chan struct{}), stopped: make(chan struct{})}
	svc := NewGRPCServerService(server, "127.0.0.1:0", 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	waitStarted(t, server.started)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after forced stop")
	}
	assert.Equal(t, int32(1), server.hardStops.Load())
}

func TestGRPCServerService_ListenFailure(t *testing.T) {
	svc := NewGRPCServerService(grpc.NewServer(), "127.0.0.1:0", time.Second)
	svc.listen = func(string, string) (net.Listener, error) {
		return nil, errors.New("permission denied")
	}

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on 127.0.0.1:0")
}
