package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestHealthServerRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hs := NewHealthServer(addr, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hs.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	conn, err := Dial(addr, DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	check := HealthCheck(conn)
	deadline := time.Now().Add(3 * time.Second)
	for {
		checkCtx, checkCancel := context.WithTimeout(context.Background(), time.Second)
		err = check(checkCtx)
		checkCancel()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("health check never succeeded: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	hs.SetServing(false)
	checkCtx, checkCancel := context.WithTimeout(context.Background(), time.Second)
	defer checkCancel()
	if err := check(checkCtx); err == nil {
		t.Fatal("expected NOT_SERVING to fail the check")
	}
}
