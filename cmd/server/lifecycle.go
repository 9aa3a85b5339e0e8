package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/playable-preview/internal/health"
	"github.com/keithlinneman/playable-preview/internal/log"
)

// drainPeriod is how long readiness fails before the listeners stop
const drainPeriod = 10 * time.Second

// drain closes the gate and waits out drainPeriod so load balancers stop
// routing here. A second signal cuts the wait short.
func drain(L log.Logger, gate *health.ShutdownGate) {
	ctx := context.Background()
	L.Info(ctx, "shutdown signal received")
	gate.Set("draining")
	L.Info(ctx, "shutdown gate closed, draining", "period", drainPeriod)

	again := make(chan os.Signal, 1)
	signal.Notify(again, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(again)

	t := time.NewTimer(drainPeriod)
	defer t.Stop()
	select {
	case <-t.C:
		L.Info(ctx, "drain period complete")
	case <-again:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

var errNoNotifySocket = errors.New("NOTIFY_SOCKET not set")

// notifySystemd sends READY=1 when running as a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return errNoNotifySocket
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	return nil
}
