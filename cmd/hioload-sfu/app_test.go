package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sfu/config"
	"github.com/momentics/hioload-sfu/control"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Relay.ListenAddress = "127.0.0.1:0"
	cfg.Relay.Workers = 2
	cfg.Management.Enabled = false
	cfg.Load.SampleInterval = 10 * time.Millisecond
	cfg.Load.CPUOverload = 64
	cfg.Load.CPURecovery = 32
	return cfg
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", slog.Int("n", 1))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(config.LoggingConfig{Level: "chatty"}, &buf)
	assert.Error(t, err)
}

func TestApp_RunsAndForwards(t *testing.T) {
	a, err := newApp(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	alice, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer alice.Close()
	bob, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer bob.Close()
	require.NoError(t, a.relay.Join("room", "alice", alice.LocalAddr()))
	require.NoError(t, a.relay.Join("room", "bob", bob.LocalAddr()))

	_, err = alice.WriteTo([]byte("rtp"), a.conn.LocalAddr())
	require.NoError(t, err)
	buf := make([]byte, 64)
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := bob.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "rtp", string(buf[:n]))

	// The control plane reaches the live pool.
	require.NoError(t, a.plane.SetConfig(map[string]any{control.KeyPoolStatistics: true}))
	assert.True(t, a.pool.StatisticsEnabled())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestNewApp_BadListenAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.ListenAddress = "256.0.0.1:1"
	_, err := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
