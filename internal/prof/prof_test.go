package prof

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/keithlinneman/playable-preview/internal/log"
)

type recLogger struct {
	log.Logger
	mu   sync.Mutex
	msgs []string
	errs []error
}

func (r *recLogger) With(...any) log.Logger { return r }
func (r *recLogger) Info(_ context.Context, msg string, _ ...any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, "info:"+msg)
	r.mu.Unlock()
}
func (r *recLogger) Debug(_ context.Context, msg string, _ ...any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, "debug:"+msg)
	r.mu.Unlock()
}
func (r *recLogger) Error(_ context.Context, err error, msg string, _ ...any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, "error:"+msg)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func TestStart_Disabled(t *testing.T) {
	rl := &recLogger{Logger: log.Nop()}
	ctx := log.WithContext(context.Background(), rl)

	stop, err := Start(ctx, Options{
		ServerAddress:        "",
		BasicAuthPassword:    "ignored",
		ProfileMutexFraction: 999,
	})
	if err != nil {
		t.Fatalf("disabled Start: %v", err)
	}
	stop()
	stop()
	if len(rl.msgs) != 1 || rl.msgs[0] != "info:pyroscope disabled" {
		t.Fatalf("logs = %v", rl.msgs)
	}
}

func TestStart_MissingServerAddress(t *testing.T) {
	stop, err := Start(context.Background(), Options{Enabled: true, AppName: "playable-preview"})
	if err == nil || !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("err = %v", err)
	}
	if stop == nil {
		t.Fatal("stop is nil on error")
	}
	stop()
}

func TestStart_UnreachableServer(t *testing.T) {
	// the agent pushes lazily, so Start may succeed; stop must work either way
	stop, _ := Start(context.Background(), Options{
		Enabled:       true,
		AppName:       "playable-preview",
		ServerAddress: "http://127.0.0.1:0",
	})
	if stop == nil {
		t.Fatal("stop is nil")
	}
	stop()
}

func TestConfig(t *testing.T) {
	opts := Options{
		AppName:           "playable-preview",
		ServerAddress:     "https://profiles.example.com",
		TenantID:          "previews",
		BasicAuthUser:     "123456",
		BasicAuthPassword: "glc_token",
		Tags:              map[string]string{"component": "server"},
	}
	c := config(opts, log.Nop())

	if c.ApplicationName != opts.AppName || c.ServerAddress != opts.ServerAddress || c.TenantID != "previews" {
		t.Fatalf("config = %+v", c)
	}
	if c.BasicAuthUser != "123456" || c.BasicAuthPassword != "glc_token" {
		t.Fatal("basic auth not passed through")
	}
	if c.Tags["component"] != "server" {
		t.Fatalf("tags = %v", c.Tags)
	}
	if len(c.ProfileTypes) != len(profileTypes) {
		t.Fatalf("profile types = %d", len(c.ProfileTypes))
	}
	if c.Logger == nil {
		t.Fatal("agent logger not set")
	}
}

func TestAgentLogger(t *testing.T) {
	rl := &recLogger{Logger: log.Nop()}
	a := agentLogger{L: rl}
	a.Infof("uploading %d profiles", 3)
	a.Debugf("tick")
	a.Errorf("upload failed: %s", "503")

	want := []string{"info:uploading 3 profiles", "debug:tick", "error:pyroscope agent"}
	if strings.Join(rl.msgs, "|") != strings.Join(want, "|") {
		t.Fatalf("msgs = %v", rl.msgs)
	}
	if rl.errs[0] == nil || rl.errs[0].Error() != "upload failed: 503" {
		t.Fatalf("err = %v", rl.errs[0])
	}
}
