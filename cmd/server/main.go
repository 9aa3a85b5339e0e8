package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/playable-preview/internal/cfg"
	"github.com/keithlinneman/playable-preview/internal/health"
	"github.com/keithlinneman/playable-preview/internal/httpmw"
	"github.com/keithlinneman/playable-preview/internal/httpserver"
	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/metrics"
	"github.com/keithlinneman/playable-preview/internal/opshttp"
	"github.com/keithlinneman/playable-preview/internal/otelx"
	"github.com/keithlinneman/playable-preview/internal/prof"
	v "github.com/keithlinneman/playable-preview/internal/version"
)

const (
	envPrefix = "PLAYABLE_"

	// uploadReadTimeout bounds reading one request, a full-size upload included
	uploadReadTimeout = 5 * time.Minute
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "passwd" {
		os.Exit(runPasswd(os.Args[2:], os.Stdin, os.Stdout, os.Stderr))
	}
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()
	conf, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty)
		return 0
	}
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}

	lg, err := newLogger(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		return 1
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)
	logStartup(ctx, L, conf, vi)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	stopTelemetry := startTelemetry(ctx, L, conf, vi, m)
	defer stopTelemetry(context.Background())

	a, err := newApp(ctx, conf, L, m)
	if err != nil {
		L.Error(ctx, err, "startup failed")
		return 1
	}

	var gate health.ShutdownGate
	// gate open and the uploads dir still writable
	readiness := health.All(
		gate.Probe(),
		health.Timeout(health.CheckFunc(func(context.Context) error { return a.store.Ready() }), 2*time.Second),
	)

	stopSite, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Security:     httpmw.SecurityHeadersOptions{HSTS: conf.SecureCookies},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		APIRoutes: func(r chi.Router) {
			a.admin.RegisterRoutes(r)
			a.view.RegisterRoutes(r)
		},
		SiteRoutes:   a.site.RegisterRoutes,
		MaxBodyBytes: conf.MaxUploadSize.Int64() + (1 << 20),
		ReadTimeout:  uploadReadTimeout,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		return 1
	}
	defer func() { _ = stopSite(context.Background()) }()

	// ops rejects public peers and proxied requests in its own middleware
	stopOps, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.OpsPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return 1
	}
	defer func() { _ = stopOps(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "error", err)
	}

	<-ctx.Done()
	stop()
	drain(L, &gate)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stopSite(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "http server shutdown")
	}
	if err := stopOps(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "ops http server shutdown")
	}
	stopTelemetry(shutdownCtx)
	L.Info(shutdownCtx, "shutdown complete")
	return 0
}

// parseFlags reads flags, then PLAYABLE_* env for anything not on the CLI.
func parseFlags() (cfg.App, bool) {
	var conf cfg.App
	cfg.Register(flag.CommandLine, &conf)
	showVersion := flag.Bool("V", false, "print version and build information and exit")
	flag.Parse()
	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	return conf, *showVersion
}

func newLogger(conf cfg.App) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		stackLvl = lvl
	}
	return log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		Commit:            v.Commit,
		BuildId:           v.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
}

// startTelemetry starts profiling and tracing. Neither is fatal; failures
// are logged and the service runs without them. The returned func stops
// both and is safe to call twice.
func startTelemetry(ctx context.Context, L log.Logger, conf cfg.App, vi v.Info, m *metrics.ServerMetrics) func(context.Context) {
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:           conf.EnablePyroscope,
		AppName:           v.AppName,
		ServerAddress:     conf.PyroServer,
		TenantID:          conf.PyroTenantID,
		BasicAuthUser:     conf.PyroBasicAuthUser,
		BasicAuthPassword: conf.PyroBasicAuthPass,
		Tags: map[string]string{
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"build_id":  vi.BuildId,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)

	// the collector runs on the same host, so plaintext grpc
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	return func(sctx context.Context) {
		if err := shutdownOTEL(sctx); err != nil {
			L.Error(sctx, err, "otel shutdown")
		}
		stopProf()
	}
}

func logStartup(ctx context.Context, L log.Logger, conf cfg.App, vi v.Info) {
	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"ops_port", conf.OpsPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"pyro_tenant", conf.PyroTenantID,
		"trace_sample", conf.TraceSample,
		"trusted_proxy_hops", conf.TrustedProxyHops,
		"uploads_dir", conf.UploadsDir,
		"base_url", conf.PublicBaseURL(),
		"session_ttl", conf.SessionTTL,
		"secure_cookies", conf.SecureCookies,
		"max_upload_size", conf.MaxUploadSize.String(),
		"max_entry_size", conf.MaxEntrySize.String(),
		"max_extract_size", conf.MaxExtractSize.String(),
		"max_archive_entries", conf.MaxArchiveEntries,
		"preserve_archive_dirs", conf.PreserveArchiveDirs,
		"devices_file", conf.DevicesFile,
		"mirror_s3_bucket", conf.MirrorS3Bucket,
		"mirror_s3_prefix", conf.MirrorS3Prefix,
	)
}
