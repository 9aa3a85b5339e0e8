// Package cfg holds the server's flag-and-environment configuration.
package cfg

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
)

type App struct {
	// logging and ops
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	HTTPPort          int
	OpsPort           int
	EnablePprof       bool
	TrustedProxyHops  int

	// telemetry
	EnableTracing     bool
	OTLPEndpoint      string
	TraceSample       float64
	EnablePyroscope   bool
	PyroServer        string
	PyroTenantID      string
	PyroBasicAuthUser string
	PyroBasicAuthPass string

	// playables
	UploadsDir          string
	BaseURL             string
	MaxUploadSize       ByteSize
	MaxEntrySize        ByteSize
	MaxExtractSize      ByteSize
	MaxArchiveEntries   int
	PreserveArchiveDirs bool
	DevicesFile         string
	MirrorS3Bucket      string
	MirrorS3Prefix      string

	// admin
	AdminPassword     string
	AdminPasswordHash string
	SessionTTL        time.Duration
	SecureCookies     bool
}

// Register binds every App field to fs. Defaults live here.
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "lowest level that gets a stack (debug|info|warn|error)")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "log the call site of each wrapped error")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.IntVar(&c.HTTPPort, "http-port", 3000, "public listen TCP port (1..65535)")
	fs.IntVar(&c.OpsPort, "ops-port", 9000, "metrics/health/pprof listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "serve pprof on the ops port")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "reverse proxies in front of the server; 0 ignores X-Forwarded-For")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "push OTLP traces to -otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC collector (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "push continuous profiles to -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server URL")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "pyroscope tenant (X-Scope-OrgID)")
	fs.StringVar(&c.PyroBasicAuthUser, "pyro-basic-auth-user", "", "pyroscope basic auth user")
	fs.StringVar(&c.PyroBasicAuthPass, "pyro-basic-auth-password", "", "pyroscope basic auth password")

	fs.StringVar(&c.UploadsDir, "uploads-dir", "./uploads", "directory holding one sub-directory per playable")
	fs.StringVar(&c.BaseURL, "base-url", "", "public base URL for share links and QR codes (default http://localhost:<http-port>)")
	byteSizeVar(fs, &c.MaxUploadSize, "max-upload-size", 50*units.MiB, "maximum upload size (e.g. 50MiB)")
	byteSizeVar(fs, &c.MaxEntrySize, "max-entry-size", 10*units.MiB, "maximum uncompressed size of one archive entry")
	byteSizeVar(fs, &c.MaxExtractSize, "max-extract-size", 100*units.MiB, "maximum total uncompressed size of one archive")
	fs.IntVar(&c.MaxArchiveEntries, "max-archive-entries", 1000, "maximum number of entries in one archive")
	fs.BoolVar(&c.PreserveArchiveDirs, "preserve-archive-dirs", false, "keep archive sub-directories instead of flattening")
	fs.StringVar(&c.DevicesFile, "devices-file", "", "TOML file overriding the viewer device presets")
	fs.StringVar(&c.MirrorS3Bucket, "mirror-s3-bucket", "", "copy every accepted upload to this S3 bucket")
	fs.StringVar(&c.MirrorS3Prefix, "mirror-s3-prefix", "playables", "key prefix for mirrored uploads")

	fs.StringVar(&c.AdminPassword, "admin-password", "", "admin password (hashed at startup); prefer -admin-password-hash")
	fs.StringVar(&c.AdminPasswordHash, "admin-password-hash", "", "bcrypt hash of the admin password (see: server passwd)")
	fs.DurationVar(&c.SessionTTL, "session-ttl", 24*time.Hour, "admin session lifetime")
	fs.BoolVar(&c.SecureCookies, "secure-cookies", false, "mark session cookies Secure and send HSTS (enable behind TLS)")
}

// PublicBaseURL returns BaseURL without a trailing slash, or the local
// default derived from HTTPPort.
func (c App) PublicBaseURL() string {
	if c.BaseURL == "" {
		return fmt.Sprintf("http://localhost:%d", c.HTTPPort)
	}
	return strings.TrimRight(c.BaseURL, "/")
}
