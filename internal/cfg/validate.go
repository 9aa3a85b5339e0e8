package cfg

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/keithlinneman/playable-preview/internal/log"
)

type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) when(bad bool, format string, args ...any) {
	if bad {
		p.addf(format, args...)
	}
}

// Validate reports every invalid setting at once, joined with errors.Join.
func Validate(c App) error {
	var p problems
	p.ops(c)
	p.telemetry(c)
	p.playables(c)
	p.admin(c)
	return errors.Join(p...)
}

func validPort(n int) bool { return n >= 1 && n <= 65535 }

func (p *problems) ops(c App) {
	p.when(!validPort(c.HTTPPort), "invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort)
	p.when(!validPort(c.OpsPort), "invalid OPS_PORT %d (must be 1..65535)", c.OpsPort)
	p.when(c.OpsPort == c.HTTPPort, "OPS_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)
	p.when(c.TrustedProxyHops < 0 || c.TrustedProxyHops > 8, "TRUSTED_PROXY_HOPS must be 0..8 (got %d)", c.TrustedProxyHops)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		p.addf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			p.addf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err)
		}
	}
	p.when(c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64),
		"MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)
}

func (p *problems) telemetry(c App) {
	p.when(c.TraceSample < 0 || c.TraceSample > 1, "invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	if c.EnableTracing {
		// the grpc exporter takes host:port, no scheme
		if c.OTLPEndpoint == "" {
			p.addf("OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			p.addf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}

	if !c.EnablePyroscope {
		return
	}
	if c.PyroServer == "" {
		p.addf("PYRO_SERVER required when ENABLE_PYROSCOPE=true")
	} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
		p.addf("PYRO_SERVER must be a URL (got %q)", c.PyroServer)
	}
	p.when(c.PyroTenantID == "", "PYRO_TENANT required when ENABLE_PYROSCOPE=true")
	p.when((c.PyroBasicAuthUser == "") != (c.PyroBasicAuthPass == ""),
		"PYRO_BASIC_AUTH_USER and PYRO_BASIC_AUTH_PASSWORD must be set together")
}

func (p *problems) playables(c App) {
	p.when(strings.TrimSpace(c.UploadsDir) == "", "UPLOADS_DIR is required")
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		p.when(err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "",
			"BASE_URL must be an absolute http(s) URL (got %q)", c.BaseURL)
	}

	p.when(c.MaxUploadSize <= 0, "MAX_UPLOAD_SIZE must be positive")
	p.when(c.MaxEntrySize <= 0, "MAX_ENTRY_SIZE must be positive")
	p.when(c.MaxExtractSize <= 0, "MAX_EXTRACT_SIZE must be positive")
	p.when(c.MaxEntrySize > c.MaxExtractSize, "MAX_ENTRY_SIZE (%s) exceeds MAX_EXTRACT_SIZE (%s)", &c.MaxEntrySize, &c.MaxExtractSize)
	p.when(c.MaxArchiveEntries < 1, "MAX_ARCHIVE_ENTRIES must be at least 1 (got %d)", c.MaxArchiveEntries)
	p.when(c.MirrorS3Bucket != "" && strings.HasPrefix(c.MirrorS3Prefix, "/"),
		"MIRROR_S3_PREFIX must not start with / (got %q)", c.MirrorS3Prefix)
}

// admin requires exactly one credential; there is no built-in password.
func (p *problems) admin(c App) {
	switch {
	case c.AdminPassword == "" && c.AdminPasswordHash == "":
		p.addf("one of ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	case c.AdminPassword != "" && c.AdminPasswordHash != "":
		p.addf("ADMIN_PASSWORD and ADMIN_PASSWORD_HASH are mutually exclusive")
	case c.AdminPasswordHash != "":
		if _, err := bcrypt.Cost([]byte(c.AdminPasswordHash)); err != nil {
			p.addf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %v", err)
		}
	case len(c.AdminPassword) > 72:
		p.addf("ADMIN_PASSWORD longer than 72 bytes")
	}
	p.when(c.SessionTTL < time.Minute, "SESSION_TTL must be at least 1m (got %s)", c.SessionTTL)
}
