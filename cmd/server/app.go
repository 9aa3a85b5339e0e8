package main

import (
	"context"
	"time"

	"github.com/keithlinneman/playable-preview/internal/adminhttp"
	"github.com/keithlinneman/playable-preview/internal/cfg"
	"github.com/keithlinneman/playable-preview/internal/content"
	"github.com/keithlinneman/playable-preview/internal/devices"
	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/metrics"
	"github.com/keithlinneman/playable-preview/internal/mirror"
	"github.com/keithlinneman/playable-preview/internal/ratelimit"
	"github.com/keithlinneman/playable-preview/internal/session"
	"github.com/keithlinneman/playable-preview/internal/sitehandler"
	"github.com/keithlinneman/playable-preview/internal/sitehttp"
	"github.com/keithlinneman/playable-preview/internal/viewhttp"
	"github.com/keithlinneman/playable-preview/internal/webassets"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

// app is everything the public listener routes to.
type app struct {
	store *content.Store
	admin *adminhttp.API
	view  *viewhttp.API
	site  *sitehttp.Routes
}

func newApp(ctx context.Context, conf cfg.App, L log.Logger, m *metrics.ServerMetrics) (*app, error) {
	store, err := openStore(ctx, conf, L, m)
	if err != nil {
		return nil, err
	}
	sessions, err := newSessions(ctx, conf, L)
	if err != nil {
		return nil, err
	}
	sessions.OnLogin = m.IncLogin

	presets := devices.Default()
	if conf.DevicesFile != "" {
		if presets, err = devices.LoadFile(conf.DevicesFile); err != nil {
			return nil, xerrors.Wrapf(err, "load devices file %s", conf.DevicesFile)
		}
		L.Info(ctx, "loaded device presets", "devices", len(presets.All()), "default", presets.DefaultKey())
	}

	var mirr mirror.Mirror = mirror.Nop{}
	if conf.MirrorS3Bucket != "" {
		s3m, err := mirror.NewS3(ctx, mirror.S3Options{
			Logger: L.With("component", "mirror"),
			Bucket: conf.MirrorS3Bucket,
			Prefix: conf.MirrorS3Prefix,
		})
		if err != nil {
			return nil, xerrors.Wrapf(err, "s3 mirror %s", conf.MirrorS3Bucket)
		}
		mirr = s3m
	}

	tmpl, err := webassets.Templates()
	if err != nil {
		return nil, xerrors.Wrap(err, "parse templates")
	}

	baseURL := conf.PublicBaseURL()
	a := &app{store: store}
	a.admin, err = adminhttp.NewAPI(adminhttp.Options{
		Logger:        L.With("component", "admin"),
		Store:         store,
		Sessions:      sessions,
		Templates:     tmpl,
		BaseURL:       baseURL,
		MaxUploadSize: conf.MaxUploadSize.Int64(),
		Mirror:        mirr,
		Metrics:       m,
		LoginLimiter: newLimiter(ctx, L, m, "login",
			ratelimit.Per(5, 15*time.Minute),
			ratelimit.WithMessage("Too many login attempts, try again later"),
			ratelimit.WithRetryAfter(3*time.Minute),
		).Middleware,
		UploadLimiter: newLimiter(ctx, L, m, "upload",
			ratelimit.Per(10, time.Minute),
			ratelimit.WithMessage("Too many uploads, try again later"),
			ratelimit.WithRetryAfter(6*time.Second),
		).Middleware,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "admin api")
	}

	a.view, err = viewhttp.NewAPI(viewhttp.Options{
		Logger:    L.With("component", "view"),
		Store:     store,
		Devices:   presets,
		Templates: tmpl,
		BaseURL:   baseURL,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "view api")
	}

	playables, err := sitehandler.New(sitehandler.Options{
		Logger:   L.With("component", "playables"),
		Root:     store.Root(),
		OnDenied: m.IncServeDenied,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "playable handler")
	}
	a.site = sitehttp.New(playables, webassets.StaticFS())
	return a, nil
}

func openStore(ctx context.Context, conf cfg.App, L log.Logger, m *metrics.ServerMetrics) (*content.Store, error) {
	layout := content.LayoutFlatten
	if conf.PreserveArchiveDirs {
		layout = content.LayoutPreserve
	}
	store, err := content.NewStore(conf.UploadsDir,
		content.WithLogger(L.With("component", "content")),
		content.WithLimits(content.Limits{
			MaxEntries:   conf.MaxArchiveEntries,
			MaxEntrySize: conf.MaxEntrySize.Int64(),
			MaxTotalSize: conf.MaxExtractSize.Int64(),
			Layout:       layout,
		}),
	)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open uploads dir %s", conf.UploadsDir)
	}
	if entries, err := store.List(); err == nil {
		m.SetStored(len(entries))
		L.Info(ctx, "content store opened", "root", store.Root(), "playables", len(entries))
	}
	return store, nil
}

func newSessions(ctx context.Context, conf cfg.App, L log.Logger) (*session.Manager, error) {
	opts := []session.Option{
		session.WithTTL(conf.SessionTTL),
		session.WithSecureCookies(conf.SecureCookies),
		session.WithLogger(L.With("component", "session")),
	}
	if conf.AdminPasswordHash != "" {
		opts = append(opts, session.WithPasswordHash(conf.AdminPasswordHash))
	} else {
		L.Warn(ctx, "using plain admin password from config, prefer admin-password-hash")
		opts = append(opts, session.WithPassword(conf.AdminPassword))
	}
	sm, err := session.NewManager(ctx, opts...)
	return sm, xerrors.Wrap(err, "session manager")
}

// newLimiter counts every denial, logs the first per IP and warns when the
// visitor map is full.
func newLimiter(ctx context.Context, L log.Logger, m *metrics.ServerMetrics, name string, opts ...ratelimit.Option) *ratelimit.IPLimiter {
	return ratelimit.New(ctx, append([]ratelimit.Option{
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "limiter", name, "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted", "limiter", name)
		}),
	}, opts...)...)
}
