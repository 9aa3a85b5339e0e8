package opshttp

import (
	"net/http"

	"github.com/keithlinneman/playable-preview/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	// AllowPublic skips the loopback/private network check on every request
	AllowPublic bool

	// OnPanic is called when a handler panic is recovered, e.g. to count it
	OnPanic func()
}
