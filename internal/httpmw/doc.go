// Package httpmw provides HTTP middleware for the public-facing server.
//
// httpserver.NewHandler composes it outermost first: panic recovery,
// request ID, client IP extraction, OTEL tracing, metrics, structured
// logging, body limits, security headers, then the chi router. Route groups
// add rate limiting, authentication and NoStore on top.
//
// User-supplied data (query params, user-agent, headers) is kept out of
// logs to prevent PII leaks and log injection.
package httpmw
