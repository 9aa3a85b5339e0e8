// Package ratelimit provides per-IP rate limiting with background eviction
// of stale entries.
//
// This is a single-instance, in-memory rate limiter. The server keeps one
// limiter per protected route (login, upload) plus a loose global one. It
// does not protect against distributed attacks or bandwidth-bill attacks;
// inbound data is already accepted by the time this runs. Use an upstream
// WAF or CDN-level rate limiting for those.
package ratelimit
