package sitehandler

import (
	"path"
	"strings"
)

// contentTypes is the only source of content types for served files; the
// host's mime database is never consulted.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".woff":  "font/woff",
	".woff2": "font/woff2",

	// recognized, never served
	".txt":  "text/plain; charset=utf-8",
	".xml":  "application/xml",
	".ico":  "image/x-icon",
	".ttf":  "font/ttf",
	".ogg":  "audio/ogg",
	".wasm": "application/wasm",
	".php":  "application/x-httpd-php",
	".sh":   "application/x-sh",
	".exe":  "application/octet-stream",
}

var allowedTypes = map[string]bool{
	"text/html":              true,
	"text/css":               true,
	"text/javascript":        true,
	"application/javascript": true,
	"application/json":       true,
	"image/png":              true,
	"image/jpeg":             true,
	"image/gif":              true,
	"image/webp":             true,
	"image/svg+xml":          true,
	"audio/mpeg":             true,
	"audio/wav":              true,
	"video/mp4":              true,
	"video/webm":             true,
	"font/woff":              true,
	"font/woff2":             true,
}

// ContentTypeFor returns the Content-Type for name and whether that type is
// allowed to be served.
func ContentTypeFor(name string) (string, bool) {
	ext := strings.ToLower(path.Ext(name))
	ct, ok := contentTypes[ext]
	if !ok {
		return "", false
	}
	base, _, _ := strings.Cut(ct, ";")
	if !allowedTypes[strings.TrimSpace(base)] {
		return "", false
	}
	return ct, true
}
