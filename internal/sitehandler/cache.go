package sitehandler

import (
	"path"
	"strings"
)

func cacheControlForFile(name string, o *Options) string {
	ext := strings.ToLower(path.Ext(name))

	switch ext {
	case ".html", ".htm":
		return o.HTMLCacheControl

	// playable content never changes under an id, so static assets can be cached
	case ".css", ".js", ".mjs",
		".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg",
		".mp3", ".wav", ".mp4", ".webm",
		".woff", ".woff2":
		return o.AssetCacheControl

	default:
		return o.OtherCacheControl
	}
}
