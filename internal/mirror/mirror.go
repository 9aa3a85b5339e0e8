// Package mirror copies accepted uploads to durable storage outside the
// local uploads directory. The local store stays authoritative; a mirror
// failure never rejects an upload.
package mirror

import (
	"context"
)

// Object is one accepted upload, still staged on local disk.
type Object struct {
	ID       string
	Filename string
	Kind     string
	Path     string
	Size     int64
	SHA256   string // hex
}

type Mirror interface {
	Put(ctx context.Context, obj Object) error
}

// Nop discards every object.
type Nop struct{}

func (Nop) Put(context.Context, Object) error { return nil }
