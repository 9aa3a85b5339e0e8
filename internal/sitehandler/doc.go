// Package sitehandler serves files out of playable content directories.
//
// Every request is resolved from scratch: the playable id and the relative
// file path are validated, the joined path is confirmed to stay inside the
// playable's directory (symlinks included), the file must exist, and its
// extension must map to a content type on a fixed allow-list. Only then is
// the file streamed, with the resolved Content-Type and nosniff.
package sitehandler
