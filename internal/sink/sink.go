// Package sink writes finished metadata to image files and export files.
package sink

import (
	"path/filepath"
	"strings"

	"github.com/raine/stockmeta/internal/platform"
)

// Result reports the outcome of one metadata write. Sink failures never
// abort a batch; they are collected and reported at the end.
type Result struct {
	OK      bool   `json:"ok"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func failed(path, format string, err error) Result {
	msg := format
	if err != nil {
		msg += ": " + err.Error()
	}
	return Result{Path: path, Message: msg}
}

// MetadataWriter embeds a projection into (or next to) an image file.
type MetadataWriter interface {
	WriteMetadata(path string, p platform.Projection) Result
}

var iptcFormats = map[string]bool{".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true}

// SupportsIPTC reports whether path is a format exiftool can embed IPTC into.
func SupportsIPTC(path string) bool {
	return iptcFormats[strings.ToLower(filepath.Ext(path))]
}

// Chain tries the IPTC writer for capable formats and falls back to the
// sidecar for everything else or when embedding fails.
type Chain struct {
	IPTC    MetadataWriter
	Sidecar MetadataWriter
}

// WriteMetadata implements MetadataWriter.
func (c Chain) WriteMetadata(path string, p platform.Projection) Result {
	if c.IPTC != nil && SupportsIPTC(path) {
		res := c.IPTC.WriteMetadata(path, p)
		if res.OK || c.Sidecar == nil {
			return res
		}
	}
	if c.Sidecar != nil {
		return c.Sidecar.WriteMetadata(path, p)
	}
	return Result{Path: path, Message: "no metadata writer configured"}
}
