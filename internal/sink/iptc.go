package sink

import (
	"fmt"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/rs/zerolog/log"
)

// IPTCWriter embeds metadata with a long-running exiftool process.
type IPTCWriter struct {
	et *exiftool.Exiftool
	// exiftool reads commands from one stdin stream.
	mu sync.Mutex
}

// NewIPTCWriter starts exiftool. It fails when the binary is not installed.
func NewIPTCWriter() (*IPTCWriter, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}
	return &IPTCWriter{et: et}, nil
}

// Close stops the exiftool process.
func (w *IPTCWriter) Close() error {
	return w.et.Close()
}

// WriteMetadata implements MetadataWriter.
func (w *IPTCWriter) WriteMetadata(path string, p platform.Projection) Result {
	if !SupportsIPTC(path) {
		return Result{Path: path, Message: "format does not support IPTC"}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	fms := w.et.ExtractMetadata(path)
	if len(fms) == 0 {
		return failed(path, "exiftool returned no metadata", nil)
	}
	if fms[0].Err != nil {
		return failed(path, "failed to read metadata", fms[0].Err)
	}

	fm := &fms[0]
	fm.SetString("IPTC:ObjectName", p.Title)
	fm.SetString("IPTC:Caption-Abstract", p.Description)
	fm.SetStrings("IPTC:Keywords", p.Keywords)
	fm.SetString("XMP-dc:Title", p.Title)
	fm.SetString("XMP-dc:Description", p.Description)
	fm.SetStrings("XMP-dc:Subject", p.Keywords)
	if p.Category != "" {
		fm.SetString("XMP-photoshop:Category", p.Category)
	}

	w.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return failed(path, "failed to write metadata", fms[0].Err)
	}

	log.Debug().Str("path", path).Int("keywords", len(p.Keywords)).Msg("embedded IPTC metadata")
	return Result{OK: true, Path: path, Message: "IPTC metadata written"}
}
