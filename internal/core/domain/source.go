package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SourceDescriptor is what the source watcher delivers for a new or
// changed source. Exactly one of Content and Rows is set: Content for
// textual sources, Rows (header first) for tabular ones.
type SourceDescriptor struct {
	// ID is the stable external identifier for the source.
	ID string

	// Title is the human-readable title.
	Title string

	// URL is the original location.
	URL string

	// Content is the extracted text of a textual source.
	Content string

	// Rows holds a tabular source's records. Rows[0] is the header.
	Rows [][]string

	// LastModified is the watcher's modification timestamp. The engine
	// detects change by content hash, not by trusting this value.
	LastModified time.Time
}

// IsTabular reports whether the descriptor carries structured rows.
func (d *SourceDescriptor) IsTabular() bool {
	return len(d.Rows) > 0
}

// ContentHash returns the canonical SHA-256 hash of the descriptor's
// content, used as the idempotency watermark. Byte-identical content
// always hashes identically, independent of LastModified.
func (d *SourceDescriptor) ContentHash() string {
	h := sha256.New()
	if d.IsTabular() {
		for _, row := range d.Rows {
			for _, cell := range row {
				h.Write([]byte(cell))
				h.Write([]byte{0x1f}) // unit separator between cells
			}
			h.Write([]byte{0x1e}) // record separator between rows
		}
	} else {
		h.Write([]byte(d.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
