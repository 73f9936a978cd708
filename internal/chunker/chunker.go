// Package chunker provides deterministic fixed-size text splitting with
// overlap between consecutive chunks.
package chunker

// DefaultTargetSize is the default number of characters per chunk.
const DefaultTargetSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// Splitter splits text into bounded, overlapping segments. Splitting is
// deterministic for identical (text, targetSize, overlap), which the
// ingestion idempotency check depends on.
type Splitter struct {
	targetSize int
	overlap    int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithTargetSize sets the chunk size in characters.
func WithTargetSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.targetSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.targetSize {
		s.overlap = s.targetSize / 4
	}

	return s
}

// TargetSize returns the configured chunk size.
func (s *Splitter) TargetSize() int { return s.targetSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the ordered segments of text. Empty text produces no
// segments; text shorter than the target size produces exactly one.
// Boundaries are computed over runes so multi-byte characters are never
// cut in half.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)

	if total <= s.targetSize {
		return []string{text}
	}

	step := s.targetSize - s.overlap
	segments := make([]string, 0, total/step+1)

	for start := 0; start < total; start += step {
		end := start + s.targetSize
		if end > total {
			end = total
		}
		segments = append(segments, string(runes[start:end]))
		if end == total {
			break
		}
	}

	return segments
}
