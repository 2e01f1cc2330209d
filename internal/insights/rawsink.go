package insights

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawSink persists raw model responses to timestamped files so malformed
// responses can be replayed through the parser offline.
type RawSink struct {
	dir string
}

// NewRawSink creates a sink writing into dir. The directory is created on
// first save, not here, so constructing a sink never touches the disk.
func NewRawSink(dir string) *RawSink {
	return &RawSink{dir: dir}
}

// Save writes one raw response with a short provenance header and returns
// the file path. The write goes through a temp file and rename so a crash
// mid-write never leaves a truncated response on disk.
func (s *RawSink) Save(clientName, raw string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create raw response dir: %w", err)
	}

	now := time.Now()
	name := fmt.Sprintf("%s_raw_%s_%s.txt",
		sanitizeName(clientName),
		now.Format("20060102_150405"),
		uuid.New().String()[:8],
	)
	path := filepath.Join(s.dir, name)

	header := fmt.Sprintf("Raw model response for: %s\nSaved at: %s\n%s\n\n",
		clientName, now.Format(time.RFC3339), strings.Repeat("=", 60))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(header+raw), 0o644); err != nil {
		return "", fmt.Errorf("failed to write raw response: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize raw response: %w", err)
	}
	return path, nil
}

// sanitizeName makes a client name safe for a filename.
func sanitizeName(name string) string {
	if name == "" {
		return "unknown"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
	mapped = strings.Trim(mapped, "_")
	if mapped == "" {
		return "unknown"
	}
	return mapped
}
