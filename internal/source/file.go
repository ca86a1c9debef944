package source

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/korimako/scentcover/internal/domain"
)

// LoadFile reads a JSON-lines measurement fixture into a Memory source.
// Malformed lines are skipped and counted, not fatal; the returned int is
// the number of skipped records. A missing or unreadable file is a read
// failure wrapping ErrUnavailable.
func LoadFile(path string, logger *slog.Logger) (*Memory, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}
	defer f.Close()

	mem := NewMemory()
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		m, err := domain.ParseMeasurement(line)
		if err != nil {
			skipped++
			logger.Warn("skipping malformed measurement record",
				"path", path, "line", lineNo, "error", err)
			continue
		}
		mem.Add(m)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}
	return mem, skipped, nil
}
