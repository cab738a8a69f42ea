// Package tracelog writes optional Markdown traces of every inference call
// (worker, reducer, meta-prompt) for debugging and prompt-engineering, one
// file per call. Disabled by default; when disabled every method is a
// no-op so callers never branch on the enabled flag themselves.
package tracelog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Tracer logs inference calls to {baseDir}/{runID}/{seq}-{stage}.md.
type Tracer struct {
	baseDir string
	enabled bool
	runID   string
	seq     int64 // incremented atomically: workers and the reducer call LogCall concurrently
}

// New creates a Tracer rooted at baseDir. If enabled is false, LogCall is a
// no-op and no directory is created. runID namespaces this run's trace files
// from any other concurrent invocation writing to the same baseDir.
func New(baseDir string, enabled bool) *Tracer {
	return &Tracer{
		baseDir: baseDir,
		enabled: enabled,
		runID:   uuid.NewString(),
	}
}

// Enabled reports whether tracing is active.
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// RunID returns the identifier this Tracer namespaces its trace files under,
// reused by the CLI as the completion-notification run identifier so both
// refer to the same invocation.
func (t *Tracer) RunID() string {
	if t == nil {
		return ""
	}
	return t.runID
}

// LogCall records one prompt/output pair for stage (e.g. "worker",
// "reducer-intermediate", "reducer-final", "meta-prompt") tagged with index
// (the chunk index for worker calls, the count of intermediate reduces done
// so far for reducer calls, -1 for the meta-prompt).
func (t *Tracer) LogCall(stage string, index int, prompt, output string) error {
	if !t.Enabled() {
		return nil
	}

	runDir := filepath.Join(t.baseDir, t.runID)
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return fmt.Errorf("tracelog: create run dir: %w", err)
	}

	seq := atomic.AddInt64(&t.seq, 1)
	filename := fmt.Sprintf("%04d-%s.md", seq, sanitize(stage))
	content := fmt.Sprintf(`# %s

**Run**: %s
**Index**: %d
**Timestamp**: %s

## Prompt

%s

## Output

%s
`, stage, t.runID, index, time.Now().UTC().Format(time.RFC3339), prompt, output)

	if err := os.WriteFile(filepath.Join(runDir, filename), []byte(content), 0o600); err != nil {
		return fmt.Errorf("tracelog: write %s: %w", filename, err)
	}
	return nil
}

func sanitize(name string) string {
	invalid := []rune{'/', '\\', ':', '*', '?', '"', '<', '>', '|', ' '}
	result := []rune(name)
	for i, r := range result {
		for _, bad := range invalid {
			if r == bad {
				result[i] = '_'
				break
			}
		}
	}
	return string(result)
}
