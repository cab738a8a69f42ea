// Package notify sends an optional completion notification via Shoutrrr
// once a run finishes, reporting chunk counts and run status.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/kaelstream/lfmsum/internal/config"
)

// Notifier delivers a single completion message via a Shoutrrr URL.
type Notifier struct {
	enabled     bool
	shoutrrrURL string
}

// New initializes a Notifier from cfg. A disabled config (the default)
// yields a Notifier whose Send is always a no-op.
func New(cfg *config.NotificationConfig) (*Notifier, error) {
	if !cfg.Enabled {
		return &Notifier{}, nil
	}
	url := strings.TrimSpace(cfg.ShoutrrrURL)
	if url == "" {
		return nil, fmt.Errorf("notification enabled but shoutrrr_url not configured: provide a URL such as slack://token@channel")
	}
	return &Notifier{enabled: true, shoutrrrURL: url}, nil
}

// Send reports run completion: chunk count, a run identifier, and whether
// the run ended in error.
func (n *Notifier) Send(runID string, chunkCount int, runErr error) error {
	if n == nil || !n.enabled {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("lfmsum run complete\n")
	fmt.Fprintf(&sb, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "run: %s\n", runID)
	fmt.Fprintf(&sb, "chunks: %d\n", chunkCount)
	if runErr != nil {
		fmt.Fprintf(&sb, "status: failed (%v)\n", runErr)
	} else {
		sb.WriteString("status: ok\n")
	}

	if err := shoutrrr.Send(n.shoutrrrURL, sb.String()); err != nil {
		return fmt.Errorf("notify: send via %s: %w", serviceName(n.shoutrrrURL), err)
	}
	return nil
}

// IsEnabled reports whether this Notifier will actually send anything.
func (n *Notifier) IsEnabled() bool {
	return n != nil && n.enabled
}

func serviceName(url string) string {
	if idx := strings.Index(url, "://"); idx > 0 {
		return url[:idx]
	}
	return "unknown"
}
