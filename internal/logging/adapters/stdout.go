package adapters

import (
	"fmt"
	"os"
	"sync"

	"applypilot/internal/logging/types"
)

// StdoutAdapter writes entries to standard output
type StdoutAdapter struct {
	name   string
	config StdoutConfig
	mu     sync.Mutex
}

// StdoutConfig configures the stdout sink
type StdoutConfig struct {
	Format    string `yaml:"format"`    // json or text
	Colorized bool   `yaml:"colorized"` // ANSI colors for text output
}

// NewStdoutAdapter creates a stdout adapter
func NewStdoutAdapter(name string, config StdoutConfig) *StdoutAdapter {
	return &StdoutAdapter{name: name, config: config}
}

// Write renders and prints one entry. The lock keeps concurrent session
// goroutines from interleaving lines.
func (a *StdoutAdapter) Write(entry *types.LogEntry) error {
	line, err := formatEntry(entry, a.config.Format, a.config.Colorized)
	if err != nil {
		return fmt.Errorf("format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = fmt.Fprintln(os.Stdout, line)
	return err
}

func (a *StdoutAdapter) Close() error { return nil }

func (a *StdoutAdapter) Name() string { return a.name }
