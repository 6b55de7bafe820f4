package adapters

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"applypilot/internal/logging/types"
)

// FileAdapter writes entries to a log file with size or age based rotation
type FileAdapter struct {
	name         string
	config       FileConfig
	mu           sync.Mutex
	file         *os.File
	size         int64
	lastRotation time.Time
}

// FileConfig configures the file sink
type FileConfig struct {
	FilePath       string        `yaml:"file_path"`
	Format         string        `yaml:"format"`          // json or text
	MaxSize        int64         `yaml:"max_size"`        // bytes, 0 disables size rotation
	MaxAge         time.Duration `yaml:"max_age"`         // 0 disables age rotation
	MaxBackups     int           `yaml:"max_backups"`     // rotated files to keep
	Compress       bool          `yaml:"compress"`        // gzip rotated files
	CreateDirs     bool          `yaml:"create_dirs"`     // create parent directories
	FileMode       os.FileMode   `yaml:"file_mode"`       // permissions for new files
	SyncOnWrite    bool          `yaml:"sync_on_write"`   // fsync after every entry
	RotationPolicy string        `yaml:"rotation_policy"` // size, time, or both
}

// NewFileAdapter creates a file adapter and opens its log file
func NewFileAdapter(name string, config FileConfig) (*FileAdapter, error) {
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 10
	}
	if config.RotationPolicy == "" {
		config.RotationPolicy = "size"
	}

	if config.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	a := &FileAdapter{
		name:         name,
		config:       config,
		lastRotation: time.Now(),
	}
	if err := a.open(); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return a, nil
}

// Write appends one entry, rotating first when the policy calls for it
func (a *FileAdapter) Write(entry *types.LogEntry) error {
	line, err := formatEntry(entry, a.config.Format, false)
	if err != nil {
		return fmt.Errorf("format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dueForRotation() {
		if err := a.rotate(); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}

	n, err := a.file.WriteString(line + "\n")
	if err != nil {
		return fmt.Errorf("write log file: %w", err)
	}
	a.size += int64(n)

	if a.config.SyncOnWrite {
		if err := a.file.Sync(); err != nil {
			return fmt.Errorf("sync log file: %w", err)
		}
	}
	return nil
}

// Close closes the current log file
func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func (a *FileAdapter) Name() string { return a.name }

func (a *FileAdapter) open() error {
	file, err := os.OpenFile(a.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, a.config.FileMode)
	if err != nil {
		return err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	a.file = file
	a.size = stat.Size()
	return nil
}

func (a *FileAdapter) dueForRotation() bool {
	bySize := a.config.MaxSize > 0 && a.size >= a.config.MaxSize
	byAge := a.config.MaxAge > 0 && time.Since(a.lastRotation) >= a.config.MaxAge

	switch a.config.RotationPolicy {
	case "time":
		return byAge
	case "both":
		return bySize || byAge
	default:
		return bySize
	}
}

// rotate renames the current file aside with a timestamp suffix, optionally
// compresses it, prunes old backups and reopens a fresh file
func (a *FileAdapter) rotate() error {
	if a.file != nil {
		if err := a.file.Close(); err != nil {
			return err
		}
		a.file = nil
	}

	backupPath := fmt.Sprintf("%s.%s", a.config.FilePath, time.Now().Format("20060102-150405"))
	if err := os.Rename(a.config.FilePath, backupPath); err != nil {
		return err
	}

	// Compression and pruning failures leave backups behind but must not
	// stall logging
	if a.config.Compress {
		if err := compressFile(backupPath); err != nil {
			fmt.Fprintf(os.Stderr, "compress rotated log %s: %v\n", backupPath, err)
		}
	}
	if err := a.pruneBackups(); err != nil {
		fmt.Fprintf(os.Stderr, "prune log backups: %v\n", err)
	}

	if err := a.open(); err != nil {
		return err
	}
	a.lastRotation = time.Now()
	return nil
}

// compressFile gzips the file in place, replacing it with a .gz sibling
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// pruneBackups removes rotated files beyond MaxBackups, oldest first
func (a *FileAdapter) pruneBackups() error {
	dir := filepath.Dir(a.config.FilePath)
	base := filepath.Base(a.config.FilePath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasPrefix(name, base+".") {
			backups = append(backups, filepath.Join(dir, name))
		}
	}
	if len(backups) <= a.config.MaxBackups {
		return nil
	}

	sort.Slice(backups, func(i, j int) bool {
		statI, errI := os.Stat(backups[i])
		statJ, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return false
		}
		return statI.ModTime().After(statJ.ModTime())
	})

	for _, backup := range backups[a.config.MaxBackups:] {
		if err := os.Remove(backup); err != nil {
			fmt.Fprintf(os.Stderr, "remove old log backup %s: %v\n", backup, err)
		}
	}
	return nil
}
