// Package state persists the download manifest: which attachment contents
// have already been written to disk, keyed by content hash, so a re-run of
// the download step skips work it already did.
package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Tracker interface {
	AlreadyDownloaded(hash string) bool
	MarkDownloaded(hash, path string) error
	Snapshot() Snapshot
}

type Snapshot struct {
	Downloaded int
}

type MemoryTracker struct {
	mu         sync.RWMutex
	downloaded map[string]string
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{downloaded: make(map[string]string)}
}

func (m *MemoryTracker) AlreadyDownloaded(hash string) bool {
	if hash == "" {
		return false
	}

	m.mu.RLock()
	_, ok := m.downloaded[hash]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryTracker) MarkDownloaded(hash, path string) error {
	if hash == "" {
		return nil
	}

	m.mu.Lock()
	m.downloaded[hash] = path
	m.mu.Unlock()
	return nil
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	count := len(m.downloaded)
	m.mu.RUnlock()
	return Snapshot{Downloaded: count}
}

// Manifest persists downloaded attachment hashes so future runs skip them.
type Manifest struct {
	*MemoryTracker
	path    string
	persist bool
	writer  *bufio.Writer
	file    *os.File
	writeMu sync.Mutex
}

type manifestRecord struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
}

func NewManifest(stateDir string, persist bool) (*Manifest, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	manifest := &Manifest{
		MemoryTracker: NewMemoryTracker(),
		path:          filepath.Join(stateDir, "downloads.jsonl"),
		persist:       persist,
	}

	if err := manifest.load(); err != nil {
		return nil, err
	}

	if persist {
		file, err := os.OpenFile(manifest.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open manifest for append: %w", err)
		}
		manifest.file = file
		manifest.writer = bufio.NewWriterSize(file, 64*1024)
	}

	return manifest, nil
}

func (m *Manifest) load() error {
	file, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var record manifestRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return fmt.Errorf("parse manifest line %d: %w", line, err)
		}
		if record.Hash == "" {
			continue
		}

		m.mu.Lock()
		m.downloaded[record.Hash] = record.Path
		m.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	return nil
}

func (m *Manifest) MarkDownloaded(hash, path string) error {
	if hash == "" {
		return nil
	}

	m.mu.Lock()
	if _, exists := m.downloaded[hash]; exists {
		m.mu.Unlock()
		return nil
	}
	m.downloaded[hash] = path
	m.mu.Unlock()

	if !m.persist {
		return nil
	}

	record := manifestRecord{Hash: hash, Path: path}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode manifest record: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if _, err := m.writer.Write(data); err != nil {
		return fmt.Errorf("write manifest record: %w", err)
	}
	if err := m.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	return nil
}

// Flush writes any buffered data to the underlying file.
func (m *Manifest) Flush() error {
	if !m.persist || m.writer == nil {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.writer.Flush(); err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("sync manifest: %w", err)
	}
	return nil
}

// Close flushes and closes the manifest file.
func (m *Manifest) Close() error {
	if !m.persist || m.file == nil {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var firstErr error
	if m.writer != nil {
		if err := m.writer.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush manifest: %w", err)
		}
	}
	if err := m.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync manifest: %w", err)
	}
	if err := m.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close manifest: %w", err)
	}

	return firstErr
}
