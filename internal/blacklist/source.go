// Package blacklist answers whether a caller number or name is blocked.
package blacklist

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Lists is one snapshot of the blocked numbers and name fragments.
type Lists struct {
	Numbers []string `json:"numbers"`
	Names   []string `json:"names"`
}

// Source provides the current lists. Implementations decide how fresh the
// data is; the oracle asks on every evaluation.
type Source interface {
	Load() (Lists, error)
}

// FileSource reads two flat files, one entry per line, on every Load. Blank
// lines and lines starting with '#' are skipped. A missing file is an empty
// list.
type FileSource struct {
	fs          afero.Fs
	numbersPath string
	namesPath   string

	mu sync.Mutex // serialises appends
}

func NewFileSource(fs afero.Fs, numbersPath, namesPath string) *FileSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSource{fs: fs, numbersPath: numbersPath, namesPath: namesPath}
}

func (s *FileSource) Load() (Lists, error) {
	numbers, err := s.readList(s.numbersPath)
	if err != nil {
		return Lists{}, err
	}
	names, err := s.readList(s.namesPath)
	if err != nil {
		return Lists{}, err
	}
	return Lists{Numbers: numbers, Names: names}, nil
}

func (s *FileSource) readList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read blacklist %s: %w", path, err)
	}

	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan blacklist %s: %w", path, err)
	}
	return entries, nil
}

// AppendNumber adds one entry to the numbers file.
func (s *FileSource) AppendNumber(number string) error {
	return s.appendLine(s.numbersPath, number)
}

// AppendName adds one entry to the names file.
func (s *FileSource) AppendName(name string) error {
	return s.appendLine(s.namesPath, name)
}

func (s *FileSource) appendLine(path, entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" || strings.ContainsAny(entry, "\r\n") {
		return fmt.Errorf("invalid blacklist entry %q", entry)
	}
	if path == "" {
		return fmt.Errorf("blacklist file not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep the previous last line intact when the file lacks a final newline.
	prefix := ""
	if data, err := afero.ReadFile(s.fs, path); err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}

	f, err := s.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open blacklist %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(prefix + entry + "\n"); err != nil {
		return fmt.Errorf("append blacklist %s: %w", path, err)
	}
	return nil
}

// CachedSource keeps the last snapshot of another source for ttl. A failed
// refresh keeps serving the previous snapshot.
type CachedSource struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	lists    Lists
	loadedAt time.Time
	loaded   bool
}

func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, ttl: ttl, now: time.Now}
}

func (c *CachedSource) Load() (Lists, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.loaded && now.Sub(c.loadedAt) < c.ttl {
		return c.lists, nil
	}

	lists, err := c.src.Load()
	if err != nil {
		if c.loaded {
			return c.lists, nil
		}
		return Lists{}, err
	}
	c.lists = lists
	c.loadedAt = now
	c.loaded = true
	return lists, nil
}

// Invalidate forces the next Load to hit the underlying source.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
