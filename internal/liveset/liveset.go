package liveset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Entity is one live user. ProfilePicture is optional.
type Entity struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// Snapshot is the ordered set of live entities read at one instant.
type Snapshot []Entity

// Usernames returns the usernames in snapshot order.
func (s Snapshot) Usernames() []string {
	out := make([]string, 0, len(s))
	for _, e := range s {
		out = append(out, e.Username)
	}
	return out
}

// Links maps a username to its resolved stream URL.
type Links map[string]string

// ReadSnapshot reads the live-set file at path. It never returns an error;
// unreadable or malformed content yields an empty snapshot and is logged.
// Records without a username are dropped.
func ReadSnapshot(path string) Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("liveset: snapshot file missing", "path", path)
		} else {
			slog.Warn("liveset: read snapshot failed", "path", path, "err", err)
		}
		return Snapshot{}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		slog.Debug("liveset: snapshot file empty", "path", path)
		return Snapshot{}
	}

	var raw []Entity
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("liveset: malformed snapshot, treating as empty", "path", path, "err", err)
		return Snapshot{}
	}

	out := make(Snapshot, 0, len(raw))
	for _, e := range raw {
		if e.Username == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// WriteSnapshot replaces the live-set file atomically.
func WriteSnapshot(path string, snap Snapshot) error {
	if snap == nil {
		snap = Snapshot{}
	}
	if err := writeJSONAtomic(path, snap); err != nil {
		return fmt.Errorf("liveset: write snapshot: %w", err)
	}
	return nil
}

// ReadLinks reads the stream links file. An empty file yields empty Links.
// Unlike ReadSnapshot, a missing or malformed file is reported so the
// recorder can log it and retry on its next poll.
func ReadLinks(path string) (Links, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("liveset: read links: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Links{}, nil
	}
	var links Links
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("liveset: parse links: %w", err)
	}
	if links == nil {
		links = Links{}
	}
	return links, nil
}

// WriteLinks replaces the stream links file atomically.
func WriteLinks(path string, links Links) error {
	if links == nil {
		links = Links{}
	}
	if err := writeJSONAtomic(path, links); err != nil {
		return fmt.Errorf("liveset: write links: %w", err)
	}
	return nil
}

// writeJSONAtomic marshals v and renames a temp file over path so readers
// see either the old or the new content.
func writeJSONAtomic(path string, v any) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
