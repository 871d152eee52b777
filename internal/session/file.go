package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// FileStore is a MemoryStore that rewrites one file after every change. The
// extension picks the format: .toml for TOML, anything else for JSON.
type FileStore struct {
	*MemoryStore
	path  string
	codec codec
}

type fileSchema struct {
	Sessions map[string]Session `json:"sessions" toml:"sessions"`
}

type codec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	jsonCodec = codec{
		marshal:   func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		unmarshal: json.Unmarshal,
	}
	tomlCodec = codec{
		marshal:   toml.Marshal,
		unmarshal: toml.Unmarshal,
	}
)

func codecFor(path string) codec {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return tomlCodec
	}
	return jsonCodec
}

// NewFileStore loads path if it exists. A missing file is an empty store.
func NewFileStore(path string, opts Options) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("session file path is empty")
	}
	f := &FileStore{
		MemoryStore: NewMemoryStore(opts),
		path:        path,
		codec:       codecFor(path),
	}
	loaded, err := f.load()
	if err != nil {
		return nil, err
	}
	f.MemoryStore.sessions = loaded
	f.MemoryStore.onChange = f.save
	return f, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) load() (map[int64]Session, error) {
	sessions := make(map[int64]Session)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return sessions, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions %s: %w", f.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return sessions, nil
	}

	var decoded fileSchema
	if err := f.codec.unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode sessions %s: %w", f.path, err)
	}
	for k, v := range decoded.Sessions {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		if v.Validate() != nil {
			continue
		}
		sessions[id] = v
	}
	return sessions, nil
}

func (f *FileStore) save(sessions map[int64]Session) error {
	encoded := fileSchema{Sessions: make(map[string]Session, len(sessions))}
	for k, v := range sessions {
		encoded.Sessions[strconv.FormatInt(k, 10)] = v
	}
	data, err := f.codec.marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return writeAtomic(f.path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	return os.Rename(tmpPath, path)
}
