package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// FileModelStore persists models as one JSON file each, organisms under
// organisms/<name>.json and communities under communities/<sample>.json
// (".host.json" for the host-coupled variant). Writes are atomic: temp
// file plus rename.
type FileModelStore struct {
	organismDir  string
	communityDir string
}

// NewFileModelStore creates a file-backed model store rooted at dir.
func NewFileModelStore(dir string) (*FileModelStore, error) {
	s := &FileModelStore{
		organismDir:  filepath.Join(dir, "organisms"),
		communityDir: filepath.Join(dir, "communities"),
	}
	for _, d := range []string{s.organismDir, s.communityDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("model store: create %s: %w", d, err)
		}
	}
	return s, nil
}

// LoadOrganism implements ModelStore.
func (s *FileModelStore) LoadOrganism(ctx context.Context, name string) (*model.Model, error) {
	return s.read(filepath.Join(s.organismDir, name+".json"))
}

// SaveOrganism implements ModelStore.
func (s *FileModelStore) SaveOrganism(ctx context.Context, name string, m *model.Model) error {
	return s.write(filepath.Join(s.organismDir, name+".json"), m)
}

// SaveCommunity implements ModelStore.
func (s *FileModelStore) SaveCommunity(ctx context.Context, sampleID string, m *model.Model, hostCoupled bool) error {
	return s.write(s.communityPath(sampleID, hostCoupled), m)
}

// LoadCommunity implements ModelStore.
func (s *FileModelStore) LoadCommunity(ctx context.Context, sampleID string, hostCoupled bool) (*model.Model, error) {
	return s.read(s.communityPath(sampleID, hostCoupled))
}

// HasCommunity implements ModelStore.
func (s *FileModelStore) HasCommunity(ctx context.Context, sampleID string, hostCoupled bool) (bool, error) {
	_, err := os.Stat(s.communityPath(sampleID, hostCoupled))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Close implements ModelStore. The file store holds no resources.
func (s *FileModelStore) Close() error { return nil }

func (s *FileModelStore) communityPath(sampleID string, hostCoupled bool) string {
	name := sampleID + ".json"
	if hostCoupled {
		name = sampleID + ".host.json"
	}
	return filepath.Join(s.communityDir, name)
}

func (s *FileModelStore) read(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("model store: %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("model store: read %s: %w", path, err)
	}
	var enc modelJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("model store: parse %s: %w", path, err)
	}
	m, err := decodeModel(enc)
	if err != nil {
		return nil, fmt.Errorf("model store: %s: %w", path, err)
	}
	return m, nil
}

func (s *FileModelStore) write(path string, m *model.Model) error {
	data, err := json.Marshal(encodeModel(m))
	if err != nil {
		return fmt.Errorf("model store: encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("model store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("model store: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("model store: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("model store: replace %s: %w", path, err)
	}
	return nil
}
