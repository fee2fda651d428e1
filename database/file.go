package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// GlobalsFile is the reserved file name for global statics and namespace
// declarations inside a mapping directory. Every other *.json file in the
// directory is one integration mapping.
const GlobalsFile = "globals.json"

type fileGlobals struct {
	StaticValues map[string]string `json:"static_values,omitempty"`
	Namespaces   map[string]string `json:"namespaces,omitempty"`
}

// FileStore serves mapping configuration from a directory of JSON files. The
// directory is read once at construction; Reload re-reads it on demand. A
// mapping file without a mapping_id gets a stable ID derived from its file
// name so lookups by ID survive restarts and reloads.
type FileStore struct {
	dir string

	mu         sync.RWMutex
	mappings   []model.IntegrationMapping
	byID       map[string]int
	byName     map[string]int
	byEndpoint map[string]int
	statics    map[string]string
	namespaces map[string]string
}

func NewFileStore(dir string) (*FileStore, error) {
	store := &FileStore{dir: dir}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Reload re-reads the mapping directory and swaps the loaded state in one
// step. On error the previously loaded state is left untouched.
func (s *FileStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading mapping directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var mappings []model.IntegrationMapping
	byID := map[string]int{}
	byName := map[string]int{}
	byEndpoint := map[string]int{}
	statics := map[string]string{}
	namespaces := map[string]string{}

	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		if name == GlobalsFile {
			var globals fileGlobals
			if err := json.Unmarshal(data, &globals); err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}
			for k, v := range globals.StaticValues {
				statics[k] = v
			}
			for k, v := range globals.Namespaces {
				namespaces[k] = v
			}
			continue
		}

		var mapping model.IntegrationMapping
		if err := json.Unmarshal(data, &mapping); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if mapping.MappingID == "" {
			mapping.MappingID = "map_" + strings.TrimSuffix(name, ".json")
		}
		if err := mapping.ValidateIntegrationMapping(); err != nil {
			return fmt.Errorf("invalid mapping in %s: %w", path, err)
		}
		if _, exists := byID[mapping.MappingID]; exists {
			return fmt.Errorf("duplicate mapping id %q in %s", mapping.MappingID, name)
		}
		if _, exists := byName[mapping.Name]; exists {
			return fmt.Errorf("duplicate mapping name %q in %s", mapping.Name, name)
		}
		if _, exists := byEndpoint[mapping.Endpoint]; exists {
			return fmt.Errorf("duplicate endpoint %q in %s", mapping.Endpoint, name)
		}

		byID[mapping.MappingID] = len(mappings)
		byName[mapping.Name] = len(mappings)
		byEndpoint[mapping.Endpoint] = len(mappings)
		mappings = append(mappings, mapping)
	}

	s.mu.Lock()
	s.mappings = mappings
	s.byID = byID
	s.byName = byName
	s.byEndpoint = byEndpoint
	s.statics = statics
	s.namespaces = namespaces
	s.mu.Unlock()

	return nil
}

func (s *FileStore) GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.mappings) {
		return []model.IntegrationMapping{}, nil
	}

	end := offset + limit
	if end > len(s.mappings) {
		end = len(s.mappings)
	}

	out := make([]model.IntegrationMapping, end-offset)
	copy(out, s.mappings[offset:end])
	return out, nil
}

func (s *FileStore) GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byID, id)
}

func (s *FileStore) GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byName, name)
}

func (s *FileStore) GetMappingByEndpoint(ctx context.Context, endpoint string) (*model.IntegrationMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byEndpoint, endpoint)
}

func (s *FileStore) GetGlobalStatics(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStringMap(s.statics), nil
}

func (s *FileStore) GetNamespaces(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStringMap(s.namespaces), nil
}

// lookup must be called with the read lock held. It returns a copy so callers
// never alias the store's backing slice.
func (s *FileStore) lookup(index map[string]int, key string) (*model.IntegrationMapping, error) {
	i, ok := index[key]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", nil)
	}
	mapping := s.mappings[i]
	return &mapping, nil
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
