package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	componentsDir = "components"
	pagesDir      = "pages"
	indexPage     = "index"
)

var documentExts = []string{".json", ".yaml", ".yml"}

// FileStore keeps one document per file:
//
//	<dir>/components/<id>.json|yaml|yml
//	<dir>/pages/<name>.json|yaml|yml
//
// A component's id defaults to its file name. A page's route defaults to
// "/<name>", with index.* serving "/".
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore opens dir, creating the component and page directories when
// they are missing.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	for _, sub := range []string{componentsDir, pagesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", sub, err)
		}
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// GetComponent implements Store.
func (s *FileStore) GetComponent(_ context.Context, id string) (*Component, error) {
	if !validName(id) {
		return nil, notFound("component", id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := findDocument(filepath.Join(s.dir, componentsDir), id)
	if !ok {
		return nil, notFound("component", id)
	}
	var c Component
	if err := readDocument(path, &c); err != nil {
		return nil, decodeError("component", id, err)
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.BlockTemplate == nil {
		return nil, decodeError("component", id, fmt.Errorf("missing blockTemplate"))
	}
	c.BlockTemplate.Normalize()
	return &c, nil
}

// GetPage implements Store.
func (s *FileStore) GetPage(_ context.Context, route string) (*Page, error) {
	route = CleanRoute(route)

	s.mu.RLock()
	defer s.mu.RUnlock()

	pages, err := s.scanPages()
	if err != nil {
		return nil, err
	}
	entry, ok := pages[route]
	if !ok {
		return nil, notFound("page", route)
	}
	normalizePage(entry.page)
	return entry.page, nil
}

// PutComponent implements Store. Components are written as JSON.
func (s *FileStore) PutComponent(_ context.Context, c *Component) error {
	if err := validateComponent(c); err != nil {
		return err
	}
	if !validName(c.ID) {
		return fmt.Errorf("invalid component id %q", c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, componentsDir)
	removeDocuments(dir, c.ID)
	return writeJSON(filepath.Join(dir, c.ID+".json"), c)
}

// PutPage implements Store. Pages are written as JSON.
func (s *FileStore) PutPage(_ context.Context, p *Page) error {
	if err := validatePage(p); err != nil {
		return err
	}
	cp := *p
	cp.Route = CleanRoute(p.Route)

	s.mu.Lock()
	defer s.mu.Unlock()

	// an existing file for the route is overwritten in place
	pages, err := s.scanPages()
	if err != nil {
		return err
	}
	dir := filepath.Join(s.dir, pagesDir)
	name := pageFileName(cp.Route)
	if existing, ok := pages[cp.Route]; ok {
		name = existing.file
	}
	removeDocuments(dir, name)
	return writeJSON(filepath.Join(dir, name+".json"), &cp)
}

// ListComponents implements Store.
func (s *FileStore) ListComponents(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := listDocuments(filepath.Join(s.dir, componentsDir))
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ListPages implements Store.
func (s *FileStore) ListPages(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages, err := s.scanPages()
	if err != nil {
		return nil, err
	}
	routes := make([]string, 0, len(pages))
	for r := range pages {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

type pageEntry struct {
	page *Page
	file string // name without extension
}

// scanPages decodes every page file, keyed by route. Pages keep their
// file name in Name when they do not declare one.
func (s *FileStore) scanPages() (map[string]pageEntry, error) {
	dir := filepath.Join(s.dir, pagesDir)
	names, err := listDocuments(dir)
	if err != nil {
		return nil, err
	}

	pages := make(map[string]pageEntry, len(names))
	for _, name := range names {
		path, ok := findDocument(dir, name)
		if !ok {
			continue
		}
		var p Page
		if err := readDocument(path, &p); err != nil {
			return nil, decodeError("page", name, err)
		}
		if p.Name == "" {
			p.Name = name
		}
		if p.Route == "" {
			if name == indexPage {
				p.Route = "/"
			} else {
				p.Route = "/" + name
			}
		}
		p.Route = CleanRoute(p.Route)
		if _, dup := pages[p.Route]; !dup {
			pages[p.Route] = pageEntry{page: &p, file: name}
		}
	}
	return pages, nil
}

func pageFileName(route string) string {
	name := strings.ReplaceAll(strings.Trim(route, "/"), "/", "_")
	if name == "" {
		return indexPage
	}
	return name
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// findDocument returns the first existing file for name in extension
// order.
func findDocument(dir, name string) (string, bool) {
	for _, ext := range documentExts {
		path := filepath.Join(dir, name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func removeDocuments(dir, name string) {
	for _, ext := range documentExts {
		os.Remove(filepath.Join(dir, name+ext))
	}
}

// listDocuments returns the sorted, unique document names in dir.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !isDocumentExt(ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func isDocumentExt(ext string) bool {
	for _, e := range documentExts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// readDocument decodes a JSON or YAML file into v. YAML documents are
// converted to JSON first so both formats share the JSON decoders of the
// block model.
func readDocument(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = YAMLToJSON(data)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// YAMLToJSON converts a YAML document to JSON.
func YAMLToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	v, err := jsonCompatible(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// jsonCompatible converts the maps yaml.v3 produces for non-string keys.
func jsonCompatible(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			x[k] = conv
		}
		return x, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = conv
		}
		return out, nil
	case []any:
		for i, val := range x {
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			x[i] = conv
		}
		return x, nil
	}
	return v, nil
}
