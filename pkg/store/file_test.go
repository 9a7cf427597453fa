package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sambeau/trellis/pkg/block"
	terrors "github.com/sambeau/trellis/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreComponents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "components", "card.json"),
		`{"name":"Card","blockTemplate":{"blockId":"c","element":"div"}}`)
	writeFile(t, filepath.Join(dir, "components", "hero.yaml"), `
name: Hero
blockTemplate:
  blockId: h
  element: section
  baseStyles:
    padding: 10
  props:
    items:
      value: []
      isStandard: true
      propOptions:
        type: array
`)

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	card, err := s.GetComponent(ctx, "card")
	if err != nil {
		t.Fatalf("GetComponent(card): %v", err)
	}
	if card.ID != "card" || card.Name != "Card" || card.BlockTemplate.Element != "div" {
		t.Errorf("unexpected card: %+v", card)
	}
	if card.BlockTemplate.BaseStyles == nil {
		t.Errorf("expected normalized template")
	}

	hero, err := s.GetComponent(ctx, "hero")
	if err != nil {
		t.Fatalf("GetComponent(hero): %v", err)
	}
	if got := hero.BlockTemplate.BaseStyles["padding"]; got != "10" {
		t.Errorf("expected padding 10, got %q", got)
	}
	if got := hero.BlockTemplate.Props["items"].StandardType(); got != "array" {
		t.Errorf("expected array prop, got %q", got)
	}

	ids, err := s.ListComponents(ctx)
	if err != nil {
		t.Fatalf("ListComponents: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"card", "hero"}) {
		t.Errorf("expected [card hero], got %v", ids)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, id := range []string{"missing", "../etc/passwd", ""} {
		_, err := s.GetComponent(ctx, id)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetComponent(%q): expected ErrNotFound, got %v", id, err)
		}
	}

	_, err = s.GetPage(ctx, "/nowhere")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var te *terrors.TrellisError
	if !errors.As(err, &te) || te.Code != "STORE-0001" {
		t.Errorf("expected STORE-0001, got %v", err)
	}
}

func TestFileStoreDecodeError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "components", "bad.json"), `{"blockTemplate": [`)
	writeFile(t, filepath.Join(dir, "components", "empty.json"), `{"name": "x"}`)

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"bad", "empty"} {
		_, err := s.GetComponent(context.Background(), id)
		var te *terrors.TrellisError
		if !errors.As(err, &te) || te.Code != "STORE-0002" {
			t.Errorf("GetComponent(%q): expected STORE-0002, got %v", id, err)
		}
	}
}

func TestFileStorePages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pages", "index.json"), `{"blocks":[{"element":"body"}]}`)
	writeFile(t, filepath.Join(dir, "pages", "about.yml"), "title: About\nblocks:\n  - element: main\n")
	writeFile(t, filepath.Join(dir, "pages", "blog.json"), `{"route":"/blog/latest/","blocks":[],"data":{"n":1}}`)

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	routes, err := s.ListPages(ctx)
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if !reflect.DeepEqual(routes, []string{"/", "/about", "/blog/latest"}) {
		t.Errorf("unexpected routes: %v", routes)
	}

	tests := []struct {
		route string
		name  string
	}{
		{"/", "index"},
		{"", "index"},
		{"about", "about"},
		{"/about/", "about"},
		{"/blog/latest", "blog"},
	}
	for _, tt := range tests {
		p, err := s.GetPage(ctx, tt.route)
		if err != nil {
			t.Errorf("GetPage(%q): %v", tt.route, err)
			continue
		}
		if p.Name != tt.name {
			t.Errorf("GetPage(%q): expected name %q, got %q", tt.route, tt.name, p.Name)
		}
	}

	about, _ := s.GetPage(ctx, "/about")
	if about.Title != "About" || len(about.Blocks) != 1 || about.Blocks[0].Element != "main" {
		t.Errorf("unexpected about page: %+v", about)
	}
}

func TestFileStorePut(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	comp := &Component{ID: "btn", BlockTemplate: &block.Block{Element: "button", InnerText: "Go"}}
	if err := s.PutComponent(ctx, comp); err != nil {
		t.Fatalf("PutComponent: %v", err)
	}
	got, err := s.GetComponent(ctx, "btn")
	if err != nil {
		t.Fatalf("GetComponent: %v", err)
	}
	if got.BlockTemplate.InnerText != "Go" {
		t.Errorf("expected innerText Go, got %q", got.BlockTemplate.InnerText)
	}

	page := &Page{Route: "docs/intro", Blocks: []*block.Block{{Element: "article"}}}
	if err := s.PutPage(ctx, page); err != nil {
		t.Fatalf("PutPage: %v", err)
	}
	page.Title = "Intro"
	if err := s.PutPage(ctx, page); err != nil {
		t.Fatalf("PutPage (update): %v", err)
	}
	p, err := s.GetPage(ctx, "/docs/intro")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if p.Title != "Intro" || p.Route != "/docs/intro" {
		t.Errorf("unexpected page: %+v", p)
	}
	routes, _ := s.ListPages(ctx)
	if len(routes) != 1 {
		t.Errorf("expected one page after update, got %v", routes)
	}

	if err := s.PutComponent(ctx, &Component{ID: "../x", BlockTemplate: &block.Block{}}); err == nil {
		t.Errorf("expected error for invalid id")
	}
	if err := s.PutPage(ctx, &Page{}); err == nil {
		t.Errorf("expected error for missing route")
	}
}

func TestYAMLToJSON(t *testing.T) {
	got, err := YAMLToJSON([]byte("a: 1\nb:\n  1: x\nc: [true, null]\n"))
	if err != nil {
		t.Fatalf("YAMLToJSON: %v", err)
	}
	if string(got) != `{"a":1,"b":{"1":"x"},"c":[true,null]}` {
		t.Errorf("unexpected JSON: %s", got)
	}

	if _, err := YAMLToJSON([]byte("a: [")); err == nil {
		t.Errorf("expected error for invalid YAML")
	}
}

func TestCleanRoute(t *testing.T) {
	tests := map[string]string{
		"":        "/",
		"/":       "/",
		"about":   "/about",
		"/about/": "/about",
		"a/b/":    "/a/b",
	}
	for in, want := range tests {
		if got := CleanRoute(in); got != want {
			t.Errorf("CleanRoute(%q): expected %q, got %q", in, want, got)
		}
	}
}
