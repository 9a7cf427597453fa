package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/sambeau/trellis/pkg/compiler"
	"github.com/sambeau/trellis/pkg/directive"
	terrors "github.com/sambeau/trellis/pkg/errors"
	"github.com/sambeau/trellis/pkg/store"
)

// diagnosticsHeader carries the number of diagnostics a page compiled with.
const diagnosticsHeader = "X-Trellis-Diagnostics"

// compile returns the compiled page for route, compiling it on a cache miss.
func (s *Server) compile(ctx context.Context, route string) (*compiledPage, error) {
	if p, ok := s.pages.Get(route); ok {
		return p, nil
	}

	page, err := s.store.GetPage(ctx, route)
	if err != nil {
		return nil, err
	}

	logger := s.log.With().Str("route", route).Logger()
	opts := compiler.Options{
		ClassPrefix:              s.config.Compiler.ClassPrefix,
		BaseURL:                  s.config.Compiler.BaseURL,
		PreserveFalsyInRepeaters: s.config.Compiler.PreserveFalsyInRepeaters,
		MaxComponentDepth:        s.config.Compiler.MaxComponentDepth,
		Logger:                   &logger,
	}
	result := compiler.New(store.Lookup(ctx, s.store), opts).CompileBlocks(page.Blocks)

	tmpl, err := directive.ParseTemplate(result.HTML)
	if err != nil {
		return nil, fmt.Errorf("parsing compiled template for %s: %w", route, err)
	}

	p := &compiledPage{page: page, result: result, template: tmpl}
	s.pages.Set(route, p)
	return p, nil
}

// handleCompiled serves the compile result of a page as JSON.
func (s *Server) handleCompiled(w http.ResponseWriter, r *http.Request) {
	route := store.CleanRoute(r.PathValue("route"))

	p, err := s.compile(r.Context(), route)
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	w.Header().Set(diagnosticsHeader, strconv.Itoa(len(p.result.Diagnostics)))
	writeJSON(w, http.StatusOK, p.result)
}

// handlePage compiles a page and renders it with the page's static data.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	route := store.CleanRoute(r.PathValue("route"))

	p, err := s.compile(r.Context(), route)
	if err != nil {
		s.writeHTMLError(w, err)
		return
	}

	body, err := p.template.Render(pageData(p.page, r), map[string]directive.Func{
		"block_data": blockData(p.page),
	})
	if err != nil {
		s.writeHTMLError(w, fmt.Errorf("rendering %s: %w", route, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(diagnosticsHeader, strconv.Itoa(len(p.result.Diagnostics)))
	w.WriteHeader(http.StatusOK)
	writeDocument(w, p.page, p.result, body)
}

// handleStats reports cache statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"store": s.store.Stats(),
		"pages": s.pages.Stats(),
	})
}

// pageData builds the render data for a request: the page's data plus a
// request entry holding the path and query parameters. A page data key
// named request wins.
func pageData(p *store.Page, r *http.Request) map[string]any {
	data := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	if _, ok := data["request"]; !ok {
		query := make(map[string]any, len(r.URL.Query()))
		for k, vs := range r.URL.Query() {
			if len(vs) == 1 {
				query[k] = vs[0]
				continue
			}
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			query[k] = list
		}
		data["request"] = map[string]any{
			"path":  r.URL.Path,
			"query": query,
		}
	}
	return data
}

// blockData serves block data scripts from the page's static results.
func blockData(p *store.Page) directive.Func {
	return func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, errors.New("block_data: missing block id")
		}
		id := directive.ToString(args[0])
		if d, ok := p.BlockData[id]; ok {
			return d, nil
		}
		return map[string]any{}, nil
	}
}

// writeDocument writes a complete HTML document around a rendered body.
func writeDocument(w http.ResponseWriter, p *store.Page, res *compiler.Result, body string) {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")

	title := p.Title
	if title == "" {
		title = p.Name
	}
	if title != "" {
		sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	}
	if href := res.Fonts.GoogleFontsURL(); href != "" {
		sb.WriteString("<link rel=\"preconnect\" href=\"https://fonts.gstatic.com\" crossorigin>\n")
		sb.WriteString("<link rel=\"stylesheet\" href=\"" + html.EscapeString(href) + "\">\n")
	}
	if res.CSS != "" {
		sb.WriteString("<style>\n" + res.CSS + "</style>\n")
	}
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")

	w.Write([]byte(sb.String()))
}

// errorStatus maps an error to an HTTP status code.
func errorStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeHTMLError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	s.logError(status, err)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	msg := http.StatusText(status)
	if s.config.Server.Dev {
		var te *terrors.TrellisError
		if errors.As(err, &te) {
			msg = te.PrettyString()
		} else {
			msg = err.Error()
		}
	}
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%d %s</title></head><body><pre>%s</pre></body></html>\n",
		status, http.StatusText(status), html.EscapeString(msg))
}

func (s *Server) writeJSONError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	s.logError(status, err)

	var te *terrors.TrellisError
	if !errors.As(err, &te) {
		te = terrors.NewSimple(terrors.ClassStore, err.Error())
		if !s.config.Server.Dev {
			te.Message = http.StatusText(status)
		}
	}
	writeJSON(w, status, map[string]any{"error": te})
}

func (s *Server) logError(status int, err error) {
	if status == http.StatusNotFound {
		s.log.Debug().Err(err).Msg("page not found")
		return
	}
	s.log.Error().Err(err).Int("status", status).Msg("request failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
