package compiler

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sambeau/trellis/pkg/block"
)

const defaultFontWeight = "400"

// FontUsage lists the weights used for one font family.
type FontUsage struct {
	Weights []string `json:"weights"`
}

// FontMap maps a font family to its usage.
type FontMap map[string]*FontUsage

// Add records weight for family, keeping weights unique and sorted.
func (m FontMap) Add(family, weight string) {
	family = primaryFamily(family)
	if family == "" {
		return
	}
	weight = strings.TrimSpace(weight)
	if weight == "" {
		weight = defaultFontWeight
	}

	u, ok := m[family]
	if !ok {
		u = &FontUsage{}
		m[family] = u
	}
	i := sort.SearchStrings(u.Weights, weight)
	if i < len(u.Weights) && u.Weights[i] == weight {
		return
	}
	u.Weights = append(u.Weights, "")
	copy(u.Weights[i+1:], u.Weights[i:])
	u.Weights[i] = weight
}

// Families returns the family names in sorted order.
func (m FontMap) Families() []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// GoogleFontsURL builds a css2 stylesheet URL requesting every family and
// weight in the map, or "" for an empty map.
func (m FontMap) GoogleFontsURL() string {
	if len(m) == 0 {
		return ""
	}
	q := url.Values{}
	for _, f := range m.Families() {
		q.Add("family", f+":wght@"+strings.Join(m[f].Weights, ";"))
	}
	q.Set("display", "swap")
	return "https://fonts.googleapis.com/css2?" + q.Encode()
}

// primaryFamily returns the first family of a font-family list, unquoted.
func primaryFamily(value string) string {
	if i := strings.IndexByte(value, ','); i >= 0 {
		value = value[:i]
	}
	return strings.Trim(strings.TrimSpace(value), `"'`)
}

// collectStyleFonts records fontFamily/fontWeight pairs from the buckets
// that reach CSS.
func collectStyleFonts(fonts FontMap, b *block.Block) {
	for _, bucket := range []block.StyleMap{b.BaseStyles, b.RawStyles, b.TabletStyles, b.MobileStyles} {
		family := bucket["fontFamily"]
		if family == "" {
			family = bucket["font-family"]
		}
		if family == "" {
			continue
		}
		weight := bucket["fontWeight"]
		if weight == "" {
			weight = bucket["font-weight"]
		}
		fonts.Add(family, weight)
	}
}

// collectMarkupFonts records fonts set through inline style attributes in
// raw markup.
func collectMarkupFonts(fonts FontMap, markup string) {
	if !strings.Contains(markup, "font-family") {
		return
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key != "style" {
					continue
				}
				decl := parseInlineStyle(a.Val)
				if family := decl["font-family"]; family != "" {
					fonts.Add(family, decl["font-weight"])
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
}

// parseInlineStyle splits "a: b; c: d" into a map with lowercased keys.
func parseInlineStyle(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}
