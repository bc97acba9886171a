package sass

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// DefaultBrowsers is the support window used when none is configured.
var DefaultBrowsers = []string{"last 2 versions"}

// prefixRule lists the vendor variants of a property or value, and how many
// browser versions back the window must reach for them to be emitted.
type prefixRule struct {
	variants []string
	since    int
}

var propertyPrefixes = map[string]prefixRule{
	"user-select":         {[]string{"-webkit-", "-moz-", "-ms-"}, 1},
	"appearance":          {[]string{"-webkit-", "-moz-"}, 1},
	"text-size-adjust":    {[]string{"-webkit-", "-moz-", "-ms-"}, 1},
	"backface-visibility": {[]string{"-webkit-"}, 1},
	"mask-image":          {[]string{"-webkit-"}, 1},
	"hyphens":             {[]string{"-webkit-", "-ms-"}, 1},
	"backdrop-filter":     {[]string{"-webkit-"}, 1},
	"clip-path":           {[]string{"-webkit-"}, 2},
	"transform":           {[]string{"-webkit-", "-ms-"}, 4},
	"transform-origin":    {[]string{"-webkit-", "-ms-"}, 4},
	"transition":          {[]string{"-webkit-"}, 4},
	"animation":           {[]string{"-webkit-"}, 4},
	"flex":                {[]string{"-webkit-", "-ms-"}, 4},
	"flex-direction":      {[]string{"-webkit-", "-ms-"}, 4},
	"flex-wrap":           {[]string{"-webkit-", "-ms-"}, 4},
	"justify-content":     {[]string{"-webkit-"}, 4},
	"align-items":         {[]string{"-webkit-"}, 4},
}

// valuePrefixes maps property -> value -> replacement values.
var valuePrefixes = map[string]map[string]prefixRule{
	"display": {
		"flex":        {[]string{"-webkit-box", "-ms-flexbox"}, 4},
		"inline-flex": {[]string{"-webkit-inline-box", "-ms-inline-flexbox"}, 4},
		"grid":        {[]string{"-ms-grid"}, 4},
	},
	"position": {
		"sticky": {[]string{"-webkit-sticky"}, 1},
	},
}

var lastVersions = regexp.MustCompile(`(?i)^\s*last\s+(\d+)\s+versions?\s*$`)

// Window turns a browsers list into how many versions back to support. Only
// "last N versions" entries are understood; the largest N wins.
func Window(browsers []string) int {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	window := 0
	for _, b := range browsers {
		if m := lastVersions.FindStringSubmatch(b); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > window {
				window = n
			}
		}
	}
	return window
}

type token struct {
	tt   css.TokenType
	data []byte
}

// Prefix adds vendor-prefixed copies in front of declarations that need them
// for the given window. Formatting of the input is kept.
func Prefix(src []byte, window int) ([]byte, error) {
	if window <= 0 {
		return src, nil
	}

	l := css.NewLexer(parse.NewInputBytes(src))
	var (
		out    bytes.Buffer
		seg    []token
		blocks []map[string]bool
	)

	flush := func(boundary *token) {
		if len(blocks) > 0 && boundary != nil && (boundary.tt == css.SemicolonToken || boundary.tt == css.RightBraceToken) {
			if d, ok := parseDeclaration(seg); ok {
				seen := blocks[len(blocks)-1]
				d.writePrefixed(&out, window, seen)
				seen[d.name] = true
				seen[d.name+":"+d.value()] = true
			}
		}
		for _, t := range seg {
			out.Write(t.data)
		}
		if boundary != nil {
			out.Write(boundary.data)
		}
		seg = seg[:0]
	}

	for {
		tt, data := l.Next()
		tok := token{tt: tt, data: append([]byte(nil), data...)}
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != io.EOF {
				return nil, err
			}
			flush(nil)
			return out.Bytes(), nil
		case css.LeftBraceToken:
			flush(&tok)
			blocks = append(blocks, map[string]bool{})
		case css.SemicolonToken:
			flush(&tok)
		case css.RightBraceToken:
			flush(&tok)
			if len(blocks) > 0 {
				blocks = blocks[:len(blocks)-1]
			}
		default:
			seg = append(seg, tok)
		}
	}
}

// declaration is one "name: value" pair. rest runs from just after the name
// to the last non-whitespace token; vals is the part after the colon.
type declaration struct {
	indent []byte
	name   string
	rest   []token
	vals   []token
}

func (d declaration) value() string {
	var b strings.Builder
	for _, t := range d.vals {
		b.Write(t.data)
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}

func (d declaration) writePrefixed(out *bytes.Buffer, window int, seen map[string]bool) {
	if rule, ok := propertyPrefixes[d.name]; ok && rule.since <= window {
		for _, p := range rule.variants {
			if seen[p+d.name] {
				continue
			}
			out.Write(d.indent)
			out.WriteString(p + d.name)
			for _, t := range d.rest {
				out.Write(t.data)
			}
			out.WriteByte(';')
		}
	}
	if values, ok := valuePrefixes[d.name]; ok {
		if rule, ok := values[d.value()]; ok && rule.since <= window {
			for _, v := range rule.variants {
				if seen[d.name+":"+v] {
					continue
				}
				out.Write(d.indent)
				out.WriteString(d.name + ":" + v + ";")
			}
		}
	}
}

func parseDeclaration(seg []token) (declaration, bool) {
	var d declaration
	i := 0
	for i < len(seg) && (seg[i].tt == css.WhitespaceToken || seg[i].tt == css.CommentToken) {
		if seg[i].tt == css.WhitespaceToken {
			d.indent = append(d.indent, seg[i].data...)
		}
		i++
	}
	if i >= len(seg) || seg[i].tt != css.IdentToken {
		return d, false
	}
	d.name = strings.ToLower(string(seg[i].data))

	end := len(seg)
	for end > i+1 && seg[end-1].tt == css.WhitespaceToken {
		end--
	}
	d.rest = seg[i+1 : end]

	j := 0
	for j < len(d.rest) && d.rest[j].tt == css.WhitespaceToken {
		j++
	}
	if j >= len(d.rest) || d.rest[j].tt != css.ColonToken {
		return d, false
	}
	d.vals = d.rest[j+1:]
	return d, true
}
