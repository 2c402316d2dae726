package rename

import (
	"fmt"
	"strconv"
	"strings"

	"subforge/internal/model"
)

// Context carries everything a template can reference for one node.
type Context struct {
	Name     string // $Name
	LinkName string // $LinkName, the preprocessed upstream name
	Country  string
	SpeedMBs float64
	DelayMs  int
	Group    string
	Source   string
	Protocol string
	Tags     []string
	Index    int
}

// NewContext builds the context of n at 1-based position index.
func NewContext(n model.Node, linkName string, index int) Context {
	return Context{
		Name:     n.Name,
		LinkName: linkName,
		Country:  n.CountryCode,
		SpeedMBs: n.SpeedMBs,
		DelayMs:  n.DelayMs,
		Group:    n.Group,
		Source:   n.Source,
		Protocol: string(n.Protocol),
		Tags:     n.Tags,
		Index:    index,
	}
}

type token struct {
	name  string
	value func(Context) string
}

// tokens are tried in order; $Tags must precede $Tag.
var tokens = []token{
	{"LinkCountry", func(c Context) string { return c.Country }},
	{"LinkName", func(c Context) string { return c.LinkName }},
	{"Protocol", func(c Context) string { return c.Protocol }},
	{"Source", func(c Context) string { return c.Source }},
	{"Group", func(c Context) string { return c.Group }},
	{"Index", func(c Context) string { return strconv.Itoa(c.Index) }},
	{"Speed", func(c Context) string { return fmt.Sprintf("%.2fMB/s", c.SpeedMBs) }},
	{"Delay", func(c Context) string { return fmt.Sprintf("%dms", c.DelayMs) }},
	{"Flag", func(c Context) string { return Flag(c.Country) }},
	{"Name", func(c Context) string { return c.Name }},
	{"Tags", func(c Context) string { return strings.Join(c.Tags, "|") }},
	{"Tag", func(c Context) string {
		if len(c.Tags) == 0 {
			return ""
		}
		return c.Tags[0]
	}},
}

// Render substitutes the recognised $Tokens of tmpl. Unknown $ sequences are
// kept verbatim and substituted values are never expanded again. An empty
// template renders as the preprocessed name.
func Render(tmpl string, ctx Context) string {
	if tmpl == "" {
		return ctx.LinkName
	}
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}
	var b strings.Builder
	b.Grow(len(tmpl) + 16)
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '$' {
			j := strings.IndexByte(tmpl[i:], '$')
			if j < 0 {
				b.WriteString(tmpl[i:])
				break
			}
			b.WriteString(tmpl[i : i+j])
			i += j
			continue
		}
		rest := tmpl[i+1:]
		matched := false
		for _, t := range tokens {
			if strings.HasPrefix(rest, t.name) {
				b.WriteString(t.value(ctx))
				i += 1 + len(t.name)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte('$')
			i++
		}
	}
	return b.String()
}

// Flag converts an ISO 3166 alpha-2 code into its regional indicator emoji.
// TW is shown as CN. Anything that is not two ASCII letters yields 🌐.
func Flag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "TW" {
		code = "CN"
	}
	if len(code) != 2 || !isUpper(code[0]) || !isUpper(code[1]) {
		return "🌐"
	}
	return string(rune(code[0])+127397) + string(rune(code[1])+127397)
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
