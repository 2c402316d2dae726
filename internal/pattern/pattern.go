// Package pattern compiles the user-authored regular expressions stored with
// subscription rules. Patterns are written in the web UI and follow the
// JavaScript/.NET dialect (lookarounds, backreferences), so they are compiled
// with regexp2 rather than RE2.
package pattern

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// MatchTimeout bounds a single match or replace call. It is set once at
// startup from the pipeline configuration.
var MatchTimeout = 100 * time.Millisecond

type Regex struct {
	expr string
	re   *regexp2.Regexp
}

func Compile(expr string) (*Regex, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	re.MatchTimeout = MatchTimeout
	return &Regex{expr: expr, re: re}, nil
}

func (r *Regex) String() string {
	return r.expr
}

// MatchString reports whether s contains a match. A match that errors out
// (timeout) counts as no match.
func (r *Regex) MatchString(s string) bool {
	if r == nil {
		return false
	}
	ok, err := r.re.MatchString(s)
	return err == nil && ok
}

// ReplaceAll replaces every match in s. Capture groups are referenced as $1
// or ${name}. On failure s is returned unchanged together with false.
func (r *Regex) ReplaceAll(s, replacement string) (string, bool) {
	if r == nil {
		return s, false
	}
	out, err := r.re.Replace(s, replacement, -1, -1)
	if err != nil {
		return s, false
	}
	return out, true
}
