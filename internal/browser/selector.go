package browser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pattern matches element text. It is evaluated both in the page by the
// locator engine and in Go by Match, with identical whitespace handling.
type Pattern struct {
	Source string `json:"source"`
	Flags  string `json:"flags,omitempty"`
	Regex  bool   `json:"regex,omitempty"`
	Exact  bool   `json:"exact,omitempty"`
}

// Regexp returns a regular-expression pattern. Only the "i" flag is
// meaningful on the Go side.
func Regexp(source, flags string) *Pattern {
	return &Pattern{Source: source, Flags: flags, Regex: true}
}

// Substring matches case-insensitively anywhere in the text.
func Substring(s string) *Pattern { return &Pattern{Source: s} }

// Exact matches the whole whitespace-normalized text.
func Exact(s string) *Pattern { return &Pattern{Source: s, Exact: true} }

var spaceRun = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func (p *Pattern) compile() (*regexp.Regexp, error) {
	src := p.Source
	if strings.Contains(p.Flags, "i") {
		src = "(?i)" + src
	}
	return regexp.Compile(src)
}

func (p *Pattern) Match(text string) bool {
	if p == nil {
		return true
	}
	t := normalize(text)
	switch {
	case p.Regex:
		re, err := p.compile()
		if err != nil {
			return false
		}
		return re.MatchString(t)
	case p.Exact:
		return t == p.Source
	default:
		return strings.Contains(strings.ToLower(t), strings.ToLower(p.Source))
	}
}

func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	if p.Regex {
		return "/" + p.Source + "/" + p.Flags
	}
	return fmt.Sprintf("%q", p.Source)
}

// Selector describes how to find elements in a page. Filters compose: a
// Selector with CSS and HasText matches CSS results whose text matches.
type Selector struct {
	CSS     string   `json:"css,omitempty"`
	TestID  string   `json:"testId,omitempty"`
	Role    string   `json:"role,omitempty"`
	Name    *Pattern `json:"name,omitempty"`
	Text    *Pattern `json:"text,omitempty"`
	HasText *Pattern `json:"hasText,omitempty"`
	// Pick selects the n-th match, 1-based. Zero keeps every match.
	Pick int `json:"pick,omitempty"`
}

func CSS(css string) Selector { return Selector{CSS: css} }

// TestID matches the data-testid attribute exactly.
func TestID(id string) Selector { return Selector{TestID: id} }

// Role matches elements with the given ARIA role, explicit or implicit,
// whose accessible name matches name. A nil name matches any.
func Role(role string, name *Pattern) Selector { return Selector{Role: role, Name: name} }

// TextMatching selects the innermost elements whose text matches p.
func TextMatching(p *Pattern) Selector { return Selector{Text: p} }

func (s Selector) WithText(p *Pattern) Selector {
	s.HasText = p
	return s
}

// Nth narrows to the i-th match, 0-based.
func (s Selector) Nth(i int) Selector {
	s.Pick = i + 1
	return s
}

func (s Selector) First() Selector { return s.Nth(0) }

func (s Selector) JSON() string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (s Selector) String() string {
	var parts []string
	if s.CSS != "" {
		parts = append(parts, s.CSS)
	}
	if s.TestID != "" {
		parts = append(parts, fmt.Sprintf("[data-testid=%q]", s.TestID))
	}
	if s.Role != "" {
		r := "role=" + s.Role
		if s.Name != nil {
			r += "[name=" + s.Name.String() + "]"
		}
		parts = append(parts, r)
	}
	if s.Text != nil {
		parts = append(parts, "text="+s.Text.String())
	}
	if s.HasText != nil {
		parts = append(parts, "has-text="+s.HasText.String())
	}
	if s.Pick > 0 {
		parts = append(parts, fmt.Sprintf("nth=%d", s.Pick-1))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " >> ")
}
