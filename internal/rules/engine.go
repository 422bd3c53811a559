// Package rules rewrites finalized transcript text with user-defined
// substitutions, e.g. product names the speech model keeps mishearing.
//
// Two file formats are accepted. A file ending in .yaml or .yml holds a list
// of rules:
//
//	- match: deep gram
//	  replace: Deepgram
//	- match: '\bp\.?o\.?\b'
//	  replace: purchase order
//	  regex: true
//
// Any other file is read line by line: "from => to" for a case-insensitive
// literal, or "s/pattern/replacement/flags" for a regular expression.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotConverged is returned when rules keep rewriting each other's output
// past the iteration limit.
var ErrNotConverged = errors.New("substitution rules did not converge")

const defaultIterationLimit = 30

// Rule is one substitution as written in a YAML rules file.
type Rule struct {
	Match         string `yaml:"match"`
	Replace       string `yaml:"replace"`
	Regex         bool   `yaml:"regex"`
	CaseSensitive bool   `yaml:"case_sensitive"`
	// Global replaces every match of a regex rule; literals always do.
	Global bool `yaml:"global"`
}

type substitution struct {
	re          *regexp.Regexp
	replacement string
	firstOnly   bool
}

func (s substitution) apply(input string) string {
	if !s.firstOnly {
		return s.re.ReplaceAllString(input, s.replacement)
	}
	loc := s.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	expanded := s.re.ExpandString(nil, s.replacement, input, loc)
	return input[:loc[0]] + string(expanded) + input[loc[1]:]
}

// Engine applies substitutions until the text stops changing.
type Engine struct {
	subs           []substitution
	iterationLimit int
}

// Load reads rules from path. A missing file or empty path yields an engine
// that leaves text untouched.
func Load(path string, iterationLimit int) (*Engine, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return New(nil, iterationLimit)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil, iterationLimit)
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	var rules []Rule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(contents, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
		}
	default:
		rules, err = ParseLines(string(contents))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
		}
	}

	engine, err := New(rules, iterationLimit)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return engine, nil
}

// New compiles rules in order.
func New(rules []Rule, iterationLimit int) (*Engine, error) {
	if iterationLimit <= 0 {
		iterationLimit = defaultIterationLimit
	}

	subs := make([]substitution, 0, len(rules))
	for i, rule := range rules {
		sub, err := compile(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		subs = append(subs, sub)
	}
	return &Engine{subs: subs, iterationLimit: iterationLimit}, nil
}

func compile(rule Rule) (substitution, error) {
	match := rule.Match
	if !rule.Regex {
		match = strings.TrimSpace(match)
	}
	if match == "" {
		return substitution{}, errors.New("match cannot be empty")
	}

	pattern := match
	replacement := rule.Replace
	if !rule.Regex {
		pattern = regexp.QuoteMeta(match)
		replacement = strings.ReplaceAll(replacement, "$", "$$")
	}
	if !rule.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return substitution{}, fmt.Errorf("invalid pattern %q: %w", match, err)
	}
	return substitution{re: re, replacement: replacement, firstOnly: rule.Regex && !rule.Global}, nil
}

// Len reports how many rules are loaded.
func (e *Engine) Len() int {
	return len(e.subs)
}

// Apply runs every rule over text, repeating until a full pass changes
// nothing. When the limit is hit the last output is returned together with
// ErrNotConverged.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.subs) == 0 {
		return text, nil
	}

	current := text
	for range e.iterationLimit {
		next := current
		for _, sub := range e.subs {
			next = sub.apply(next)
		}
		if next == current {
			return current, nil
		}
		current = next
	}
	return current, fmt.Errorf("%w after %d passes", ErrNotConverged, e.iterationLimit)
}

// ParseLines reads the line-oriented rules format. Blank lines and lines
// starting with # are skipped.
func ParseLines(contents string) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(strings.NewReader(contents))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			rule Rule
			err  error
		)
		switch {
		case isSedExpression(line):
			rule, err = parseSedExpression(line)
		case strings.Contains(line, "=>"):
			from, to, _ := strings.Cut(line, "=>")
			rule = Rule{Match: strings.TrimSpace(from), Replace: strings.TrimSpace(to)}
		default:
			err = errors.New("expected \"from => to\" or \"s/pattern/replacement/flags\"")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func isSedExpression(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	d := line[1]
	return !isWordByte(d) && d != ' ' && d != '\t' && d != '\\'
}

func parseSedExpression(line string) (Rule, error) {
	delim := line[1]
	parts := make([]string, 0, 3)
	var field strings.Builder
	escaped := false
	for i := 2; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			if c != delim {
				field.WriteByte('\\')
			}
			field.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim && len(parts) < 2:
			parts = append(parts, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}
	if len(parts) != 2 {
		return Rule{}, errors.New("unterminated expression")
	}

	rule := Rule{Match: parts[0], Replace: parts[1], Regex: true}
	for _, flag := range strings.TrimSpace(field.String()) {
		switch flag {
		case 'g':
			rule.Global = true
		case 'I':
			rule.CaseSensitive = true
		case 'i':
			rule.CaseSensitive = false
		default:
			return Rule{}, fmt.Errorf("unsupported flag %q", flag)
		}
	}
	return rule, nil
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
