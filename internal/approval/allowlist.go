// Package approval implements the two-phase resumable FSM shell/PTY write
// tools run through, the human__ask question flow that mirrors it, and the
// allowlist pattern matching both lean on.
package approval

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"
)

// Rule is one allowlist entry's resolved behavior.
type Rule struct {
	Approve          bool
	MatchCommandLine bool
}

// Allowlist is a pattern -> Rule mapping, checked against a command line.
// A pattern is either a literal prefix/base-name match or a /regex/flags
// form.
type Allowlist map[string]Rule

// Decision is the outcome of checking a command line against an Allowlist.
type Decision struct {
	Approved   bool
	MatchedKey string // the pattern that produced a deny, when Approved is false
}

// Check implements the allowlist semantics: the command line is checked
// both as a whole (against matchCommandLine rules) and split into
// sub-commands; it is approved iff no sub-command or full-line rule denies
// it, and either every sub-command is approved or the full line itself is.
// Any deny short-circuits to rejection naming the rule that matched.
func Check(list Allowlist, commandLine string) Decision {
	subcommands := SplitSubcommands(commandLine)

	fullLineApproved := false
	for pattern, rule := range list {
		if !rule.MatchCommandLine {
			continue
		}
		if matches(pattern, commandLine) {
			if !rule.Approve {
				return Decision{Approved: false, MatchedKey: pattern}
			}
			fullLineApproved = true
		}
	}

	allSubApproved := len(subcommands) > 0
	for _, sub := range subcommands {
		approved := false
		for pattern, rule := range list {
			if rule.MatchCommandLine {
				continue
			}
			if matches(pattern, sub) {
				if !rule.Approve {
					return Decision{Approved: false, MatchedKey: pattern}
				}
				approved = true
			}
		}
		if !approved {
			allSubApproved = false
		}
	}

	return Decision{Approved: allSubApproved || fullLineApproved}
}

// matches applies pattern to s: a /regex/flags pattern is compiled (flags
// are passed through as an inline (?flags) group); anything else is a
// literal prefix-or-basename match.
func matches(pattern, s string) bool {
	if strings.HasPrefix(pattern, "/") {
		if body, flags, ok := splitRegexPattern(pattern); ok {
			expr := body
			if flags != "" {
				expr = "(?" + flags + ")" + body
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return false
			}
			return re.MatchString(s)
		}
		return false
	}

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, pattern) {
		return true
	}
	fields := strings.Fields(trimmed)
	if len(fields) > 0 {
		base := fields[0]
		if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
			base = base[idx+1:]
		}
		return base == pattern
	}
	return false
}

// splitRegexPattern parses a "/body/flags" string into body and flags.
func splitRegexPattern(pattern string) (body, flags string, ok bool) {
	if len(pattern) < 2 || pattern[0] != '/' {
		return "", "", false
	}
	last := strings.LastIndexByte(pattern, '/')
	if last <= 0 {
		return "", "", false
	}
	return pattern[1:last], pattern[last+1:], true
}

// SplitSubcommands splits a shell command line into its constituent
// sub-commands at `&& || ; |` and inline substitution forms (backticks,
// $(...), <(...), >(...)), using the shell grammar itself rather than a
// naive string split so quoting and nesting are respected.
func SplitSubcommands(commandLine string) []string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false))
	file, err := parser.Parse(strings.NewReader(commandLine), "")
	if err != nil {
		return []string{commandLine}
	}

	printer := syntax.NewPrinter()
	var subcommands []string
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		var sb strings.Builder
		if err := printer.Print(&sb, call); err == nil {
			subcommands = append(subcommands, strings.TrimSpace(sb.String()))
		}
		return true
	})
	if len(subcommands) == 0 {
		return []string{commandLine}
	}
	return subcommands
}

// DecodeAllowlist converts an already-unmarshaled pattern -> value map (the
// shape both config.yml's global allowlist and a session's per-tool
// "allowlist" option decode into) into an Allowlist. A pattern's value is
// either a bare bool (shorthand for {approve: bool}) or an
// {approve, matchCommandLine} object; anything else is skipped rather than
// rejected, so one malformed entry doesn't invalidate the whole file.
func DecodeAllowlist(raw map[string]any) Allowlist {
	out := make(Allowlist, len(raw))
	for pattern, v := range raw {
		switch val := v.(type) {
		case bool:
			out[pattern] = Rule{Approve: val}
		case map[string]any:
			rule := Rule{}
			if b, ok := val["approve"].(bool); ok {
				rule.Approve = b
			}
			if b, ok := val["matchCommandLine"].(bool); ok {
				rule.MatchCommandLine = b
			}
			out[pattern] = rule
		}
	}
	return out
}

// LoadAllowlist reads path as a YAML document shaped like
// `pattern: true|false|{approve, matchCommandLine}` and decodes it into an
// Allowlist. A missing file is not an error: it yields an empty Allowlist,
// since an unattended daemon might run with no global grants at all.
func LoadAllowlist(path string) (Allowlist, error) {
	if path == "" {
		return Allowlist{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Allowlist{}, nil
		}
		return nil, fmt.Errorf("approval: read allowlist %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("approval: parse allowlist %s: %w", path, err)
	}
	return DecodeAllowlist(raw), nil
}
