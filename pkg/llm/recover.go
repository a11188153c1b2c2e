package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrRecoveryFailed is matched by every *RecoveryError.
var ErrRecoveryFailed = errors.New("structured output recovery failed")

// Recovery stages reported in RecoveryError.Stage.
const (
	StageEmpty  = "empty"
	StageLocate = "locate"
	StageParse  = "parse"
	StageDecode = "decode"
)

const (
	// maxRecoveryStarts bounds how many opening brackets are tried as the start
	// of the payload.
	maxRecoveryStarts = 4
	recoverySampleLen = 200
)

// RecoveryError reports why model text could not be turned into structured data.
type RecoveryError struct {
	Stage  string
	Cause  error
	Sample string // leading part of the raw text, for logs
}

func (e *RecoveryError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("recover structured output: %s failed", e.Stage)
	}
	return fmt.Sprintf("recover structured output: %s: %v", e.Stage, e.Cause)
}

func (e *RecoveryError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrRecoveryFailed) hold.
func (e *RecoveryError) Is(target error) bool {
	return target == ErrRecoveryFailed
}

func newRecoveryError(stage string, cause error, raw string) *RecoveryError {
	return &RecoveryError{Stage: stage, Cause: cause, Sample: truncateRunes(raw, recoverySampleLen)}
}

// Recover turns free-form model text into a decoded JSON value (map[string]any,
// []any or a scalar). It tolerates think blocks, code fences, surrounding
// prose, comments, trailing commas, single- or back-quoted strings, bare
// object keys and raw newlines inside strings. It never panics; any failure is
// a *RecoveryError.
//
// Truncated output is not repaired.
func Recover(raw string) (any, error) {
	text, err := RepairJSON(raw)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, newRecoveryError(StageParse, err, raw)
	}
	return v, nil
}

// RecoverInto recovers model text and decodes it into T.
func RecoverInto[T any](raw string) (T, error) {
	var out T
	text, err := RepairJSON(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, newRecoveryError(StageDecode, err, raw)
	}
	return out, nil
}

// RepairJSON returns strictly valid JSON text recovered from model output.
func RepairJSON(raw string) (string, error) {
	cleaned := stripWrappers(raw)
	if cleaned == "" {
		return "", newRecoveryError(StageEmpty, errors.New("no content"), raw)
	}

	candidates := payloadCandidates(cleaned)
	if len(candidates) == 0 {
		return "", newRecoveryError(StageLocate, errors.New("no JSON object or array found"), raw)
	}

	// Keep the longest candidate that repairs cleanly so a stray bracket in
	// leading prose cannot win over the real payload.
	var best string
	var lastErr error
	for _, c := range candidates {
		if len(c) <= len(best) {
			continue
		}
		repaired := c
		if !json.Valid([]byte(c)) {
			repaired = repair(c)
			if err := validateJSON(repaired); err != nil {
				lastErr = err
				continue
			}
		}
		best = repaired
	}
	if best != "" {
		return best, nil
	}

	return "", newRecoveryError(StageParse, lastErr, raw)
}

// repair applies the textual fixes in order. Each pass is string-aware so that
// content inside literals is never mistaken for syntax.
func repair(s string) string {
	s = stripComments(s)
	s = removeTrailingCommas(s)
	s = normalizeQuotes(s)
	s = escapeControlChars(s)
	return s
}

func validateJSON(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}

// payloadCandidates slices the text from a top-level opening bracket to the
// last matching closing bracket, which tolerates trailing prose without
// brackets. A bracketed aside in leading prose closes before the payload
// opens, so the next few top-level openers are tried as well. Each start is
// also paired with its balanced end in case trailing prose holds a closer.
// Openers nested inside an unclosed structure are never starts, so truncated
// output does not yield a fragment.
func payloadCandidates(s string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, start := range topLevelOpeners(s, maxRecoveryStarts) {
		closer := byte('}')
		if s[start] == '[' {
			closer = ']'
		}
		if end := strings.LastIndexByte(s, closer); end > start {
			add(s[start : end+1])
		}
		if end, ok := balancedEnd(s, start); ok {
			add(s[start : end+1])
		}
	}
	return out
}

// topLevelOpeners returns up to limit positions of brackets that open at depth
// zero. Quotes only count inside a structure; prose apostrophes are ignored.
func topLevelOpeners(s string, limit int) []int {
	var starts []int
	depth := 0
	var quote byte
	escaped := false

	for i := 0; i < len(s) && len(starts) < limit; i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			if depth > 0 {
				quote = c
			}
		case '{', '[':
			if depth == 0 {
				starts = append(starts, i)
			}
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
			}
		}
	}
	return starts
}

// balancedEnd finds the index of the bracket closing s[start], treating all
// three quote styles as strings.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	var quote byte
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// stripComments removes // line comments and /* */ block comments outside
// string literals. An unterminated block comment runs to the end.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// removeTrailingCommas drops a comma when the next significant character
// closes an object or array.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		if c == '"' || c == '\'' || c == '`' {
			quote = c
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isJSONSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// normalizeQuotes rewrites single- and back-quoted strings as double-quoted
// ones, quotes bare object keys and maps Python-style True/False/None to their
// JSON literals.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	var prev byte // last significant byte written outside strings

	for i := 0; i < len(s); {
		c := s[i]

		switch {
		case c == '"':
			end := copyDoubleQuoted(&b, s, i)
			i = end
			prev = '"'
		case c == '\'' || c == '`':
			i = convertQuoted(&b, s, i, c)
			prev = '"'
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			k := j
			for k < len(s) && isJSONSpace(s[k]) {
				k++
			}
			switch {
			case (prev == '{' || prev == ',') && k < len(s) && s[k] == ':':
				b.WriteByte('"')
				b.WriteString(word)
				b.WriteByte('"')
			case word == "True":
				b.WriteString("true")
			case word == "False":
				b.WriteString("false")
			case word == "None":
				b.WriteString("null")
			default:
				b.WriteString(word)
			}
			i = j
			prev = 'a'
		default:
			b.WriteByte(c)
			if !isJSONSpace(c) {
				prev = c
			}
			i++
		}
	}
	return b.String()
}

// copyDoubleQuoted copies the double-quoted string starting at s[start] and
// returns the index after its closing quote.
func copyDoubleQuoted(b *strings.Builder, s string, start int) int {
	b.WriteByte('"')
	escaped := false
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		b.WriteByte(c)
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return i + 1
		}
	}
	return len(s)
}

// convertQuoted rewrites the string delimited by quote starting at s[start]
// as a double-quoted string and returns the index after its closing quote.
func convertQuoted(b *strings.Builder, s string, start int, quote byte) int {
	b.WriteByte('"')
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if next == quote && quote != '"' {
				b.WriteByte(next)
			} else {
				b.WriteByte(c)
				b.WriteByte(next)
			}
			i++
		case c == '"':
			b.WriteString(`\"`)
		case c == quote:
			b.WriteByte('"')
			return i + 1
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return len(s)
}

// escapeControlChars escapes raw control characters inside double-quoted
// strings. Newlines and tabs become \n and \t so multi-line code survives.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 32)

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
