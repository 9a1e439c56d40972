package triggers

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// operators, longest first so that "<=" wins over "<".
var operators = []string{"===", "!==", "==", "!=", "<=", ">=", "&&", "||", "<", ">", "!", "+", "-", "*", "/", "%", "(", ")", "[", "]", ".", ","}

func lex(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at %d", text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: n, pos: start})
		case r == '\'' || r == '"':
			quote := r
			start := i
			i++
			var b strings.Builder
			for i < len(runes) && runes[i] != quote {
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
				}
				b.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("unterminated string at %d", start)
			}
			i++
			tokens = append(tokens, token{kind: tokString, text: b.String(), pos: start})
		case r == '_' || r == '$' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || runes[i] == '$' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		default:
			matched := false
			rest := string(runes[i:])
			for _, op := range operators {
				if strings.HasPrefix(rest, op) {
					tokens = append(tokens, token{kind: tokOp, text: normalizeOp(op), pos: i})
					i += len([]rune(op))
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q at %d", r, i)
			}
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

func normalizeOp(op string) string {
	switch op {
	case "===":
		return "=="
	case "!==":
		return "!="
	}
	return op
}
