// Package expr evaluates the small rule expressions cross-field constraints
// declare, e.g. "max_ph >= min_ph" or "end_date >= start_date".
//
// Supported forms:
//   - comparisons: ==, !=, <, <=, >, >= between field references and
//     string/number/bool literals, or between two field references
//   - boolean composition: &&, ||, ! and parentheses
//   - a bare field reference, which is truthy when the field holds a value
//
// Ordering comparisons run numerically when both operands coerce to numbers
// and lexically otherwise, which handles ISO dates (YYYY-MM-DD) directly.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Lookup resolves a field reference against the current record snapshot.
type Lookup func(key string) (any, bool)

// Eval parses and evaluates a rule expression. An empty rule is true.
func Eval(rule string, lookup Lookup) (bool, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}
	if lookup == nil {
		lookup = func(string) (any, bool) { return nil, false }
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return false, err
	}
	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return false, err
	}
	if stream.pos < len(stream.tokens) {
		return false, fmt.Errorf("expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return node.eval(lookup)
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func() byte {
		if i+1 >= len(input) {
			return 0
		}
		return input[i+1]
	}

	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			i++
		case ch == '=':
			if peek() != '=' {
				return nil, errors.New("expr: unexpected '='; use '=='")
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			i += 2
		case ch == '!':
			if peek() == '=' {
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenNot, raw: "!"})
				i++
			}
		case ch == '<':
			if peek() == '=' {
				tokens = append(tokens, token{kind: tokenLte, raw: "<="})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenLt, raw: "<"})
				i++
			}
		case ch == '>':
			if peek() == '=' {
				tokens = append(tokens, token{kind: tokenGte, raw: ">="})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenGt, raw: ">"})
				i++
			}
		case ch == '&':
			if peek() != '&' {
				return nil, errors.New("expr: unexpected '&'; use '&&'")
			}
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			i += 2
		case ch == '|':
			if peek() != '|' {
				return nil, errors.New("expr: unexpected '|'; use '||'")
			}
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			i += 2
		case ch == '"' || ch == '\'':
			literal, width, err := scanString(input[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: literal})
			i += width
		default:
			start := i
			for i < len(input) && !strings.ContainsRune(" \t\n\r()=!<>&|", rune(input[i])) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}
	}
	return tokens, nil
}

func scanString(input string) (string, int, error) {
	quote := input[0]
	for i := 1; i < len(input); i++ {
		if input[i] == '\\' {
			i++
			continue
		}
		if input[i] == quote {
			raw := `"` + strings.ReplaceAll(input[1:i], `\`+string(quote), string(quote)) + `"`
			value, err := strconv.Unquote(raw)
			if err != nil {
				// Fall back to the raw body for quote styles Unquote rejects.
				value = input[1:i]
			}
			return value, i + 1, nil
		}
	}
	return "", 0, errors.New("expr: unterminated string literal")
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	_, err := strconv.ParseFloat(raw, 64)
	return err == nil
}

type exprNode interface {
	eval(lookup Lookup) (bool, error)
}

type exprOr struct{ left, right exprNode }

func (n exprOr) eval(lookup Lookup) (bool, error) {
	ok, err := n.left.eval(lookup)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(lookup)
}

type exprAnd struct{ left, right exprNode }

func (n exprAnd) eval(lookup Lookup) (bool, error) {
	ok, err := n.left.eval(lookup)
	if err != nil || !ok {
		return ok, err
	}
	return n.right.eval(lookup)
}

type exprNot struct{ inner exprNode }

func (n exprNot) eval(lookup Lookup) (bool, error) {
	ok, err := n.inner.eval(lookup)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type operandKind int

const (
	operandField operandKind = iota
	operandString
	operandNumber
	operandBool
)

type operand struct {
	kind operandKind
	raw  string
}

func (o operand) resolve(lookup Lookup) (any, bool) {
	switch o.kind {
	case operandField:
		return lookup(o.raw)
	case operandNumber:
		f, _ := strconv.ParseFloat(o.raw, 64)
		return f, true
	case operandBool:
		return o.raw == "true", true
	default:
		return o.raw, true
	}
}

type exprCompare struct {
	left  operand
	op    tokenKind
	right operand
}

func (n exprCompare) eval(lookup Lookup) (bool, error) {
	leftValue, leftOK := n.left.resolve(lookup)
	rightValue, rightOK := n.right.resolve(lookup)

	switch n.op {
	case tokenEq, tokenNeq:
		equal := valuesEqual(leftValue, leftOK, rightValue, rightOK)
		if n.op == tokenEq {
			return equal, nil
		}
		return !equal, nil
	}

	// Ordering comparisons against a missing field never hold.
	if !leftOK || !rightOK {
		return false, nil
	}

	cmp, ok := compareValues(leftValue, rightValue)
	if !ok {
		return false, nil
	}
	switch n.op {
	case tokenLt:
		return cmp < 0, nil
	case tokenLte:
		return cmp <= 0, nil
	case tokenGt:
		return cmp > 0, nil
	case tokenGte:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("expr: unsupported comparison operator")
	}
}

type exprTruthy struct{ field string }

func (n exprTruthy) eval(lookup Lookup) (bool, error) {
	value, ok := lookup(n.field)
	if !ok || value == nil {
		return false, nil
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strings.TrimSpace(v) != "", nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	default:
		return true, nil
	}
}

func valuesEqual(left any, leftOK bool, right any, rightOK bool) bool {
	if !leftOK || !rightOK {
		return !leftOK && !rightOK
	}
	if cmp, ok := compareValues(left, right); ok {
		return cmp == 0
	}
	return false
}

// compareValues orders two values numerically when both coerce, lexically
// otherwise. Booleans only compare against booleans.
func compareValues(left, right any) (int, bool) {
	if lb, ok := left.(bool); ok {
		rb, ok := right.(bool)
		if !ok {
			if parsed, err := strconv.ParseBool(strings.TrimSpace(toText(right))); err == nil {
				rb = parsed
			} else {
				return 0, false
			}
		}
		switch {
		case lb == rb:
			return 0, true
		case lb:
			return 1, true
		default:
			return -1, true
		}
	}

	leftNum, leftIsNum := toNumber(left)
	rightNum, rightIsNum := toNumber(right)
	if leftIsNum && rightIsNum {
		switch {
		case leftNum < rightNum:
			return -1, true
		case leftNum > rightNum:
			return 1, true
		default:
			return 0, true
		}
	}

	return strings.Compare(toText(left), toText(right)), true
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type tokenStream struct {
	tokens []token
	pos    int
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) matchComparison() (tokenKind, bool) {
	if s.pos >= len(s.tokens) {
		return 0, false
	}
	switch kind := s.tokens[s.pos].kind; kind {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		s.pos++
		return kind, true
	default:
		return 0, false
	}
}

func parseOr(stream *tokenStream) (exprNode, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = exprOr{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (exprNode, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = exprAnd{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return exprNot{inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("expr: missing closing ')'")
		}
		return inner, nil
	}

	left, err := consumeOperand(stream)
	if err != nil {
		return nil, err
	}
	op, ok := stream.matchComparison()
	if !ok {
		if left.kind != operandField {
			return nil, fmt.Errorf("expr: literal %q is not an expression", left.raw)
		}
		return exprTruthy{field: left.raw}, nil
	}
	right, err := consumeOperand(stream)
	if err != nil {
		return nil, err
	}
	return exprCompare{left: left, op: op, right: right}, nil
}

func consumeOperand(stream *tokenStream) (operand, error) {
	if stream.pos >= len(stream.tokens) {
		return operand{}, errors.New("expr: unexpected end of expression")
	}
	tok := stream.tokens[stream.pos]
	stream.pos++
	switch tok.kind {
	case tokenIdentifier:
		return operand{kind: operandField, raw: tok.raw}, nil
	case tokenString:
		return operand{kind: operandString, raw: tok.raw}, nil
	case tokenNumber:
		return operand{kind: operandNumber, raw: tok.raw}, nil
	case tokenBool:
		return operand{kind: operandBool, raw: tok.raw}, nil
	default:
		return operand{}, fmt.Errorf("expr: expected operand, got %q", tok.raw)
	}
}
