package credentials

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParsePHPArrayFile extracts the returned associative array from a PHP
// configuration file without executing it. Only the literal subset is
// understood: nested array()/[] literals, single- and double-quoted
// strings, integers, floats, booleans, null and trailing commas.
// Anything else (function calls, variables, concatenation) fails the
// parse rather than being guessed at.
func ParsePHPArrayFile(source string) (map[string]interface{}, error) {
	p := &phpParser{input: source}
	p.skipToReturn()
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("returned value is not an array")
	}
	return m, nil
}

type phpParser struct {
	input string
	pos   int
}

// skipToReturn advances past the opening tag and any statements up to
// the top-level return keyword. Configuration files of interest are a
// single return statement, so everything before it is skipped.
func (p *phpParser) skipToReturn() {
	idx := strings.Index(p.input, "return")
	if idx >= 0 {
		p.pos = idx + len("return")
	}
}

func (p *phpParser) skipWhitespace() {
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '/':
			p.skipLineComment()
		case c == '#':
			p.skipLineComment()
		case c == '/' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '*':
			p.skipBlockComment()
		default:
			return
		}
	}
}

func (p *phpParser) skipLineComment() {
	for p.pos < len(p.input) && p.input[p.pos] != '\n' {
		p.pos++
	}
}

func (p *phpParser) skipBlockComment() {
	p.pos += 2
	for p.pos+1 < len(p.input) {
		if p.input[p.pos] == '*' && p.input[p.pos+1] == '/' {
			p.pos += 2
			return
		}
		p.pos++
	}
	p.pos = len(p.input)
}

func (p *phpParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *phpParser) parseValue() (interface{}, error) {
	p.skipWhitespace()
	switch c := p.peek(); {
	case c == '[':
		p.pos++
		return p.parseArrayBody(']')
	case c == '\'' || c == '"':
		return p.parseString()
	case c == '-' || unicode.IsDigit(rune(c)):
		return p.parseNumber()
	case c == 0:
		return nil, fmt.Errorf("unexpected end of input")
	default:
		return p.parseBareword()
	}
}

func (p *phpParser) parseBareword() (interface{}, error) {
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(rune(p.input[p.pos])) {
		p.pos++
	}
	word := strings.ToLower(p.input[start:p.pos])
	switch word {
	case "array":
		p.skipWhitespace()
		if p.peek() != '(' {
			return nil, fmt.Errorf("expected '(' after array at offset %d", p.pos)
		}
		p.pos++
		return p.parseArrayBody(')')
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported expression %q at offset %d", word, start)
	}
}

// parseArrayBody consumes entries up to the given closing delimiter.
// Entries without '=>' get sequential integer keys, matching PHP list
// literals, so mixed arrays still parse.
func (p *phpParser) parseArrayBody(closer byte) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	index := 0
	for {
		p.skipWhitespace()
		if p.peek() == closer {
			p.pos++
			return result, nil
		}
		if p.peek() == 0 {
			return nil, fmt.Errorf("unterminated array")
		}

		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}

		p.skipWhitespace()
		if strings.HasPrefix(p.input[p.pos:], "=>") {
			p.pos += 2
			key, err := keyString(value)
			if err != nil {
				return nil, err
			}
			entry, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			result[key] = entry
		} else {
			result[strconv.Itoa(index)] = value
			index++
		}

		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
		default:
			return nil, fmt.Errorf("expected ',' or '%c' at offset %d", closer, p.pos)
		}
	}
}

func keyString(v interface{}) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	default:
		return "", fmt.Errorf("unsupported array key type %T", v)
	}
}

func (p *phpParser) parseString() (string, error) {
	quote := p.input[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == quote {
			p.pos++
			return sb.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.input) {
			next := p.input[p.pos+1]
			if quote == '\'' {
				// single-quoted strings only escape \' and \\
				if next == '\'' || next == '\\' {
					sb.WriteByte(next)
					p.pos += 2
					continue
				}
				sb.WriteByte(c)
				p.pos++
				continue
			}
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"', '\\', '$':
				sb.WriteByte(next)
			default:
				sb.WriteByte(c)
				sb.WriteByte(next)
			}
			p.pos += 2
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *phpParser) parseNumber() (interface{}, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if unicode.IsDigit(rune(c)) {
			p.pos++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	text := p.input[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return n, nil
}

// lookupPath walks nested maps by key. Returns nil when any segment is
// missing or not a map.
func lookupPath(m map[string]interface{}, path ...string) interface{} {
	var current interface{} = m
	for _, key := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = node[key]
		if !ok {
			return nil
		}
	}
	return current
}

// stringAt returns the string value at a nested path, or "".
func stringAt(m map[string]interface{}, path ...string) string {
	switch v := lookupPath(m, path...).(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// intAt returns the integer value at a nested path, or 0. String
// values holding digits are converted, since PHP configs mix both.
func intAt(m map[string]interface{}, path ...string) int {
	switch v := lookupPath(m, path...).(type) {
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
