package jsonrepair

import "strings"

// Repair applies a best-effort cleanup to model-produced JSON so that
// encoding/json can parse it: code fences are removed, single-quoted strings
// become double-quoted, bare object keys get quoted, missing commas between
// adjacent elements are inserted, and trailing commas are dropped.
// The result is not guaranteed to be valid JSON.
func Repair(raw string) string {
	s := StripFences(raw)
	s = normalizeQuotes(s)
	s = quoteBareKeys(s)
	s = insertMissingCommas(s)
	s = stripTrailingCommas(s)
	return strings.TrimSpace(s)
}

// StripFences removes surrounding markdown code-fence markup.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}

	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}

	return strings.TrimSpace(s)
}

func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inDouble := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inDouble {
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			if c == '"' {
				inDouble = false
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inDouble = true
			b.WriteByte(c)
		case '\'':
			b.WriteByte('"')
			for i++; i < len(s); i++ {
				c = s[i]
				if c == '\\' && i+1 < len(s) {
					if s[i+1] == '\'' {
						b.WriteByte('\'')
					} else {
						b.WriteByte('\\')
						b.WriteByte(s[i+1])
					}
					i++
					continue
				}
				if c == '\'' {
					break
				}
				if c == '"' {
					b.WriteString(`\"`)
					continue
				}
				b.WriteByte(c)
			}
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func quoteBareKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	lastSignificant := byte(0)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			b.WriteByte(c)
			continue
		}

		if c == '"' {
			inString = true
			lastSignificant = c
			b.WriteByte(c)
			continue
		}

		if isIdentByte(c) && (lastSignificant == '{' || lastSignificant == ',' || lastSignificant == 0) {
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			k := j
			for k < len(s) && isSpaceByte(s[k]) {
				k++
			}
			if k < len(s) && s[k] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
				lastSignificant = '"'
				i = j - 1
				continue
			}
			b.WriteString(s[i:j])
			lastSignificant = s[j-1]
			i = j - 1
			continue
		}

		if !isSpaceByte(c) {
			lastSignificant = c
		}
		b.WriteByte(c)
	}

	return b.String()
}

func insertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	valueEnded := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			if c == '"' {
				inString = false
				valueEnded = true
			}
			b.WriteByte(c)
			continue
		}

		if isSpaceByte(c) {
			b.WriteByte(c)
			continue
		}

		if valueEnded && (c == '"' || c == '{' || c == '[') {
			b.WriteByte(',')
		}

		switch {
		case c == '"':
			inString = true
			valueEnded = false
		case c == '}' || c == ']' || (c >= '0' && c <= '9'):
			valueEnded = true
		case c == ':' || c == ',' || c == '{' || c == '[':
			valueEnded = false
		}

		b.WriteByte(c)
	}

	return b.String()
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			b.WriteByte(c)
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}

		if c == ',' {
			j := i + 1
			for j < len(s) && isSpaceByte(s[j]) {
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

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
