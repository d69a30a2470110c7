package substitute

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// replace substitutes the first match of c in text, or every match when
// the global flag is set
func (c *compiled) replace(text, template string) (string, error) {
	input := []rune(text)

	m, err := c.re.FindRunesMatch(input)
	if err != nil {
		return "", err
	}
	if m == nil {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0

	for m != nil {
		b.WriteString(string(input[last:m.Index]))
		c.expand(&b, template, input, m)
		last = m.Index + m.Length

		if !c.flags.global {
			break
		}
		if m, err = c.re.FindNextMatch(m); err != nil {
			return "", err
		}
	}

	b.WriteString(string(input[last:]))
	return b.String(), nil
}

// expand writes template with its $ references resolved against m, using
// the substitution rules of JavaScript's String.prototype.replace
func (c *compiled) expand(b *strings.Builder, template string, input []rune, m *regexp2.Match) {
	for i := 0; i < len(template); i++ {
		ch := template[i]
		if ch != '$' || i+1 == len(template) {
			b.WriteByte(ch)
			continue
		}

		switch next := template[i+1]; {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '&':
			b.WriteString(m.String())
			i++
		case next == '`':
			b.WriteString(string(input[:m.Index]))
			i++
		case next == '\'':
			b.WriteString(string(input[m.Index+m.Length:]))
			i++
		case next >= '0' && next <= '9':
			n, width := c.groupRef(template[i+1:])
			if width == 0 {
				b.WriteByte('$')
				continue
			}
			writeGroup(b, m.GroupByNumber(n))
			i += width
		case next == '<':
			if !c.named {
				b.WriteByte('$')
				continue
			}
			end := strings.IndexByte(template[i+2:], '>')
			if end < 0 {
				b.WriteByte('$')
				continue
			}
			writeGroup(b, m.GroupByName(template[i+2:i+2+end]))
			i += end + 2
		default:
			b.WriteByte('$')
		}
	}
}

// groupRef parses the one or two digit group number at the start of s.
// Two digits win when they name an existing group. A zero width means s
// does not reference a group and the $ is literal.
func (c *compiled) groupRef(s string) (n, width int) {
	first := int(s[0] - '0')
	if len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
		if nn := first*10 + int(s[1]-'0'); nn >= 1 && nn <= c.groups {
			return nn, 2
		}
	}
	if first >= 1 && first <= c.groups {
		return first, 1
	}
	return 0, 0
}

// writeGroup writes the text captured by g; unmatched groups expand to
// nothing
func writeGroup(b *strings.Builder, g *regexp2.Group) {
	if g == nil || len(g.Captures) == 0 {
		return
	}
	b.WriteString(g.String())
}
