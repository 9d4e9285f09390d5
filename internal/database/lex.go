package database

import "strings"

type segmentKind int

const (
	segCode segmentKind = iota
	segString
	segIdent
	segComment
	segDollar
)

// segment is a run of SQL text of one lexical kind. Only segCode segments
// may contain statement separators or placeholders.
type segment struct {
	kind segmentKind
	text string
}

// lexSQL cuts sql into code, quoted and comment segments. Unterminated
// quotes and comments extend to the end of the input; the server reports
// those.
func lexSQL(sql string) []segment {
	var segs []segment
	start := 0
	flush := func(end int) {
		if end > start {
			segs = append(segs, segment{kind: segCode, text: sql[start:end]})
		}
	}

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'':
			flush(i)
			escapes := i > 0 && (sql[i-1] == 'e' || sql[i-1] == 'E') && (i < 2 || !isIdentByte(sql[i-2]))
			end := scanQuoted(sql, i, '\'', escapes)
			segs = append(segs, segment{kind: segString, text: sql[i:end]})
			i, start = end, end
		case c == '"':
			flush(i)
			end := scanQuoted(sql, i, '"', false)
			segs = append(segs, segment{kind: segIdent, text: sql[i:end]})
			i, start = end, end
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			flush(i)
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 1
			}
			segs = append(segs, segment{kind: segComment, text: sql[i:end]})
			i, start = end, end
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			flush(i)
			end := scanBlockComment(sql, i)
			segs = append(segs, segment{kind: segComment, text: sql[i:end]})
			i, start = end, end
		case c == '$' && (i == 0 || !isIdentByte(sql[i-1])):
			tag, ok := dollarTag(sql[i:])
			if !ok {
				i++
				continue
			}
			flush(i)
			end := strings.Index(sql[i+len(tag):], tag)
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 2*len(tag)
			}
			segs = append(segs, segment{kind: segDollar, text: sql[i:end]})
			i, start = end, end
		default:
			i++
		}
	}
	flush(len(sql))
	return segs
}

// scanQuoted returns the index just past the closing quote starting at
// sql[open]. A doubled quote is an escaped quote.
func scanQuoted(sql string, open int, q byte, backslash bool) int {
	i := open + 1
	for i < len(sql) {
		switch sql[i] {
		case '\\':
			if backslash {
				i += 2
				continue
			}
		case q:
			if i+1 < len(sql) && sql[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(sql)
}

// scanBlockComment handles nested /* */ comments.
func scanBlockComment(sql string, open int) int {
	depth := 0
	i := open
	for i+1 < len(sql) {
		switch {
		case sql[i] == '/' && sql[i+1] == '*':
			depth++
			i += 2
		case sql[i] == '*' && sql[i+1] == '/':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(sql)
}

// dollarTag reports the $tag$ opening s, if any. $1 style parameters are
// not tags.
func dollarTag(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	if s[1] == '$' {
		return "$$", true
	}
	if !isIdentStart(s[1]) {
		return "", false
	}
	for j := 2; j < len(s); j++ {
		switch {
		case s[j] == '$':
			return s[:j+1], true
		case !isIdentByte(s[j]):
			return "", false
		}
	}
	return "", false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// SplitScript splits a script into statements on semicolons that are not
// inside literals, quoted identifiers, comments or dollar-quoted bodies.
// Statements consisting only of whitespace and comments are dropped.
func SplitScript(script string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		hasCode bool
	)
	emit := func() {
		if hasCode {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
		}
		cur.Reset()
		hasCode = false
	}

	for _, seg := range lexSQL(script) {
		if seg.kind != segCode {
			cur.WriteString(seg.text)
			if seg.kind != segComment {
				hasCode = true
			}
			continue
		}
		parts := strings.Split(seg.text, ";")
		for i, p := range parts {
			if i > 0 {
				emit()
			}
			cur.WriteString(p)
			if strings.TrimSpace(p) != "" {
				hasCode = true
			}
		}
	}
	emit()
	return stmts
}
