package codec

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// field identifies one of the six record keys.
type field int

const (
	fieldName field = iota
	fieldSlug
	fieldRepo
	fieldType
	fieldBranch
	fieldPath
	fieldCount
)

var fieldKeys = [fieldCount]string{"name", "slug", "repo", "type", "branch", "path"}

func (f field) key() string {
	return fieldKeys[f]
}

// set stores value in the matching Book field.
func (f field) set(b *types.Book, value string) {
	switch f {
	case fieldName:
		b.Name = value
	case fieldSlug:
		b.Slug = value
	case fieldRepo:
		b.Repo = value
	case fieldType:
		b.Type = value
	case fieldBranch:
		b.Branch = value
	case fieldPath:
		b.Path = value
	}
}

// recordStart introduces a new record.
const recordStart = "- name:"

// lineKind classifies one input line.
type lineKind int

const (
	lineSkip        lineKind = iota // Blank or comment.
	lineBooks                       // The books: key.
	lineRecordStart                 // "- name: ..." opens a record.
	lineField                       // "<field>: ..." inside a record.
	lineUnknownKey                  // "<key>: ..." for a key this format does not define.
	lineUnrecognized                // Anything else.
)

// line is the tagged result of classifying one input line.
type line struct {
	num   int
	kind  lineKind
	field field  // lineRecordStart and lineField.
	key   string // lineUnknownKey.
	raw   string // Value text after the key, untrimmed of quotes.
}

func classify(num int, text string) line {
	t := strings.TrimSpace(text)
	l := line{num: num}
	switch {
	case t == "" || strings.HasPrefix(t, "#"):
		l.kind = lineSkip
	case strings.HasPrefix(t, recordStart):
		l.kind = lineRecordStart
		l.field = fieldName
		l.raw = t[len(recordStart):]
	case strings.HasPrefix(t, booksKey) && isEmptySequence(t[len(booksKey):]):
		l.kind = lineBooks
	default:
		for f := fieldSlug; f < fieldCount; f++ {
			prefix := f.key() + ":"
			if strings.HasPrefix(t, prefix) {
				l.kind = lineField
				l.field = f
				l.raw = t[len(prefix):]
				return l
			}
		}
		if key, _, ok := strings.Cut(strings.TrimPrefix(t, "- "), ":"); ok && key != "" {
			l.kind = lineUnknownKey
			l.key = key
			return l
		}
		l.kind = lineUnrecognized
	}
	return l
}

// isEmptySequence reports whether the text after "books:" leaves the key
// bare or holds an explicit empty flow sequence.
func isEmptySequence(rest string) bool {
	rest = strings.TrimSpace(rest)
	return rest == "" || rest == "[]"
}

// accumulator collects the fields of the record being decoded.
type accumulator struct {
	line int
	book types.Book
	seen [fieldCount]bool
}

// decoder is the line-oriented state machine shared by Decode and
// DecodeStrict.
type decoder struct {
	books    []types.Book
	open     *accumulator
	sawBooks bool
	issues   []*types.DecodeError
}

func (d *decoder) issue(num int, format string, args ...any) {
	d.issues = append(d.issues, &types.DecodeError{Line: num, Reason: fmt.Sprintf(format, args...)})
}

func (d *decoder) flush() {
	if d.open != nil {
		d.books = append(d.books, d.open.book)
		d.open = nil
	}
}

func (d *decoder) value(l line) string {
	v, ok := extractValue(l.raw)
	if !ok {
		d.issue(l.num, "mismatched quotes in %s value", l.field.key())
	}
	return v
}

func (d *decoder) step(l line) {
	switch l.kind {
	case lineSkip:
	case lineBooks:
		d.sawBooks = true
	case lineRecordStart:
		if !d.sawBooks {
			d.issue(l.num, "record before %q key", booksKey)
		}
		d.flush()
		d.open = &accumulator{line: l.num}
		d.open.book.Name = d.value(l)
		d.open.seen[fieldName] = true
	case lineField:
		if d.open == nil {
			d.issue(l.num, "%s field outside a record", l.field.key())
			return
		}
		if d.open.seen[l.field] {
			d.issue(l.num, "duplicate %s field in record starting at line %d", l.field.key(), d.open.line)
		}
		l.field.set(&d.open.book, d.value(l))
		d.open.seen[l.field] = true
	case lineUnknownKey:
		d.issue(l.num, "unknown key %q", l.key)
	case lineUnrecognized:
		d.issue(l.num, "unrecognized line")
	}
}

func (d *decoder) run(data []byte) {
	for i, text := range strings.Split(string(data), "\n") {
		d.step(classify(i+1, text))
	}
	d.flush()
}

// Decode parses catalog.yml text best-effort. It never fails: blank lines,
// comments and lines it does not understand are skipped, and records missing
// fields decode with those fields empty. The returned issues list what a
// strict decode would reject, in line order.
func Decode(data []byte) (types.Catalog, []*types.DecodeError) {
	var d decoder
	d.run(data)
	return types.Catalog{Books: d.books}, d.issues
}

// DecodeStrict parses catalog.yml text and returns a *types.DecodeError for
// the first malformed line.
func DecodeStrict(data []byte) (types.Catalog, error) {
	c, issues := Decode(data)
	if len(issues) > 0 {
		return types.Catalog{}, issues[0]
	}
	return c, nil
}

// extractValue trims raw and strips one matching pair of surrounding quotes.
// Double-quoted values are unescaped. Unquoted values pass through. A lone
// quote character is an empty value. ok is false when the value opens or
// closes with a quote that has no partner.
func extractValue(raw string) (value string, ok bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return v, true
	}
	first, last := v[0], v[len(v)-1]
	switch {
	case len(v) == 1 && isQuote(first):
		// A lone quote opens and closes an empty value.
		return "", true
	case len(v) >= 2 && first == '"' && last == '"':
		return unescape(v[1 : len(v)-1]), true
	case len(v) >= 2 && first == '\'' && last == '\'':
		return v[1 : len(v)-1], true
	case isQuote(first) || isQuote(last):
		return v, false
	}
	return v, true
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}

// unescape resolves \" \\ \n \r and \t. Any other backslash is kept as is.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		default:
			sb.WriteByte(c)
			continue
		}
		i++
	}
	return sb.String()
}
