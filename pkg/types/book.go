package types

import (
	"regexp"
	"strings"
)

// Defaults applied to absent Book fields.
const (
	DefaultType   = "mdbook"
	DefaultBranch = "main"
	DefaultPath   = "."
)

// slugPattern is the accepted shape of a Book slug.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// slugSeparators matches every run of characters Slugify replaces with "-".
var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Book is one catalog entry. An empty string means the field is absent;
// absent Type, Branch and Path take their defaults when encoded.
type Book struct {
	Name   string `json:"name" yaml:"name"`
	Slug   string `json:"slug" yaml:"slug"`
	Repo   string `json:"repo" yaml:"repo"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// WithDefaults returns a copy of b with absent Type, Branch and Path set to
// their defaults.
func (b Book) WithDefaults() Book {
	if b.Type == "" {
		b.Type = DefaultType
	}
	if b.Branch == "" {
		b.Branch = DefaultBranch
	}
	if b.Path == "" {
		b.Path = DefaultPath
	}
	return b
}

// Trimmed returns a copy of b with surrounding whitespace removed from every
// field.
func (b Book) Trimmed() Book {
	return Book{
		Name:   strings.TrimSpace(b.Name),
		Slug:   strings.TrimSpace(b.Slug),
		Repo:   strings.TrimSpace(b.Repo),
		Type:   strings.TrimSpace(b.Type),
		Branch: strings.TrimSpace(b.Branch),
		Path:   strings.TrimSpace(b.Path),
	}
}

// Catalog is the ordered list of books held in the catalog document.
// Order is insertion order and is preserved through encoding.
type Catalog struct {
	Books []Book `json:"books" yaml:"books"`
}

// Len returns the number of books.
func (c Catalog) Len() int {
	return len(c.Books)
}

// Clone returns a copy of c that shares no backing array with it.
// A nil Books slice stays nil.
func (c Catalog) Clone() Catalog {
	if c.Books == nil {
		return Catalog{}
	}
	books := make([]Book, len(c.Books))
	copy(books, c.Books)
	return Catalog{Books: books}
}

// IndexOf returns the index of the book with the given slug, or -1.
func (c Catalog) IndexOf(slug string) int {
	for i, b := range c.Books {
		if b.Slug == slug {
			return i
		}
	}
	return -1
}

// ValidSlug reports whether s matches [a-z0-9-]+.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Slugify derives a slug from a display name: lowercase, every run of
// characters outside [a-z0-9] collapsed to one "-", and no leading or
// trailing "-". The result may be empty.
func Slugify(name string) string {
	s := slugSeparators.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
