package codec

import (
	"strings"

	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// Header is written at the top of every encoded catalog.
const Header = "# mdBook Catalog\n# Managed by mdBook Builder Admin\n\n"

// booksKey is the top-level key holding the record sequence.
const booksKey = "books:"

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Encode renders c as catalog.yml text. Records are written in order with
// absent type, branch and path replaced by their defaults.
func Encode(c types.Catalog) []byte {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString(booksKey)
	sb.WriteByte('\n')

	for _, b := range c.Books {
		b = b.WithDefaults()
		writeField(&sb, "  - ", fieldName, b.Name)
		writeField(&sb, "    ", fieldSlug, b.Slug)
		writeField(&sb, "    ", fieldRepo, b.Repo)
		writeField(&sb, "    ", fieldType, b.Type)
		writeField(&sb, "    ", fieldBranch, b.Branch)
		writeField(&sb, "    ", fieldPath, b.Path)
	}
	return []byte(sb.String())
}

func writeField(sb *strings.Builder, indent string, f field, value string) {
	sb.WriteString(indent)
	sb.WriteString(f.key())
	sb.WriteString(`: "`)
	sb.WriteString(escaper.Replace(value))
	sb.WriteString("\"\n")
}
