// Package codec converts a catalog to and from the catalog.yml text format.
//
// The format is a fixed subset of YAML: a header comment, a "books:" key and
// one block mapping per book with the fields name, slug, repo, type, branch
// and path, each value quoted. It is not a general YAML implementation.
//
//	# mdBook Catalog
//	# Managed by mdBook Builder Admin
//
//	books:
//	  - name: "Guide"
//	    slug: "guide"
//	    repo: "org/guide"
//	    type: "mdbook"
//	    branch: "main"
//	    path: "."
//
// Double-quoted values may carry the escapes \" \\ \n \r and \t. Values
// without those characters encode exactly as earlier catalog files did.
package codec
