// Package bookshelf holds build metadata for the shelf binary.
package bookshelf

// Version is the release version of the shelf CLI.
var Version = "0.1.0"
