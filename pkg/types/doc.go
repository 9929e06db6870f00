// Package types defines the catalog entities, the DocumentStore interface,
// configuration and the error kinds shared by the bookshelf packages.
package types
