// Package store defines the parse-session history repository. Implementations
// live in the postgres and sqlite subpackages; this package must not import
// database drivers or concrete clients.
package store
