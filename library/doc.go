// Package library maintains the media index: a SQLite database of known
// media files plus a scanner that keeps it in sync with the filesystem.
package library
