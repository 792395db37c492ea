// Package file implements the repository contracts on a single JSON document
// stored on disk.
//
// The whole document is rewritten on every change through a temporary file
// and an atomic rename, which is adequate for a single-household installation.
package file
