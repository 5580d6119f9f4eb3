// Package fs abstracts the few filesystem operations used to write run
// output, so tests can inject write, sync and close failures.
//
// Production code uses [Default]. [WriteFileAtomic] writes through a
// temporary file and renames it into place, so readers never observe a
// partially written result.
package fs
