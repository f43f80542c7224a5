// Package intake collects the documents of a bulk issuance from a ZIP archive
// or a directory. Every regular file with an accepted extension becomes one
// batch document whose external ID is the file name up to its first dot.
// Entries that cannot be used are reported as skips rather than failing the
// whole intake.
package intake
