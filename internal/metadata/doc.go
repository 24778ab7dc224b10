// Package metadata loads reference-counted file metadata records and caches
// them by path, reusing a record while its fingerprint is unchanged.
package metadata
