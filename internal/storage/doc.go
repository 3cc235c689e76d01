// Package storage persists the unit state snapshot.
//
// There is exactly one backend: a flat JSON file mapping unit name to its last
// known status. Writes are atomic (temp file + fsync + rename in the same
// directory), so a crash mid-write leaves the previous snapshot intact.
package storage
