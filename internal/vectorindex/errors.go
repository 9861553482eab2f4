package vectorindex

import "errors"

// ErrCorruptIndex is returned by Open when the two artifacts are not a
// consistent pair.
var ErrCorruptIndex = errors.New("vector index is corrupt")
