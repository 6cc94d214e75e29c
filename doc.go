// Package pdx reads and writes the PDX binary mesh (.mesh) and skeletal
// animation (.anim) formats: a little-endian stream of named, typed, nested
// chunks. The package converts between raw buffers and plain in-memory
// documents; host application integration (scene traversal, UI) sits above
// it and is out of scope here.
//
// Decode is strict: truncated or malformed input fails without returning a
// partial document, while unknown chunk tags from newer files are skipped.
// Suspicious but usable values come back as validation warnings next to the
// document.
package pdx
