package pdx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File-level entry points. One call handles one buffer end-to-end; nothing
// here keeps state across calls, so independent calls may run concurrently
// on their own documents and buffers.

func writeHeader(w *Writer) {
	w.WriteBytes([]byte(FileSignature))
	w.WriteUint32(FormatVersion)
}

// readHeader checks the signature and returns the format revision, gating
// files from incompatible revisions before any chunk decode is attempted.
func readHeader(r *Reader) (uint32, error) {
	sig, err := r.ReadBytes(len(FileSignature))
	if err != nil {
		return 0, err
	}
	if string(sig) != FileSignature {
		return 0, fmt.Errorf("bad file signature %q: %w", sig, ErrMalformedChunk)
	}
	version, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if version != FormatVersion {
		return version, fmt.Errorf("file is format revision %d, this codec reads revision %d: %w", version, FormatVersion, ErrUnsupportedVersion)
	}
	return version, nil
}

// ReadChunkTree parses a raw buffer into its chunk tree without applying any
// mesh or animation schema. Inspection tools use this directly.
func ReadChunkTree(data []byte) (*Chunk, uint32, error) {
	r := NewReader(data)
	version, err := readHeader(r)
	if err != nil {
		return nil, version, err
	}
	root, err := DecodeChunk(r)
	if err != nil {
		return nil, version, err
	}
	return root, version, nil
}

// EncodeMesh serializes a mesh document into a .mesh buffer.
func EncodeMesh(doc *MeshDocument) ([]byte, error) {
	root, err := EncodeMeshDocument(doc)
	if err != nil {
		return nil, err
	}
	w := NewWriter()
	writeHeader(w)
	EncodeChunk(w, root)
	return w.Bytes(), nil
}

// DecodeMesh parses a .mesh buffer. The validator runs before the document
// is returned: on any fatal finding no document comes back at all, since a
// half-decoded mesh is worse than none. Non-fatal warnings accompany the
// document and are never dropped.
func DecodeMesh(data []byte) (*MeshDocument, []ValidationWarning, error) {
	root, _, err := ReadChunkTree(data)
	if err != nil {
		return nil, nil, err
	}
	doc, err := DecodeMeshDocument(root)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := ValidateMeshDocument(doc)
	if err != nil {
		return nil, warnings, err
	}
	return doc, warnings, nil
}

// EncodeAnim serializes an animation clip into a .anim buffer. staticTol is
// the per-component tolerance for collapsing constant sub-channels; pass
// StaticSampleTolerance unless matching a specific engine build.
func EncodeAnim(clip *AnimationClip, staticTol float32) ([]byte, error) {
	root, err := EncodeAnimationClip(clip, staticTol)
	if err != nil {
		return nil, err
	}
	w := NewWriter()
	writeHeader(w)
	EncodeChunk(w, root)
	return w.Bytes(), nil
}

// DecodeAnim parses a .anim buffer, with the same validate-before-return
// contract as DecodeMesh.
func DecodeAnim(data []byte) (*AnimationClip, []ValidationWarning, error) {
	root, _, err := ReadChunkTree(data)
	if err != nil {
		return nil, nil, err
	}
	clip, warnings, err := DecodeAnimationClip(root)
	if err != nil {
		return nil, nil, err
	}
	more, err := ValidateAnimationClip(clip)
	warnings = append(warnings, more...)
	if err != nil {
		return nil, warnings, err
	}
	return clip, warnings, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MeshReadFrom loads and decodes a .mesh file.
func MeshReadFrom(path string) (*MeshDocument, []ValidationWarning, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}
	return DecodeMesh(data)
}

// MeshWriteTo encodes a document and writes it, creating directories as
// needed.
func MeshWriteTo(path string, doc *MeshDocument) error {
	data, err := EncodeMesh(doc)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// AnimReadFrom loads and decodes a .anim file.
func AnimReadFrom(path string) (*AnimationClip, []ValidationWarning, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}
	return DecodeAnim(data)
}

// AnimWriteTo encodes a clip and writes it, creating directories as needed.
func AnimWriteTo(path string, clip *AnimationClip) error {
	data, err := EncodeAnim(clip, StaticSampleTolerance)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}
