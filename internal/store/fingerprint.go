package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the 128-bit deterministic symbol ID described in
// spec §4.3: hash(language || '\0' || kind || '\0' || qualified_name ||
// '\0' || file_path) truncated to 128 bits and hex-encoded. SHA-256 is
// stdlib rather than a pack-provided hash library; no third-party
// package in the retrieval pack specializes in truncated content
// fingerprints, so this single primitive stays on crypto/sha256 (see
// DESIGN.md).
func Fingerprint(language, kind, qualifiedName, filePath string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(qualifiedName))
	h.Write([]byte{0})
	h.Write([]byte(filePath))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// FilesystemFingerprint computes the ID of a directory/file symbol:
// hash('fs\0' || relPath), where relPath is the slash-separated path
// relative to the project root.
func FilesystemFingerprint(relPath string) string {
	h := sha256.New()
	h.Write([]byte("fs"))
	h.Write([]byte{0})
	h.Write([]byte(relPath))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// ExternalFingerprint computes the ID of a placeholder external symbol:
// hash('ext\0' || language || '\0' || qualified_name).
func ExternalFingerprint(language, qualifiedName string) string {
	h := sha256.New()
	h.Write([]byte("ext"))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(qualifiedName))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
