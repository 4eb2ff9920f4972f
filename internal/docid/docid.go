// Package docid provides deterministic IDs for knowledge documents and their segments.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const prefix = "doc:"

// DocumentID returns a stable ID for the record at position in the knowledge source.
// The same position, question and URL always yield the same ID; the position keeps
// duplicate records distinct.
func DocumentID(position int, question, url string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(question)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(url)))
	return prefix + hex.EncodeToString(h.Sum(nil)[:16])
}

// SegmentID returns the ID of the ordinal-th segment of a document.
func SegmentID(documentID string, ordinal int) string {
	return documentID + "#" + strconv.Itoa(ordinal)
}

// DocumentOf returns the document ID a segment ID was derived from.
func DocumentOf(segmentID string) string {
	if i := strings.LastIndexByte(segmentID, '#'); i >= 0 {
		return segmentID[:i]
	}
	return segmentID
}
