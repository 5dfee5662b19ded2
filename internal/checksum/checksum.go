// Package checksum computes content digests for verifying downloads
// against the hosting API.
package checksum

import (
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1
	"encoding/hex"
	"strconv"
)

// GitBlob returns the git blob id of data, the sha the contents API
// reports for every file.
func GitBlob(data []byte) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte("blob " + strconv.Itoa(len(data)) + "\x00"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
