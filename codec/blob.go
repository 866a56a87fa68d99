package codec

import (
	"encoding/base64"
	"fmt"
)

// DecodeBlob unwraps a map blob: an LZ-string URI-safe layer around a
// standard base64 layer around the binary document.
func DecodeBlob(encoded string) ([]byte, error) {
	inner, err := DecompressFromEncodedURIComponent(encoded)
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(inner)
	if err != nil {
		return nil, fmt.Errorf("decode blob base64: %w", err)
	}
	return raw, nil
}

// EncodeBlob is the inverse of DecodeBlob.
func EncodeBlob(raw []byte) string {
	return CompressToEncodedURIComponent(base64.StdEncoding.EncodeToString(raw))
}
