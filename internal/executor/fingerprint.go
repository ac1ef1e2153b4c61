package executor

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Fingerprint identifies a call by its path and params. Map keys are encoded in
// sorted order, so logically equal params always hash the same; sequences keep
// their order. Credentials are merged after fingerprinting and never affect it.
func Fingerprint(path string, params any) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.EncodeString(path); err != nil {
		return "", fmt.Errorf("encode path: %w", err)
	}
	if err := enc.Encode(params); err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	sum := md5.Sum(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
