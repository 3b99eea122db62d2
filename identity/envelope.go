package identity

import (
	"encoding/pem"
	"fmt"
	"os"
)

const pemBlockType = "BUCKETMESH IDENTITY KEY"

// keyFileMode is the file mode a loaded or saved identity key must carry.
// Anything looser is rejected on load.
const keyFileMode = 0o600

// SaveSecretKey persists sk as a PEM-like envelope at path, restricted to
// the owning user (mode 0600).
func SaveSecretKey(path string, sk SecretKey) error {
	block := &pem.Block{Type: pemBlockType, Bytes: sk[:]}
	data := pem.EncodeToMemory(block)
	if err := os.WriteFile(path, data, keyFileMode); err != nil {
		return fmt.Errorf("identity: save key: %w", err)
	}
	return nil
}

// LoadSecretKey reads and decodes a secret key previously written by
// SaveSecretKey. It rejects files whose permission bits are looser than
// owner read/write.
func LoadSecretKey(path string) (SecretKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SecretKey{}, fmt.Errorf("identity: load key: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return SecretKey{}, fmt.Errorf("%w: %s", ErrKeyFileMode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SecretKey{}, fmt.Errorf("identity: load key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemBlockType {
		return SecretKey{}, fmt.Errorf("%w: not a valid identity key file", ErrInvalidKeyFile)
	}
	return SecretKeyFromBytes(block.Bytes)
}
