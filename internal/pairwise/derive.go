package pairwise

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const derivedMaterialLen = 32

// ikm builds the HKDF input keying material: "master_did:relying_party_did"
// (spec.md §4.4). The SHA-256 algorithm builds its own input in deriveSHA256.
func ikm(masterDID, rpDID string) []byte {
	return []byte(masterDID + ":" + rpDID)
}

// deriveHKDF implements the default algorithm of spec.md §4.4: HKDF-SHA256
// over ikm, with salt and info, producing 32 bytes of output.
func deriveHKDF(masterDID, rpDID, salt, info string) ([]byte, error) {
	if info == "" {
		info = DefaultInfo
	}
	reader := hkdf.New(sha256.New, ikm(masterDID, rpDID), []byte(salt), []byte(info))
	out := make([]byte, derivedMaterialLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// deriveSHA256 implements the fallback algorithm of spec.md §4.4:
// sha256(master_did || ":" || relying_party_did || ":" || salt).
func deriveSHA256(masterDID, rpDID, salt string) []byte {
	sum := sha256.Sum256([]byte(masterDID + ":" + rpDID + ":" + salt))
	return sum[:]
}

// derive dispatches on algorithm and returns the did:key string.
func derive(alg Algorithm, masterDID, rpDID, salt, info string) (string, error) {
	switch alg {
	case AlgorithmSHA256:
		return encodeDIDKey(deriveSHA256(masterDID, rpDID, salt)), nil
	case AlgorithmHKDF, "":
		material, err := deriveHKDF(masterDID, rpDID, salt, info)
		if err != nil {
			return "", err
		}
		return encodeDIDKey(material), nil
	default:
		material, err := deriveHKDF(masterDID, rpDID, salt, info)
		if err != nil {
			return "", err
		}
		return encodeDIDKey(material), nil
	}
}
