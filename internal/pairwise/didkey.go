package pairwise

import "github.com/mr-tron/base58"

// ed25519MulticodecPrefix is the did:key multicodec prefix for Ed25519
// public keys (spec.md §4.4: "Ed25519 multicodec prefix 0xed 0x01").
var ed25519MulticodecPrefix = [2]byte{0xed, 0x01}

// encodeDIDKey converts 32 bytes of derived material into a did:key using
// the Ed25519 multicodec prefix and multibase 'z' base58btc encoding.
func encodeDIDKey(material []byte) string {
	prefixed := make([]byte, 0, len(ed25519MulticodecPrefix)+len(material))
	prefixed = append(prefixed, ed25519MulticodecPrefix[:]...)
	prefixed = append(prefixed, material...)
	return "did:key:z" + base58.Encode(prefixed)
}
