package dpop

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Thumbprint computes the RFC 7638 JWK thumbprint for an EC public key: the
// canonical member set {crv, kty, x, y} in lexicographic key order,
// SHA-256, base64url with no padding (spec.md §4.2 step 12).
func Thumbprint(jwk JWK) (string, error) {
	if jwk.Kty != "EC" {
		return "", fmt.Errorf("dpop: thumbprint requires kty=EC, got %q", jwk.Kty)
	}
	if jwk.Crv == "" || jwk.X == "" || jwk.Y == "" {
		return "", fmt.Errorf("dpop: EC jwk missing required member")
	}

	// encoding/json.Marshal on a map[string]string produces keys in sorted
	// (lexicographic) order, giving the canonical RFC 7638 serialization
	// without a bespoke encoder.
	canonical := map[string]string{
		"crv": jwk.Crv,
		"kty": jwk.Kty,
		"x":   jwk.X,
		"y":   jwk.Y,
	}
	buf, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("dpop: marshal canonical jwk: %w", err)
	}
	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// jwkFromPublicKey builds the header JWK (public members only -- "d" is
// never emitted) from an ECDSA public key.
func jwkFromPublicKey(pub *ecdsa.PublicKey) (JWK, error) {
	crv, size, err := curveName(pub.Curve)
	if err != nil {
		return JWK{}, err
	}
	x := make([]byte, size)
	y := make([]byte, size)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return JWK{
		Kty: "EC",
		Crv: crv,
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}, nil
}
