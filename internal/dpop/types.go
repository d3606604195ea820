// Package dpop implements the DPoP (RFC 9449-style) proof-of-possession
// service of spec.md §4.2: proof generation, ordered verification, JWK
// thumbprint computation, and the JTI replay cache contract.
package dpop

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the DPoP proof payload of spec.md §3.
type Claims struct {
	jwt.RegisteredClaims
	HTTPMethod      string `json:"htm"`
	HTTPURI         string `json:"htu"`
	AccessTokenHash string `json:"ath,omitempty"`
}

// JWK is the public EC key carried in the proof header, per spec.md §3/§6.
// The private component "d" must never be present in a transmitted proof.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Proof is a parsed, signature-verified DPoP proof plus the derived JWK
// thumbprint.
type Proof struct {
	Claims     Claims
	JWK        JWK
	Thumbprint string
}

// allowedAlgs is the DPoP algorithm allow-list of spec.md §3: ES256, ES384,
// ES512.
var allowedAlgs = map[string]bool{
	"ES256": true,
	"ES384": true,
	"ES512": true,
}
