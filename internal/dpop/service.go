package dpop

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Service implements the DPoP public contract of spec.md §4.2: proof
// generation, ordered verification, and token-binding validation.
type Service struct {
	cfg   Config
	cache types.JTICache
	clock types.Clock

	ownsCache bool
}

// Option customizes Service construction.
type Option func(*Service)

// WithJTICache supplies an external JTICache (e.g. Redis-backed) instead of
// the in-process default. The caller retains ownership and Close().
func WithJTICache(c types.JTICache) Option {
	return func(s *Service) {
		s.cache = c
		s.ownsCache = false
	}
}

// WithClock overrides the default system clock, primarily for tests.
func WithClock(c types.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService validates cfg and constructs a DPoP Service. If no JTICache is
// supplied via WithJTICache, an in-process MemoryJTICache is created and
// owned by the Service (closed by Service.Close).
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, clock: types.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryJTICache(cfg.JTISweepInterval)
		s.ownsCache = true
	}
	return s, nil
}

// Close releases the in-process JTI cache if this Service owns one.
func (s *Service) Close() error {
	if s.ownsCache {
		return s.cache.Close()
	}
	return nil
}

// IsRequired reports whether DPoP is mandatory for the given tier (spec.md
// §4.2 public contract).
func (s *Service) IsRequired(t types.Tier) bool { return s.cfg.IsRequired(t) }

// GenerateProof mints a compact DPoP JWS for the given private key, HTTP
// method, and absolute URI. If ath is non-empty it is embedded verbatim
// (callers normally pass base64url(sha256(accessToken))).
func (s *Service) GenerateProof(priv *ecdsa.PrivateKey, method, uri, ath string) (string, error) {
	if priv == nil {
		return "", securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "private key required")
	}
	alg, err := algForCurve(priv.Curve)
	if err != nil {
		return "", securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "unsupported signing curve", err)
	}
	jwk, err := jwkFromPublicKey(&priv.PublicKey)
	if err != nil {
		return "", securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "derive public jwk", err)
	}

	now := time.Unix(s.clock.Now(), 0)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		HTTPMethod:      strings.ToUpper(method),
		HTTPURI:         uri,
		AccessTokenHash: ath,
	}

	var method_ jwt.SigningMethod
	switch alg {
	case "ES256":
		method_ = jwt.SigningMethodES256
	case "ES384":
		method_ = jwt.SigningMethodES384
	case "ES512":
		method_ = jwt.SigningMethodES512
	}

	token := jwt.NewWithClaims(method_, claims)
	token.Header["typ"] = "dpop+jwt"
	token.Header["jwk"] = map[string]string{
		"kty": jwk.Kty,
		"crv": jwk.Crv,
		"x":   jwk.X,
		"y":   jwk.Y,
	}

	signed, err := token.SignedString(priv)
	if err != nil {
		return "", securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidSignature, "sign dpop proof", err)
	}
	return signed, nil
}

// VerifyProof runs the ordered verification algorithm of spec.md §4.2 steps
// 1-12 and, on success, stores the jti in the replay cache.
func (s *Service) VerifyProof(ctx context.Context, proof, expectedMethod, expectedURI, expectedAth string) (*Proof, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	unverified, _, err := parser.ParseUnverified(proof, &Claims{})
	if err != nil {
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "malformed proof", err)
	}

	// step 1: typ
	typ, _ := unverified.Header["typ"].(string)
	if typ != "dpop+jwt" {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "typ must be dpop+jwt")
	}

	// step 2: alg allow-list
	alg, _ := unverified.Header["alg"].(string)
	if !allowedAlgs[alg] {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, fmt.Sprintf("alg %q not allowed", alg))
	}

	// step 3: jwk present
	jwkRaw, ok := unverified.Header["jwk"]
	if !ok {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "missing jwk header")
	}
	jwkMap, ok := jwkRaw.(map[string]interface{})
	if !ok {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "jwk header must be an object")
	}
	jwk, err := jwkFromMap(jwkMap)
	if err != nil {
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "invalid jwk", err)
	}

	// step 4: claim schema (jti/htm/htu/iat required)
	claims, ok := unverified.Claims.(*Claims)
	if !ok || claims.ID == "" || claims.HTTPMethod == "" || claims.HTTPURI == "" || claims.IssuedAt == nil {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "missing required claim")
	}

	// step 5: replay
	seen, err := s.cache.Exists(ctx, claims.ID)
	if err != nil {
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "jti cache lookup failed", err)
	}
	if seen {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeReplay, "jti already used")
	}

	now := time.Unix(s.clock.Now(), 0)
	iat := claims.IssuedAt.Time

	// step 6: expired
	if iat.Add(s.cfg.MaxProofAge).Add(s.cfg.ClockSkew).Before(now) {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeExpired, "proof age exceeds max_proof_age")
	}

	// step 7: future-dated
	if iat.After(now.Add(s.cfg.ClockSkew)) {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "iat is in the future")
	}

	// step 8: method
	if !strings.EqualFold(claims.HTTPMethod, expectedMethod) {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeMethodMismatch, "htm does not match request method")
	}

	// step 9: uri (byte-exact)
	if claims.HTTPURI != expectedURI {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeURIMismatch, "htu does not match request uri")
	}

	// step 10: ath
	if expectedAth != "" && claims.AccessTokenHash != expectedAth {
		return nil, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "ath does not match presented token")
	}

	// step 11: signature
	pub, err := publicKeyFromJWK(jwk)
	if err != nil {
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "invalid public key material", err)
	}
	verified, err := jwt.ParseWithClaims(proof, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return pub, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !verified.Valid {
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidSignature, "signature verification failed", err)
	}

	// step 12: thumbprint + store jti
	thumbprint, err := Thumbprint(jwk)
	if err != nil {
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "thumbprint computation failed", err)
	}
	expiresAt := iat.Add(s.cfg.MaxProofAge).Unix()
	if err := s.cache.Store(ctx, claims.ID, expiresAt); err != nil {
		logx.WithContext(ctx).Errorf("dpop: failed to store jti %s: %v", claims.ID, err)
		return nil, securerr.Wrap(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "jti cache store failed", err)
	}

	return &Proof{Claims: *claims, JWK: jwk, Thumbprint: thumbprint}, nil
}

// ValidateBoundToken implements spec.md §4.2's validate_bound_token: it
// verifies the proof with expected_ath = base64url(sha256(token)) and, when
// tokenCnfJKT is non-empty, additionally requires the proof's key
// thumbprint to equal it (P3 of spec.md §8).
func (s *Service) ValidateBoundToken(ctx context.Context, token, proof, method, uri, tokenCnfJKT string) (bool, error) {
	sum := sha256.Sum256([]byte(token))
	ath := base64.RawURLEncoding.EncodeToString(sum[:])

	p, err := s.VerifyProof(ctx, proof, method, uri, ath)
	if err != nil {
		return false, err
	}
	if tokenCnfJKT != "" && p.Thumbprint != tokenCnfJKT {
		return false, securerr.New(securerr.ComponentDPoP, securerr.CodeInvalidFormat, "proof thumbprint does not match token cnf.jkt")
	}
	return true, nil
}

func jwkFromMap(m map[string]interface{}) (JWK, error) {
	get := func(k string) (string, bool) {
		v, ok := m[k].(string)
		return v, ok
	}
	kty, _ := get("kty")
	if kty != "EC" {
		return JWK{}, fmt.Errorf("dpop: only EC jwk supported, got %q", kty)
	}
	crv, ok1 := get("crv")
	x, ok2 := get("x")
	y, ok3 := get("y")
	if !ok1 || !ok2 || !ok3 {
		return JWK{}, fmt.Errorf("dpop: EC jwk missing crv/x/y")
	}
	if _, hasD := m["d"]; hasD {
		return JWK{}, fmt.Errorf("dpop: jwk must not carry private component d")
	}
	return JWK{Kty: kty, Crv: crv, X: x, Y: y}, nil
}
