// Command example wires every security-core service together against
// in-memory backends and runs a handful of admission requests through the
// coordinator, logging each decision.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/aci-systems/security-core/internal/coordinator"
	"github.com/aci-systems/security-core/internal/dpop"
	"github.com/aci-systems/security-core/internal/introspection"
	"github.com/aci-systems/security-core/internal/lifetime"
	"github.com/aci-systems/security-core/internal/pairwise"
	"github.com/aci-systems/security-core/internal/revocation"
	"github.com/aci-systems/security-core/internal/tee"
	"github.com/aci-systems/security-core/internal/types"
)

type staticIntrospectionEndpoint struct {
	active bool
}

func (e staticIntrospectionEndpoint) Introspect(_ context.Context, token string) (types.IntrospectionResult, error) {
	return types.IntrospectionResult{Active: e.active, Sub: "did:example:agent"}, nil
}

func main() {
	logx.Disable() // the example prints its own summary; library logging stays quiet

	dpopSvc, err := dpop.NewService(dpop.DefaultConfig())
	must(err)
	defer dpopSvc.Close()

	teeSvc, err := tee.NewService(tee.DefaultConfig())
	must(err)

	pairwiseSvc, err := pairwise.NewService(pairwise.DefaultConfig())
	must(err)
	defer pairwiseSvc.Close()

	revocationSvc, err := revocation.NewService(revocation.DefaultConfig())
	must(err)
	defer revocationSvc.Close()

	lifetimeSvc, err := lifetime.NewService(lifetime.DefaultConfig())
	must(err)

	introspectionSvc, err := introspection.NewService(introspection.DefaultConfig(), staticIntrospectionEndpoint{active: true})
	must(err)
	defer introspectionSvc.Close()

	coord, err := coordinator.NewService(coordinator.Config{
		DPoP:          dpopSvc,
		TEE:           teeSvc,
		Pairwise:      pairwiseSvc,
		Revocation:    revocationSvc,
		Lifetime:      lifetimeSvc,
		Introspection: introspectionSvc,
	})
	must(err)
	defer coord.Close()

	ctx := context.Background()
	now := types.SystemClock{}.Now()

	// a low-tier request with a long-lived token: no DPoP, no TEE, passes.
	decision := coord.Admit(ctx, coordinator.Request{
		AgentDID:          "did:example:reader-agent",
		TrustTier:         types.TierT0,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/catalog"},
		AccessTokenClaims: types.TokenClaims{IssuedAt: now, ExpiresAt: now + 3600},
	})
	printDecision("T0 read", decision)

	// a T2 request needs DPoP: generate a proof bound to this exact request.
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	must(err)
	proof, err := dpopSvc.GenerateProof(key, "POST", "https://api.example.com/v1/orders", "")
	must(err)

	decision = coord.Admit(ctx, coordinator.Request{
		AgentDID:          "did:example:ordering-agent",
		TrustTier:         types.TierT2,
		Action:            types.ActionRequest{Method: "POST", URI: "https://api.example.com/v1/orders"},
		AccessTokenClaims: types.TokenClaims{IssuedAt: now, ExpiresAt: now + 290},
		DPoPProof:         proof,
	})
	printDecision("T2 order placement", decision)

	// revoke the agent, then show the same request denied.
	_, err = revocationSvc.RevokeAgent(ctx, revocation.Request{RevokedDID: "did:example:ordering-agent", Reason: "operator request"})
	must(err)
	decision = coord.Admit(ctx, coordinator.Request{
		AgentDID:          "did:example:ordering-agent",
		TrustTier:         types.TierT2,
		Action:            types.ActionRequest{Method: "POST", URI: "https://api.example.com/v1/orders", IsHighValue: true},
		AccessTokenClaims: types.TokenClaims{IssuedAt: now, ExpiresAt: now + 60},
		DPoPProof:         proof,
	})
	printDecision("T2 order placement after revocation", decision)
}

func printDecision(label string, d types.AdmissionDecision) {
	fmt.Printf("%-40s valid=%-5v level=%-4s", label, d.Valid, d.SecurityLevel)
	if len(d.Errors) > 0 {
		fmt.Printf(" error=%s (%s)", d.Errors[0].Code, d.Errors[0].Component)
	}
	if len(d.Warnings) > 0 {
		fmt.Printf(" warning=%q", d.Warnings[0])
	}
	fmt.Println()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
