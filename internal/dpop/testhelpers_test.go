package dpop

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/aci-systems/security-core/internal/types/securerr"
)

func asSecurerr(err error) (*securerr.Error, bool) {
	return securerr.As(err)
}

func athFor(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
