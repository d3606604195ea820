package tee

import "github.com/aci-systems/security-core/internal/types/securerr"

func asSecurerr(err error) (*securerr.Error, bool) {
	return securerr.As(err)
}
