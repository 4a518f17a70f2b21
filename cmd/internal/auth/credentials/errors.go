package credentials

import (
	"errors"
	"strings"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
)

var (
	// ErrBusy means no pool slot freed up (or the job did not finish) before
	// the caller's deadline.
	ErrBusy = errors.New("credentials: busy")

	// ErrWeakSecret is the kind behind WeakSecretError.
	ErrWeakSecret = errors.New("credentials: weak secret")
)

// WeakSecretError carries the strength report of a rejected secret.
type WeakSecretError struct {
	Result password.ValidationResult
}

func (e *WeakSecretError) Error() string {
	if len(e.Result.Errors) == 0 {
		return ErrWeakSecret.Error()
	}
	return ErrWeakSecret.Error() + ": " + strings.Join(e.Result.Errors, "; ")
}

func (e *WeakSecretError) Unwrap() error { return ErrWeakSecret }
