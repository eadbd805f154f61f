package chat

import (
	"errors"
	"fmt"

	"github.com/mrfansi/slacky/internal/store"
)

// Sentinel errors for every chat operation. Handlers translate these to
// HTTP statuses with errors.Is; services wrap them with context.
var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// storeErr maps gateway sentinels into the chat taxonomy, keeping the
// original message as context.
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	default:
		return err
	}
}
