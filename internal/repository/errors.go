package repository

import (
	"errors"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
)

// translate maps storage errors onto the domain taxonomy. A missing row is
// NotFound, a unique violation is a Validation problem of the caller's input,
// anything else is infrastructure and may succeed on retry.
func translate(err error, what string, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NewNotFoundError("%s %q not found", what, key)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.NewValidationError("%s %q conflicts with an existing record", what, key)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewTransientError(err, "%s %q", what, key)
}
