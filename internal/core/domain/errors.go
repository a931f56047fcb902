package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrSettingNotFound = errors.New("setting not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDuplicateID     = errors.New("record id already exists")
	ErrQuotaExhausted  = errors.New("classification quota exhausted")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
