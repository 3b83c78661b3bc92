package registry

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// NotFound reports an unknown id or qualified name.
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPErrorf(http.StatusNotFound, format, args...)
}

// Conflict reports a qualified name already taken by a different definition.
func Conflict(format string, args ...any) error {
	return httperror.NewHTTPErrorf(http.StatusConflict, format, args...)
}

// Validation reports malformed input or unresolvable references.
func Validation(format string, args ...any) error {
	return httperror.NewHTTPErrorf(http.StatusBadRequest, format, args...)
}

// Integrity reports a broken store invariant. It is not recoverable by the caller.
func Integrity(format string, args ...any) error {
	return httperror.NewHTTPErrorf(http.StatusInternalServerError, format, args...)
}

// PreconditionFailed reports a delete refused because dependents remain.
func PreconditionFailed(dependents []string) error {
	msg := fmt.Sprintf("Entity cannot be deleted as it has downstream/dependent entities. Entities: %v", dependents)
	return httperror.NewHTTPError(http.StatusPreconditionFailed, msg).AddMetaValue("dependents", dependents)
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func IsValidation(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

func IsPreconditionFailed(err error) bool {
	return hasStatus(err, http.StatusPreconditionFailed)
}

func hasStatus(err error, status int) bool {
	return err != nil && httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == status
}
