package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/tooling-tracker/internal/repository"
)

func TestTranslate(t *testing.T) {
	var ce *ConflictError
	err := translate("install", errors.Join(repository.ErrLockConflict, errors.New("Error 1213")))
	assert.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, repository.ErrLockConflict)

	err = translate("create tool", repository.ErrDuplicate)
	assert.ErrorAs(t, err, &ce)

	nf := &NotFoundError{Entity: "tool", Key: 1}
	assert.Same(t, nf, translate("x", nf))

	plain := errors.New("boom")
	err = translate("regrind", plain)
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, "regrind: boom", err.Error())

	assert.NoError(t, translate("noop", nil))
}
