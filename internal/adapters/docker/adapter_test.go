package docker

import (
	"errors"
	"testing"

	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"

	"github.com/melih/jmxbridge/internal/core/domain"
)

func TestWrapErr(t *testing.T) {
	base := errors.New("boom")

	assert.ErrorIs(t, wrapErr("list", errdefs.Unavailable(base)), domain.ErrRuntimeUnavailable)
	assert.ErrorIs(t, wrapErr("list", errdefs.System(base)), domain.ErrRuntimeUnavailable)

	notFound := wrapErr("exec", errdefs.NotFound(base))
	assert.NotErrorIs(t, notFound, domain.ErrRuntimeUnavailable)
	assert.True(t, errdefs.IsNotFound(notFound))

	conflict := wrapErr("exec", errdefs.Conflict(base))
	assert.NotErrorIs(t, conflict, domain.ErrRuntimeUnavailable)
	assert.Equal(t, "exec: boom", conflict.Error())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}
