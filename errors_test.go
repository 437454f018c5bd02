package rhinorox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhino-rox/rhino-rox/internal/rrerr"
)

func TestIsCodeMatchesDirectError(t *testing.T) {
	err := rrerr.New("server.listen", CodeFatalInit, "bind failed")
	require.True(t, IsCode(err, CodeFatalInit))
	require.False(t, IsCode(err, CodeMaxClients))
}

func TestIsCodeMatchesWrappedError(t *testing.T) {
	inner := rrerr.New("config.Load", CodeInvalidParam, "unknown item")
	wrapped := fmt.Errorf("rhinorox: %w", inner)
	require.True(t, IsCode(wrapped, CodeInvalidParam))
}

func TestIsCodeFalseForNil(t *testing.T) {
	require.False(t, IsCode(nil, CodeFatalInit))
}
