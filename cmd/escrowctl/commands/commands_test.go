package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/olyamironova/escrow-engine/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	out, err := execute(t, "token", "--account", "ops", "--admin", "--ttl", "1h")
	require.NoError(t, err)

	iss, err := auth.NewIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	caller, err := iss.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", caller.AccountID)
	assert.True(t, caller.Admin)
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "token", "--account", "ops")
	assert.Error(t, err)
}

func TestMigrateNeedsDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "migrate", "up")
	assert.ErrorContains(t, err, "no database")
}
