package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMintTimings(t *testing.T) {
	c := Config{
		MintMaxAttempts:       5,
		MintAttemptTimeoutSec: 180,
		MintBackoffMaxMs:      60000,
		MintStaleAfterMinutes: 30,
	}
	require.Equal(t, 20*time.Minute, c.MintLockTTL())
	require.NoError(t, c.validateMintTimings())

	// 对账阈值不超过锁 TTL 时，仍在重试的 worker 会被判成 stale
	c.MintStaleAfterMinutes = 15
	require.Error(t, c.validateMintTimings())

	c.MintStaleAfterMinutes = 20
	require.Error(t, c.validateMintTimings())

	c.MintAttemptTimeoutSec = 0
	require.Error(t, c.validateMintTimings())
}
