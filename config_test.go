// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hopfund/hopfund/planner"
	"github.com/hopfund/hopfund/sol"
	"github.com/stretchr/testify/require"
)

const (
	testAddrA = "So11111111111111111111111111111111111111112"
	testAddrB = "11111111111111111111111111111111"
)

// validConfig returns the default config with a single recipient.
func validConfig() config {
	cfg := defaultConfig()
	cfg.Recipients = []string{testAddrA}
	return cfg
}

// TestValidateConfig checks option validation and the parsed fields.
func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*config)
		valid  bool
	}{{
		name:   "defaults",
		modify: func(*config) {},
		valid:  true,
	}, {
		name:   "bad commitment",
		modify: func(c *config) { c.Commitment = "recent" },
	}, {
		name:   "bad topology",
		modify: func(c *config) { c.Topology = "ring" },
	}, {
		name:   "zero duration",
		modify: func(c *config) { c.Duration = 0 },
	}, {
		name:   "jitter too large",
		modify: func(c *config) { c.Jitter = 1 },
	}, {
		name:   "negative amount",
		modify: func(c *config) { c.Amount.Amount = -1 },
	}, {
		name:   "zero tx fee",
		modify: func(c *config) { c.TxFee.Amount = 0 },
	}, {
		name:   "no hubs",
		modify: func(c *config) { c.Hubs = 0 },
	}, {
		name:   "no recipients",
		modify: func(c *config) { c.Recipients = nil },
	}, {
		name:   "swap without mint",
		modify: func(c *config) { c.Swap = true },
	}, {
		name: "swap with fanout",
		modify: func(c *config) {
			c.Swap = true
			c.SwapMint = testAddrB
			c.Topology = topologyFanOut
		},
	}, {
		name: "swap with mint",
		modify: func(c *config) {
			c.Swap = true
			c.SwapMint = testAddrB
		},
		valid: true,
	}, {
		name: "bad sweep destination",
		modify: func(c *config) {
			require.NoError(t, c.SweepTo.UnmarshalFlag("nope"))
		},
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			// Arrange.
			cfg := validConfig()
			test.modify(&cfg)

			// Act.
			err := validateConfig(&cfg)

			// Assert.
			if !test.valid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, []solana.PublicKey{
				solana.MustPublicKeyFromBase58(testAddrA),
			}, cfg.recipients)
		})
	}
}

// TestValidateConfigParsesSwap checks the conversion options are parsed
// into keys.
func TestValidateConfigParsesSwap(t *testing.T) {
	t.Parallel()

	// Arrange.
	cfg := validConfig()
	cfg.Swap = true
	cfg.SwapMint = testAddrB
	cfg.SwapPool = testAddrA
	require.NoError(t, cfg.SweepTo.UnmarshalFlag(testAddrB))

	// Act.
	err := validateConfig(&cfg)

	// Assert.
	require.NoError(t, err)
	require.Equal(t, solana.MustPublicKeyFromBase58(testAddrB), cfg.swapMint)
	require.Equal(t, solana.MustPublicKeyFromBase58(testAddrA), cfg.swapPool)
	require.Equal(t, solana.MustPublicKeyFromBase58(testAddrB), cfg.sweepTo)
}

// TestParseRecipients checks command line and file recipients are merged.
func TestParseRecipients(t *testing.T) {
	t.Parallel()

	// Arrange.
	file := filepath.Join(t.TempDir(), "recipients.txt")
	content := "# payees\n" + testAddrB + "\n\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))

	// Act.
	recipients, err := parseRecipients([]string{testAddrA}, file)

	// Assert.
	require.NoError(t, err)
	require.Equal(t, []solana.PublicKey{
		solana.MustPublicKeyFromBase58(testAddrA),
		solana.MustPublicKeyFromBase58(testAddrB),
	}, recipients)
}

// TestParseRecipientsErrors checks invalid recipient sources are rejected.
func TestParseRecipientsErrors(t *testing.T) {
	t.Parallel()

	_, err := parseRecipients(nil, "")
	require.ErrorContains(t, err, "no recipients")

	_, err = parseRecipients([]string{"not-an-address"}, "")
	require.ErrorContains(t, err, "invalid recipient")

	missing := filepath.Join(t.TempDir(), "missing.txt")
	_, err = parseRecipients(nil, missing)
	require.ErrorContains(t, err, "unable to read recipients")
}

// TestParseAndSetDebugLevels checks the global and per-subsystem forms of
// the debug level option.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		valid bool
	}{
		{level: "info", valid: true},
		{level: "off", valid: true},
		{level: "PLAN=debug,EXEC=trace", valid: true},
		{level: "loud"},
		{level: "PLAN"},
		{level: "PLAN=debug,"},
		{level: "NOPE=debug"},
		{level: "PLAN=loud"},
	}

	for _, test := range tests {
		err := parseAndSetDebugLevels(test.level)
		if test.valid {
			require.NoError(t, err, test.level)
		} else {
			require.Error(t, err, test.level)
		}
	}
}

// TestSupportedSubsystems checks every package logger is registered.
func TestSupportedSubsystems(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{
		"CHAN", "EXEC", "FEES", "HOPF", "KSTR", "PLAN", "SWAP", "SWEP",
	}, supportedSubsystems())
}

// TestCleanAndExpandPath checks home and environment expansion.
func TestCleanAndExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(home, "hopfund"),
		cleanAndExpandPath("~/hopfund/"))

	t.Setenv("HOPFUND_TEST_DIR", "/tmp/hop")
	require.Equal(t, "/tmp/hop/logs",
		cleanAndExpandPath("$HOPFUND_TEST_DIR/./logs"))
}

// TestDefaultConfig checks the defaults pass validation once recipients are
// given and distribute the whole balance.
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	require.Equal(t, sol.Amount(0), cfg.Amount.Amount)
	require.Equal(t, topologyChain, cfg.Topology)
	require.Equal(t, 30*time.Minute, cfg.Duration)
	require.False(t, cfg.SweepTo.ExplicitlySet())
}

// TestPlanJitter checks an explicit zero jitter disables jitter instead of
// selecting the planner default.
func TestPlanJitter(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	require.Equal(t, planner.DefaultJitter, planJitter(&cfg))

	cfg.Jitter = 0.3
	require.Equal(t, 0.3, planJitter(&cfg))

	cfg.Jitter = 0
	require.Equal(t, planner.NoJitter, planJitter(&cfg))
}

// TestVersion checks the version string is valid semver.
func TestVersion(t *testing.T) {
	t.Parallel()

	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z-]+)?$`)
	require.Regexp(t, semver, version())
	require.Equal(t, "beta1", normalizeVerString("beta.1"))
	require.Equal(t, "pre-release", normalizeVerString("pre-release!"))
}
