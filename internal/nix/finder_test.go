package nix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTraceLine(t *testing.T) {
	t.Run("valid trace batch", func(t *testing.T) {
		line := `trace: {"foundDrvs":[{"attributePath":"hello","derivationPath":"/nix/store/abc-hello-2.12.drv","outputPath":"/nix/store/abc-hello-2.12"}]}`

		drvs, ok, err := parseTraceLine(line)
		require.True(t, ok)
		require.NoError(t, err)
		require.Len(t, drvs, 1)

		assert.Equal(t, "hello", drvs[0].AttributePath)
		require.NotNil(t, drvs[0].DerivationPath)
		assert.Equal(t, "/nix/store/abc-hello-2.12.drv", *drvs[0].DerivationPath)
		require.NotNil(t, drvs[0].OutputPath)
		assert.Equal(t, "/nix/store/abc-hello-2.12", *drvs[0].OutputPath)
	})

	t.Run("multi-output batch", func(t *testing.T) {
		line := `trace: {"foundDrvs":[` +
			`{"attributePath":"openssl.out","derivationPath":null,"outputPath":"/nix/store/abc-openssl-3.0"},` +
			`{"attributePath":"openssl.dev","derivationPath":null,"outputPath":"/nix/store/def-openssl-3.0-dev"}]}`

		drvs, ok, err := parseTraceLine(line)
		require.True(t, ok)
		require.NoError(t, err)
		require.Len(t, drvs, 2)
		assert.Equal(t, "openssl.out", drvs[0].AttributePath)
		assert.Equal(t, "openssl.dev", drvs[1].AttributePath)
		assert.Nil(t, drvs[0].DerivationPath)
	})

	t.Run("non-string store paths are discarded", func(t *testing.T) {
		// Some nixpkgs attributes evaluate to false where a path belongs.
		line := `trace: {"foundDrvs":[{"attributePath":"weird","derivationPath":false,"outputPath":false}]}`

		drvs, ok, err := parseTraceLine(line)
		require.True(t, ok)
		require.NoError(t, err)
		require.Len(t, drvs, 1)
		assert.Nil(t, drvs[0].DerivationPath)
		assert.Nil(t, drvs[0].OutputPath)
	})

	t.Run("ordinary stderr line", func(t *testing.T) {
		_, ok, err := parseTraceLine("warning: Git tree is dirty")
		assert.False(t, ok)
		assert.NoError(t, err)
	})

	t.Run("foreign trace line", func(t *testing.T) {
		// nixpkgs itself traces freely; such lines are skipped, not fatal.
		drvs, ok, err := parseTraceLine("trace: evaluation warning: foo is deprecated")
		assert.True(t, ok)
		assert.Error(t, err)
		assert.Nil(t, drvs)

		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
	})
}
