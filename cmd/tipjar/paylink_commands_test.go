package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAddress(t *testing.T) string {
	t.Helper()
	addr, _, err := tipjar.DeriveAddress(tipjar.DefaultProgramID)
	require.NoError(t, err)
	return addr.String()
}

func TestAddressCommand(t *testing.T) {
	out, err := runApp(t, "--program-id", tipjar.DefaultProgramID.String(), "address")
	require.NoError(t, err)
	assert.Equal(t, defaultAddress(t)+"\n", out)

	_, err = runApp(t, "--program-id", "not-a-key", "address")
	assert.Error(t, err)
}

func TestPayURICommand(t *testing.T) {
	out, err := runApp(t,
		"--program-id", tipjar.DefaultProgramID.String(),
		"pay-uri", "--amount", "0.1", "--label", tipjar.DefaultPayLabel, "--message", tipjar.DefaultPayMessage,
	)
	require.NoError(t, err)
	assert.Equal(t,
		"solana:"+defaultAddress(t)+"?amount=0.1&label=Tip%20Jar&message=Thank%20you%20for%20the%20tip%21\n",
		out,
	)

	_, err = runApp(t, "pay-uri", "--amount", "-1")
	assert.Error(t, err)
}

func TestQRCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qr.png")
	out, err := runApp(t,
		"--program-id", tipjar.DefaultProgramID.String(),
		"qr", "--out", path, "--size", "200", "--amount", "0.5",
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "✓ Wrote "+path))
	assert.Contains(t, out, "amount=0.5")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}
