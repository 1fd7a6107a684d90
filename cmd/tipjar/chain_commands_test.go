package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/tipjar/service/tipjar"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcServer answers JSON-RPC calls with canned results keyed by method.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func tipJarRPC(t *testing.T, owner solanago.PublicKey) *httptest.Server {
	t.Helper()
	acct := tipjar.Account{Owner: owner, TotalTips: 800_000_000, TipCount: 3}
	data, err := acct.Encode()
	require.NoError(t, err)

	return rpcServer(t, map[string]string{
		"getAccountInfo": fmt.Sprintf(
			`{"context":{"slot":5},"value":{"data":[%q,"base64"],"executable":false,"lamports":801280640,"owner":%q,"rentEpoch":0,"space":56}}`,
			base64.StdEncoding.EncodeToString(data), tipjar.DefaultProgramID.String(),
		),
		"getBalance":                        `{"context":{"slot":5},"value":801280640}`,
		"getMinimumBalanceForRentExemption": `1280640`,
	})
}

func TestAccountCommand(t *testing.T) {
	owner := solanago.NewWallet().PublicKey()
	srv := tipJarRPC(t, owner)

	t.Run("json", func(t *testing.T) {
		out, err := runApp(t, "--rpc-url", srv.URL, "--json", "account")
		require.NoError(t, err)

		var got accountOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.True(t, got.Initialized)
		assert.Equal(t, owner.String(), got.Owner)
		assert.Equal(t, uint64(3), got.TipCount)
		assert.Equal(t, uint64(800_000_000), got.Available)
		assert.Equal(t, "0.8000", got.TotalTipsSOL)
	})

	t.Run("human", func(t *testing.T) {
		out, err := runApp(t, "--rpc-url", srv.URL, "account")
		require.NoError(t, err)
		assert.Contains(t, out, "Owner:      "+owner.String())
		assert.Contains(t, out, "Total tips: 0.8000 SOL (3 tips)")
		assert.Contains(t, out, "Available:  0.8000 SOL")
	})

	t.Run("jq", func(t *testing.T) {
		out, err := runApp(t, "--rpc-url", srv.URL, "account", "--jq", ".owner")
		require.NoError(t, err)
		assert.Equal(t, owner.String()+"\n", out)
	})

	t.Run("must-jq passes", func(t *testing.T) {
		_, err := runApp(t, "--rpc-url", srv.URL, "account",
			"--must-jq", ".tip_count == 3",
			"--must-jq", ".available >= 100000000",
		)
		assert.NoError(t, err)
	})

	t.Run("must-jq fails", func(t *testing.T) {
		_, err := runApp(t, "--rpc-url", srv.URL, "account", "--must-jq", ".tip_count > 3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jq check")
	})
}

func TestAccountCommand_NotInitialized(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getAccountInfo":                    `{"context":{"slot":5},"value":null}`,
		"getBalance":                        `{"context":{"slot":5},"value":0}`,
		"getMinimumBalanceForRentExemption": `1280640`,
	})

	out, err := runApp(t, "--rpc-url", srv.URL, "account")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:     not initialized")
	assert.Contains(t, out, "Available:  0.0000 SOL")
}

func TestBalanceCommand(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getBalance": `{"context":{"slot":5},"value":1500000000}`,
	})

	out, err := runApp(t, "--rpc-url", srv.URL, "balance", solanago.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, "1.5 SOL\n", out)

	_, err = runApp(t, "--rpc-url", srv.URL, "balance", "not-a-key")
	assert.Error(t, err)
}

func TestSubmitCommands_RequireKeypair(t *testing.T) {
	for _, args := range [][]string{
		{"initialize"},
		{"tip", "0.1"},
		{"withdraw", "--all"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := runApp(t, append([]string{"--rpc-url", "http://127.0.0.1:1", "--keypair", ""}, args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "keypair is required")
		})
	}
}

func TestTipCommand_InvalidAmount(t *testing.T) {
	_, err := runApp(t, "tip", "zero")
	require.Error(t, err)
	assert.ErrorIs(t, err, tipjar.ErrInvalidAmount)
}
