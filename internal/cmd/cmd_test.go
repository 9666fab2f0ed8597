package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVenue(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/0/public/Time", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":[],"result":{"unixtime":1700000000,"rfc1123":"Tue, 14 Nov 23 22:13:20 +0000"}}`))
	})
	mux.HandleFunc("/0/public/Ticker", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"a":["30100.1","1","1.000"],"b":["30100.0","2","2.000"],
			"c":["30100.0","0.01"],"v":["100.1","2500.5"],"p":["30000.0","29950.5"],"t":[120,4321],
			"l":["29800.0","29500.0"],"h":["30200.0","30500.0"],"o":"29900.0"}}}`))
	})
	mux.HandleFunc("/0/public/Depth", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{
			"asks":[["30100.0","1.5",1700000000]],"bids":[["30099.0","2.0",1700000000]]}}}`))
	})
	mux.HandleFunc("/0/private/Balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-Key") != "cli-key" {
			_, _ = w.Write([]byte(`{"error":["EAPI:Invalid key"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":[],"result":{"ZUSD":"42.5","XXBT":"0"}}`))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		frames := []string{
			`{"channelID":42,"channelName":"ticker","event":"subscriptionStatus","pair":"XBT/USD","status":"subscribed","subscription":{"name":"ticker"}}`,
			`{"event":"heartbeat"}`,
			`[42,{"a":["30100.1",1,"1.000"],"b":["30100.0",2,"2.000"],"c":["30100.0","0.01"],"v":["100.1","2500.5"],"p":["30000.0","29950.5"],"t":[120,4321],"l":["29800.0","29500.0"],"h":["30200.0","30500.0"],"o":["29900.0","29800.0"]},"ticker","XBT/USD"]`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	base := []string{
		"--api-url", srv.URL,
		"--ws-url", "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		"--ws-transport", "gorilla",
	}
	root.SetArgs(append(base, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestTimeCmd(t *testing.T) {
	srv := newVenue(t)
	out, err := run(t, srv, "time")
	require.NoError(t, err)
	assert.Contains(t, out, "2023-11-14T22:13:20Z")
	assert.Contains(t, out, "1700000000")
}

func TestTickerCmd(t *testing.T) {
	srv := newVenue(t)
	out, err := run(t, srv, "ticker", "XBTUSD")
	require.NoError(t, err)
	assert.Contains(t, out, "XXBTZUSD")
	assert.Contains(t, out, "30100.1")
	assert.Contains(t, out, "4321")
}

func TestTickerCmd_JSON(t *testing.T) {
	srv := newVenue(t)
	out, err := run(t, srv, "-o", "json", "ticker", "XBTUSD")
	require.NoError(t, err)
	assert.Contains(t, out, `"XXBTZUSD"`)
	assert.Contains(t, out, `"30100.1"`)
}

func TestBookCmd(t *testing.T) {
	srv := newVenue(t)
	out, err := run(t, srv, "book", "XBTUSD", "--depth", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ask")
	assert.Contains(t, out, "30099.0")
}

func TestBalanceCmd(t *testing.T) {
	srv := newVenue(t)

	_, err := run(t, srv, "balance")
	require.Error(t, err)

	t.Setenv("KRAKEN_API_KEY", "cli-key")
	t.Setenv("KRAKEN_API_SECRET", "c2VjcmV0")
	out, err := run(t, srv, "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "ZUSD")
	assert.Contains(t, out, "42.5")
	assert.NotContains(t, out, "XXBT")
}

func TestLimitsCmd(t *testing.T) {
	srv := newVenue(t)
	out, err := run(t, srv, "limits")
	require.NoError(t, err)
	for _, tier := range []string{"tier1", "tier2", "tier3", "tier4"} {
		assert.Contains(t, out, tier)
	}
	assert.Contains(t, out, "45s")
}

func TestMissingConfigFile(t *testing.T) {
	srv := newVenue(t)
	_, err := run(t, srv, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "time")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	srv := newVenue(t)
	path := filepath.Join(t.TempDir(), "krakenkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tier_limits:\n  tier1:\n    capacity: 3\n    refill_period: 9s\n"), 0o600))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--api-url", srv.URL, "--config", path, "limits"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "9s")
}

func TestInvalidOutputFormat(t *testing.T) {
	srv := newVenue(t)
	_, err := run(t, srv, "-o", "xml", "time")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestStreamCmd(t *testing.T) {
	srv := newVenue(t)
	out, err := run(t, srv, "stream", "XBT/USD", "--count", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "subscription ticker XBT/USD subscribed")
	assert.Contains(t, out, "XBT/USD    ticker bid 30100.0 ask 30100.1")
}

func TestStreamCmd_InvalidChannel(t *testing.T) {
	srv := newVenue(t)
	_, err := run(t, srv, "stream", "XBT/USD", "--channel", "weather")
	assert.Error(t, err)

	_, err = run(t, srv, "stream", "XBT/USD", "--interval", "5")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	srv := newVenue(t)
	out, err := run(t, srv, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "krakenkit 1.2.3 (commit abc, built today)")
}
