package httpgate

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/metrics"
	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/cyberinferno/galaxy-relay/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type noRules struct{}

func (noRules) ReadCards() error                                      { return nil }
func (noRules) NewGame([]engine.Player) (engine.Game, error)           { return nil, engine.ErrUnknownRules }
func (noRules) LoadGame(string, []engine.Player) (engine.Game, error) { return nil, engine.ErrUnknownRules }

func startGateway(t *testing.T) *httptest.Server {
	t.Helper()

	m := metrics.New()
	server := relay.NewServer(relay.DefaultConfig(), noRules{}, logger.Nop(), relay.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	gw := New(DefaultConfig(":0"), server.Transport(), m.Handler(), logger.Nop())
	ts := httptest.NewServer(gw.Routes())
	t.Cleanup(func() {
		server.Transport().Stop()
		cancel()
		<-done
		ts.Close()
	})

	return ts
}

func readMessage(t *testing.T, conn net.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var buf []byte
	chunk := make([]byte, protocol.ChunkSize)
	for {
		msg, n, err := protocol.Decode(buf, protocol.DefaultMaxPayload)
		require.NoError(t, err)
		if n > 0 {
			return msg
		}

		read, err := conn.Read(chunk)
		require.NoError(t, err)
		buf = append(buf, chunk[:read]...)
	}
}

func TestGateway(t *testing.T) {
	t.Run("health check answers ok", func(t *testing.T) {
		ts := startGateway(t)

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", string(body))
	})

	t.Run("websocket links speak the relay protocol", func(t *testing.T) {
		ts := startGateway(t)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
		require.NoError(t, err)
		conn := websocket.NetConn(ctx, c, websocket.MessageBinary)
		defer conn.Close()

		_, err = conn.Write(protocol.Marshal(&protocol.Login{User: "alice"}))
		require.NoError(t, err)

		msg := readMessage(t, conn)
		require.Equal(t, protocol.MsgHello, msg.Type)
		var hello protocol.Hello
		require.NoError(t, protocol.Unmarshal(msg, &hello))
		assert.Equal(t, "alice", hello.User)

		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "galaxy_relay_connections 1")
		assert.Contains(t, string(body), `galaxy_relay_logins_total{result="ok"} 1`)
	})

	t.Run("plain requests to the websocket path are refused", func(t *testing.T) {
		ts := startGateway(t)

		resp, err := http.Get(ts.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	})
}
