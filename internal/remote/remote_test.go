package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCommandRoundTrip(t *testing.T) {
	msg, err := NewExecuteCommandMessage(ExecuteCommandParams{
		CommandType: "check_command",
		Command:     "check_http",
		Host:        "web1",
		Service:     "http",
		Macros:      map[string]string{"HOSTNAME": "web1"},
	})
	require.NoError(t, err)

	raw, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, MethodExecuteCommand, decoded.Method)

	params, err := ExecuteCommandFromMessage(decoded)
	require.NoError(t, err)
	assert.Equal(t, "check_http", params.Command)
	assert.Equal(t, "web1", params.Host)
	assert.Equal(t, "http", params.Service)
	assert.Equal(t, "web1", params.Macros["HOSTNAME"])
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"jsonrpc":"1.0","method":"x"}`))
	assert.Error(t, err)
}

func TestSendRequiresConnection(t *testing.T) {
	e := NewEndpoint("satellite1")
	msg, err := NewExecuteCommandMessage(ExecuteCommandParams{Command: "check_ping", Host: "web1"})
	require.NoError(t, err)

	assert.Error(t, e.Send(msg))

	var sent [][]byte
	e.SetSender(func(raw []byte) error {
		sent = append(sent, raw)
		return nil
	})
	assert.True(t, e.Connected())
	require.NoError(t, e.Send(msg))
	require.Len(t, sent, 1)

	e.SetConnected(false)
	assert.Error(t, e.Send(msg), "disconnect must drop the sender")
}

func TestHeartbeatBookkeeping(t *testing.T) {
	e := NewEndpoint("satellite1")
	assert.True(t, e.LastHeartbeat().IsZero())

	now := time.Now()
	e.Heartbeat(now)
	assert.Equal(t, now, e.LastHeartbeat())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("master1")
	assert.Equal(t, "master1", r.LocalName())
	assert.Nil(t, r.Get("satellite1"))

	e := NewEndpoint("satellite1")
	r.Register(e)
	assert.Same(t, e, r.Get("satellite1"))
	assert.Len(t, r.All(), 1)
}
