package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandJSONRoundTrip(t *testing.T) {
	c := Command{
		CommandType: CommandTypeClientCommand,
		Command:     Pack(PayloadKindStoreValue, StoreValue{Key: "k", Value: "v"}),
		Blocking:    true,
	}

	data, err := CommandToJSON(c)
	require.NoError(t, err)

	got, err := CommandFromJSON(data)
	require.NoError(t, err)
	require.Equal(t, c.CommandType, got.CommandType)
	require.Equal(t, c.Blocking, got.Blocking)
	require.Equal(t, c.Command.Kind, got.Command.Kind)

	var sv StoreValue
	require.NoError(t, sv.Unmarshal(got.Command.Value))
	require.Equal(t, "k", sv.Key)
}

func TestResponseJSONRoundTrip(t *testing.T) {
	r := Response{
		Code: ResponseCodeError,
		Body: Pack(PayloadKindTextResponse, TextResponse{Message: "bad request"}),
	}

	data, err := ResponseToJSON(r)
	require.NoError(t, err)

	got, err := ResponseFromJSON(data)
	require.NoError(t, err)
	require.Equal(t, ResponseCodeError, got.Code)

	var tr TextResponse
	require.NoError(t, tr.Unmarshal(got.Body.Value))
	require.Equal(t, "bad request", tr.Message)
}

func TestCommandFromJSONUnknownKind(t *testing.T) {
	_, err := CommandFromJSON([]byte(`{"command_type":"CLIENT_COMMAND","command":{"kind":"NotAKind"}}`))
	require.Error(t, err)
}

func TestCommandFromJSONEmptyCommand(t *testing.T) {
	c, err := CommandFromJSON([]byte(`{"command_type":"SHUTDOWN"}`))
	require.NoError(t, err)
	require.Equal(t, CommandTypeShutdown, c.CommandType)
	require.Equal(t, PayloadKindUnspecified, c.Command.Kind)
}

func TestEscapeString(t *testing.T) {
	require.Equal(t, `"hello"`, EscapeString("hello"))
}
