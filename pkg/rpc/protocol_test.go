package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_RoundTripsThroughJSON(t *testing.T) {
	req := Request{ID: 7, Method: "ping", Params: json.RawMessage(`{"a":1}`)}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, req, decoded)
}

func TestResponse_OmitsAbsentFields(t *testing.T) {
	resp := Response{ID: 3, Result: json.RawMessage(`{"ok":true}`)}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "\"error\"")
	assert.NotContains(t, string(raw), "\"stream_end\"")
}

func TestMustMarshal_ProducesValidJSON(t *testing.T) {
	raw := mustMarshal(map[string]int{"x": 1})
	var out map[string]int
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1, out["x"])
}

func TestMustMarshal_FallsBackToNullOnUnmarshalableValue(t *testing.T) {
	raw := mustMarshal(make(chan int))
	assert.Equal(t, json.RawMessage("null"), raw)
}
