package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FollowUp(t *testing.T) {
	p, err := Decode([]byte(`{"structured":{"question":"Have you tried restarting?","options":["Yes","No"]}}`))

	require.NoError(t, err)
	require.NotNil(t, p.Structured)
	assert.Equal(t, "Have you tried restarting?", p.Structured.Question)
	assert.Equal(t, []string{"Yes", "No"}, p.Structured.Options)
	assert.Empty(t, p.Reply)
}

func TestDecode_Diagnosis(t *testing.T) {
	p, err := Decode([]byte(`{"structured":{"diagnosis":"Memory leak","explanation":"Usage grows over time.","resources":["https://example.com/a"]}}`))

	require.NoError(t, err)
	require.NotNil(t, p.Structured)
	assert.Equal(t, "Memory leak", p.Structured.Diagnosis)
	assert.Equal(t, "Usage grows over time.", p.Structured.Explanation)
	assert.Equal(t, []string{"https://example.com/a"}, p.Structured.Resources)
}

func TestDecode_Reply(t *testing.T) {
	p, err := Decode([]byte(`{"reply":"Hello!"}`))

	require.NoError(t, err)
	assert.Nil(t, p.Structured)
	assert.Equal(t, "Hello!", p.Reply)
}

func TestDecode_MistypedFieldsAreIgnored(t *testing.T) {
	p, err := Decode([]byte(`{"structured":{"question":42,"options":"Yes","diagnosis":"Flu","explanation":["x"],"resources":[1,"","https://cdc.gov"]},"reply":false}`))

	require.NoError(t, err)
	require.NotNil(t, p.Structured)
	assert.Empty(t, p.Structured.Question)
	assert.Nil(t, p.Structured.Options)
	assert.Equal(t, "Flu", p.Structured.Diagnosis)
	assert.Empty(t, p.Structured.Explanation)
	assert.Equal(t, []string{"https://cdc.gov"}, p.Structured.Resources)
	assert.Empty(t, p.Reply)
}

func TestDecode_OptionsKeepEveryString(t *testing.T) {
	p, err := Decode([]byte(`{"structured":{"question":"Q","options":["Yes","",3," ","No"],"resources":["","https://cdc.gov"]}}`))

	require.NoError(t, err)
	require.NotNil(t, p.Structured)
	assert.Equal(t, []string{"Yes", "", " ", "No"}, p.Structured.Options)
	assert.Equal(t, []string{"https://cdc.gov"}, p.Structured.Resources)
}

func TestDecode_StructuredNotAnObject(t *testing.T) {
	p, err := Decode([]byte(`{"structured":"free text","reply":"fallback"}`))

	require.NoError(t, err)
	assert.Nil(t, p.Structured)
	assert.Equal(t, "fallback", p.Reply)
}

func TestDecode_Errors(t *testing.T) {
	for _, body := range []string{"", "<html>oops</html>", "null", `["a"]`, `"text"`} {
		t.Run(body, func(t *testing.T) {
			_, err := Decode([]byte(body))

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, body, string(decodeErr.Body))
		})
	}
}

func TestResponse_OmitsUnsetField(t *testing.T) {
	b, err := json.Marshal(Response{Reply: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"hi"}`, string(b))

	b, err = json.Marshal(Response{Structured: map[string]any{"question": "q"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"structured":{"question":"q"}}`, string(b))
}

func TestChatRequest_WireNames(t *testing.T) {
	b, err := json.Marshal(ChatRequest{SessionID: "abc", Message: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"abc","message":"hi"}`, string(b))
}
