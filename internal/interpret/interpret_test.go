package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediChat/internal/protocol"
)

func TestClassifyBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Instruction
	}{
		{
			name: "follow up",
			body: `{"structured":{"question":"Have you tried restarting?","options":["Yes","No"]}}`,
			want: FollowUp{Question: "Have you tried restarting?", Options: []string{"Yes", "No"}},
		},
		{
			name: "diagnosis with resources",
			body: `{"structured":{"diagnosis":"Memory leak","explanation":"Usage grows over time.","resources":["https://example.com/a"]}}`,
			want: Diagnosis{Diagnosis: "Memory leak", Explanation: "Usage grows over time.", Resources: []string{"https://example.com/a"}},
		},
		{
			name: "diagnosis without resources",
			body: `{"structured":{"diagnosis":"X","explanation":"Y"}}`,
			want: Diagnosis{Diagnosis: "X", Explanation: "Y"},
		},
		{
			name: "diagnosis without explanation",
			body: `{"structured":{"diagnosis":"X"}}`,
			want: Diagnosis{Diagnosis: "X"},
		},
		{
			name: "plain reply",
			body: `{"reply":"Hello!"}`,
			want: PlainReply{Text: "Hello!"},
		},
		{
			name: "question wins over diagnosis",
			body: `{"structured":{"question":"Q?","options":["a"],"diagnosis":"D"},"reply":"R"}`,
			want: FollowUp{Question: "Q?", Options: []string{"a"}},
		},
		{
			name: "empty question falls through to diagnosis",
			body: `{"structured":{"question":"","diagnosis":"D","explanation":"E"}}`,
			want: Diagnosis{Diagnosis: "D", Explanation: "E"},
		},
		{
			name: "structured without known fields falls through to reply",
			body: `{"structured":{"foo":"bar"},"reply":"R"}`,
			want: PlainReply{Text: "R"},
		},
		{
			name: "question without options",
			body: `{"structured":{"question":"Q?"}}`,
			want: FollowUp{Question: "Q?"},
		},
		{
			name: "blank options keep their position",
			body: `{"structured":{"question":"Q?","options":["Yes","","No"]}}`,
			want: FollowUp{Question: "Q?", Options: []string{"Yes", "", "No"}},
		},
		{name: "numeric diagnosis counts as absent", body: `{"structured":{"diagnosis":5,"explanation":"E"}}`, want: None{}},
		{name: "empty object", body: `{}`, want: None{}},
		{name: "empty reply", body: `{"reply":""}`, want: None{}},
		{name: "unrecognized shape", body: `{"answer":"42"}`, want: None{}},
		{name: "structured scalar", body: `{"structured":7}`, want: None{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyBody([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind(), got.Kind())
			assertSameInstruction(t, tt.want, got)
		})
	}
}

func TestClassifyBody_DecodeFailureIsNone(t *testing.T) {
	got, err := ClassifyBody([]byte("Internal Server Error"))

	var decodeErr *protocol.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, None{}, got)
}

func TestDiagnosis_Summary(t *testing.T) {
	d := Diagnosis{Diagnosis: "Memory leak", Explanation: "Usage grows over time."}
	assert.Equal(t, "Diagnosis: Memory leak\nUsage grows over time.", d.Summary())

	empty := Diagnosis{Diagnosis: "X"}
	assert.Equal(t, "Diagnosis: X\n", empty.Summary())
}

func TestClassify_CopiesSlices(t *testing.T) {
	p := protocol.Payload{Structured: &protocol.Structured{Question: "Q", Options: []string{"a", "b"}}}

	got := Classify(p).(FollowUp)
	p.Structured.Options[0] = "changed"

	assert.Equal(t, []string{"a", "b"}, got.Options)
}

// assertSameInstruction compares ignoring nil-vs-empty slices.
func assertSameInstruction(t *testing.T, want, got Instruction) {
	t.Helper()
	switch w := want.(type) {
	case FollowUp:
		g := got.(FollowUp)
		assert.Equal(t, w.Question, g.Question)
		assert.ElementsMatch(t, w.Options, g.Options)
		assert.Equal(t, len(w.Options), len(g.Options))
		for i := range w.Options {
			assert.Equal(t, w.Options[i], g.Options[i])
		}
	case Diagnosis:
		g := got.(Diagnosis)
		assert.Equal(t, w.Diagnosis, g.Diagnosis)
		assert.Equal(t, w.Explanation, g.Explanation)
		assert.Equal(t, len(w.Resources), len(g.Resources))
		for i := range w.Resources {
			assert.Equal(t, w.Resources[i], g.Resources[i])
		}
	default:
		assert.Equal(t, want, got)
	}
}
