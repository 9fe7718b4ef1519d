package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// testJSONSample type for testing
type testJSONSample struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestNewJSONHandler_Writer(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[testJSONSample](buf, 2)
	require.Equal(t, buf, h.Writer())
}

func TestJSONHandler_HandleResult(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[testJSONSample](buf, 2)

	err := h.HandleResult(testJSONSample{ID: 1, Name: "Alice"})
	require.NoError(t, err)

	expected := `{
  "result": {
    "id": 1,
    "name": "Alice"
  }
}` + "\n"
	require.Equal(t, expected, buf.String())
}

func TestJSONHandler_HandleResult_CompactIndent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[testJSONSample](buf, 0)

	err := h.HandleResult(testJSONSample{ID: 2, Name: "Bob"})
	require.NoError(t, err)
	require.JSONEq(t, `{"result": {"id": 2, "name": "Bob"}}`, buf.String())
}

func TestJSONHandler_HandleError(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewJSONHandler[testJSONSample](buf, 2)

	err := h.HandleError(errors.New("something broke"))
	require.NoError(t, err)

	expected := `{
  "error": "something broke"
}` + "\n"
	require.Equal(t, expected, buf.String())
}
