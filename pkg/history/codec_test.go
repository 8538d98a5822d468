package history_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

const sampleDataJS = `window.BENCHMARK_DATA = {
  "lastUpdate": 1700000100000,
  "repoUrl": "https://github.com/ethpandaops/benchtrack",
  "entries": {
    "Benchmark": [
      {
        "commit": {
          "author": {"email": "dev@example.com", "name": "Dev", "username": "dev"},
          "committer": {"email": "noreply@github.com", "name": "GitHub", "username": "web-flow"},
          "id": "0123456789abcdef0123456789abcdef01234567",
          "message": "Speed up parser",
          "timestamp": "2023-11-14T22:13:20Z",
          "url": "https://github.com/ethpandaops/benchtrack/commit/0123456789abcdef0123456789abcdef01234567"
        },
        "date": 1700000100000,
        "tool": "customSmallerIsBetter",
        "benches": [
          {"name": "parse", "value": 12.5, "unit": "ms", "range": "± 0.3", "extra": "branch=main"}
        ]
      }
    ]
  }
};`

func TestDecode_JSAssignment(t *testing.T) {
	data, err := history.Decode(strings.NewReader(sampleDataJS))
	require.NoError(t, err)

	assert.Equal(t, int64(1700000100000), data.LastUpdate)
	assert.Equal(t, "https://github.com/ethpandaops/benchtrack", data.RepoURL)
	require.Len(t, data.Entries["Benchmark"], 1)

	e := data.Entries["Benchmark"][0]
	assert.Equal(t, history.ToolCustomSmallerIsBetter, e.Tool)
	assert.Equal(t, "web-flow", e.Commit.Committer.Username)
	assert.Equal(t, "branch=main", e.Benches[0].Extra)
	assert.Equal(t, "± 0.3", e.Benches[0].Range)
}

func TestDecode_PlainJSON(t *testing.T) {
	data, err := history.Unmarshal([]byte(`{"lastUpdate": 5, "repoUrl": "r"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(5), data.LastUpdate)
	assert.NotNil(t, data.Entries)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := history.Unmarshal([]byte(`window.BENCHMARK_DATA = {broken`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing document")
}

func TestEncode_Formats(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append("Benchmark", entry(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		history.ToolGo, bench("a", 1)))
	require.NoError(t, err)

	js, err := history.Marshal(s.Data(), history.EncodeOptions{Format: history.FormatJS, Indent: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(js), "window.BENCHMARK_DATA = {"))

	plain, err := history.Marshal(s.Data(), history.EncodeOptions{Format: history.FormatJSON})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), `{"lastUpdate":`))
	assert.NotContains(t, string(plain), `"range"`)

	for _, raw := range [][]byte{js, plain} {
		decoded, err := history.Unmarshal(raw)
		require.NoError(t, err)
		assert.Equal(t, s.Data(), decoded)
	}
}

func TestEncode_EmptyStoreHasEntriesObject(t *testing.T) {
	out, err := history.Marshal(&history.Data{RepoURL: "r"}, history.EncodeOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"entries":{}`)
}

func TestParseFormat(t *testing.T) {
	f, err := history.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, history.FormatJSON, f)

	f, err = history.ParseFormat("js")
	require.NoError(t, err)
	assert.Equal(t, history.FormatJS, f)

	_, err = history.ParseFormat("xml")
	require.Error(t, err)
}
