package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwner(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *OwnerConfig
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "valid", input: "1000:1001", want: &OwnerConfig{UID: 1000, GID: 1001}},
		{name: "missing gid", input: "1000", wantErr: true},
		{name: "non numeric uid", input: "root:0", wantErr: true},
		{name: "non numeric gid", input: "0:wheel", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOwner(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.js")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644, nil))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o644, nil))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "data.js"), []byte("x"), 0o644, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating temp file")
}
