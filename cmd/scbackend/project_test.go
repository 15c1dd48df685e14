package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadProgram(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "json kept as-is",
			file:    "p.json",
			content: `{"targets":[],"rules":[]}`,
			want:    `{"targets":[],"rules":[]}`,
		},
		{
			name:    "yaml converted",
			file:    "p.yaml",
			content: "rules:\n  - on: ping\n    emit: message\n",
			want:    `{"rules":[{"emit":"message","on":"ping"}]}`,
		},
		{
			name:    "yml extension",
			file:    "p.YML",
			content: "targets: []\n",
			want:    `{"targets":[]}`,
		},
		{
			name:    "invalid json",
			file:    "p.json",
			content: `{"targets":`,
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			file:    "p.yaml",
			content: "rules: [\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readProgram(writeFile(t, tt.file, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestReadProgramMissingFile(t *testing.T) {
	_, err := readProgram(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
