// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressTar_Reproducible(t *testing.T) {
	t.Parallel()

	files := []FileEntry{
		{Path: "scripts/run.sh", Content: []byte("#!/bin/sh\n"), Mode: 0o775},
		{Path: "README.md", Content: []byte("# readme\n"), Mode: 0o600},
	}
	epoch := time.Unix(1700000000, 0).UTC()

	a, rawA, err := CompressTar(files, epoch)
	require.NoError(t, err)
	// Reversed input order must not change the output.
	b, rawB, err := CompressTar([]FileEntry{files[1], files[0]}, epoch)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, rawA, rawB)

	got, err := DecompressTar(a)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "README.md", got[0].Path)
	assert.Equal(t, int64(0o644), got[0].Mode)
	assert.Equal(t, "scripts/run.sh", got[1].Path)
	assert.Equal(t, int64(0o755), got[1].Mode)
	assert.Equal(t, []byte("#!/bin/sh\n"), got[1].Content)
}

func TestNormalizeMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0o644), NormalizeMode(0o600))
	assert.Equal(t, int64(0o644), NormalizeMode(0))
	assert.Equal(t, int64(0o755), NormalizeMode(0o700))
	assert.Equal(t, int64(0o755), NormalizeMode(0o701))
}

func rawTar(t *testing.T, hdrs ...*tar.Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, h := range hdrs {
		require.NoError(t, tw.WriteHeader(h))
		if h.Typeflag == tar.TypeReg && h.Size > 0 {
			_, err := tw.Write(bytes.Repeat([]byte("x"), int(h.Size)))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestExtractTar_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hdr     *tar.Header
		wantErr string
	}{
		{"traversal", &tar.Header{Name: "../evil", Typeflag: tar.TypeReg, Mode: 0o644}, "path traversal"},
		{"absolute", &tar.Header{Name: "/etc/passwd", Typeflag: tar.TypeReg, Mode: 0o644}, "absolute path"},
		{"symlink", &tar.Header{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc"}, "disallowed link type"},
		{"fifo", &tar.Header{Name: "pipe", Typeflag: tar.TypeFifo}, "disallowed entry type"},
		{"too large", &tar.Header{Name: "big", Typeflag: tar.TypeReg, Size: 11, Mode: 0o644}, "exceeds maximum size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractTar(rawTar(t, tt.hdr), 10)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractTar_SkipsDirectories(t *testing.T) {
	t.Parallel()

	files, err := ExtractTar(rawTar(t,
		&tar.Header{Name: "skills/", Typeflag: tar.TypeDir, Mode: 0o755},
		&tar.Header{Name: "skills/a.md", Typeflag: tar.TypeReg, Size: 3, Mode: 0o644},
	), MaxFileSize)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "skills/a.md", files[0].Path)
}

func TestDecompress_Limit(t *testing.T) {
	t.Parallel()

	data, err := Compress(bytes.Repeat([]byte("a"), 1024), time.Time{})
	require.NoError(t, err)

	_, err = Decompress(data, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum size")

	out, err := Decompress(data, 2048)
	require.NoError(t, err)
	assert.Len(t, out, 1024)
}
