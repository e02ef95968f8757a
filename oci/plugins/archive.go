// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"
)

// gzipOSUnknown is the OS value for "unknown" in gzip headers (RFC 1952).
const gzipOSUnknown = 255

// MaxFileSize is the maximum size of a single archived file (100MB).
const MaxFileSize = 100 * 1024 * 1024

// MaxDecompressedSize is the maximum size of a decompressed layer (100MB).
const MaxDecompressedSize = 100 * 1024 * 1024

// FileEntry is a file inside a plugin archive.
type FileEntry struct {
	// Path is slash-separated and relative to the plugin root
	Path    string
	Content []byte
	// Mode is normalized to 0644 or 0755
	Mode int64
}

// NormalizeMode keeps only the executable bit of a file mode.
func NormalizeMode(mode int64) int64 {
	if mode&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

// CreateTar creates a reproducible tar archive. Entries are sorted by path and
// written with fixed ownership and modification time.
func CreateTar(files []FileEntry, epoch time.Time) ([]byte, error) {
	if epoch.IsZero() {
		epoch = time.Unix(0, 0).UTC()
	}

	sorted := slices.Clone(files)
	slices.SortFunc(sorted, func(a, b FileEntry) int { return strings.Compare(a.Path, b.Path) })

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range sorted {
		hdr := &tar.Header{
			Name:     f.Path,
			Size:     int64(len(f.Content)),
			Mode:     NormalizeMode(f.Mode),
			ModTime:  epoch,
			Typeflag: tar.TypeReg,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("writing tar header for %s: %w", f.Path, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return nil, fmt.Errorf("writing tar content for %s: %w", f.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Compress gzips data with a fixed header so the output is reproducible.
func Compress(data []byte, epoch time.Time) ([]byte, error) {
	if epoch.IsZero() {
		epoch = time.Unix(0, 0).UTC()
	}

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	gw.ModTime = epoch
	gw.OS = gzipOSUnknown

	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("writing gzip data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress gunzips data, failing when the result exceeds maxSize.
func Decompress(data []byte, maxSize int64) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() { _ = gr.Close() }()

	result, err := io.ReadAll(io.LimitReader(gr, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading gzip data: %w", err)
	}
	if int64(len(result)) > maxSize {
		return nil, fmt.Errorf("decompressed data exceeds maximum size of %d bytes", maxSize)
	}
	return result, nil
}

// ExtractTar reads the regular files of a tar archive. Links, devices and
// paths escaping the archive root are rejected.
func ExtractTar(data []byte, maxFileSize int64) ([]FileEntry, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	var files []FileEntry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}
		if err := validateArchivePath(hdr.Name); err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeSymlink, tar.TypeLink:
			return nil, fmt.Errorf("archive contains disallowed link type: %s", hdr.Name)
		case tar.TypeReg:
		default:
			return nil, fmt.Errorf("archive contains disallowed entry type %d: %s", hdr.Typeflag, hdr.Name)
		}

		if hdr.Size > maxFileSize {
			return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", hdr.Name, maxFileSize)
		}
		content, err := io.ReadAll(io.LimitReader(tr, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("reading tar content for %s: %w", hdr.Name, err)
		}
		if int64(len(content)) > maxFileSize {
			return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", hdr.Name, maxFileSize)
		}

		files = append(files, FileEntry{Path: hdr.Name, Content: content, Mode: hdr.Mode})
	}
	return files, nil
}

// CompressTar creates a reproducible .tar.gz and returns it along with the
// uncompressed tar, whose digest is the layer diff ID.
func CompressTar(files []FileEntry, epoch time.Time) (compressed, uncompressed []byte, err error) {
	uncompressed, err = CreateTar(files, epoch)
	if err != nil {
		return nil, nil, fmt.Errorf("creating tar: %w", err)
	}
	compressed, err = Compress(uncompressed, epoch)
	if err != nil {
		return nil, nil, fmt.Errorf("compressing tar: %w", err)
	}
	return compressed, uncompressed, nil
}

// DecompressTar extracts the files of a .tar.gz archive.
func DecompressTar(data []byte) ([]FileEntry, error) {
	tarData, err := Decompress(data, MaxDecompressedSize)
	if err != nil {
		return nil, fmt.Errorf("decompressing gzip: %w", err)
	}
	files, err := ExtractTar(tarData, MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("extracting tar: %w", err)
	}
	return files, nil
}

func validateArchivePath(p string) error {
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path traversal detected in archive: %s", p)
	}
	if path.IsAbs(cleaned) {
		return fmt.Errorf("absolute path not allowed in archive: %s", p)
	}
	return nil
}
