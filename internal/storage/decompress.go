package storage

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// Compression identifies a compression container detected from magic bytes.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXZ
)

// String returns the format name.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionBzip2:
		return "bzip2"
	case CompressionXZ:
		return "xz"
	default:
		return "none"
	}
}

// DetectCompression identifies a compression container from the first bytes
// of a stream. Six bytes are enough for every supported format.
func DetectCompression(header []byte) Compression {
	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		return CompressionGzip
	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		return CompressionBzip2
	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' && header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		return CompressionXZ
	default:
		return CompressionNone
	}
}

// sniffReader peeks at the stream and wraps it with the matching
// decompressor. Uncompressed streams pass through unchanged.
func sniffReader(br *bufio.Reader) (io.Reader, Compression, error) {
	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, CompressionNone, fmt.Errorf("peeking header: %w", err)
	}

	switch DetectCompression(header) {
	case CompressionGzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, CompressionGzip, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, CompressionGzip, nil

	case CompressionBzip2:
		return bzip2.NewReader(br), CompressionBzip2, nil

	case CompressionXZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, CompressionXZ, fmt.Errorf("creating xz reader: %w", err)
		}
		return xzr, CompressionXZ, nil
	}

	return br, CompressionNone, nil
}

// Decompress detects the compression of the file at relativePath and, when
// compressed, replaces it in place with the expanded content. Uncompressed
// files are left untouched. Returns the detected format.
func (w *Workspace) Decompress(relativePath string) (Compression, error) {
	srcPath, err := w.ResolvePath(relativePath)
	if err != nil {
		return CompressionNone, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return CompressionNone, fmt.Errorf("opening file: %w", err)
	}

	reader, comp, err := sniffReader(bufio.NewReader(src))
	if err != nil {
		src.Close()
		return comp, err
	}
	if comp == CompressionNone {
		src.Close()
		return CompressionNone, nil
	}

	dir := filepath.Dir(srcPath)
	tempPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(srcPath), randomHex(8)))
	dst, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		src.Close()
		return comp, fmt.Errorf("creating temporary file: %w", err)
	}

	_, err = io.Copy(dst, reader)
	if err == nil {
		err = dst.Sync()
	}
	closeErr := dst.Close()
	src.Close()

	if err != nil {
		os.Remove(tempPath)
		return comp, fmt.Errorf("expanding %s stream: %w", comp, err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return comp, fmt.Errorf("closing temporary file: %w", closeErr)
	}

	if err := os.Rename(tempPath, srcPath); err != nil {
		os.Remove(tempPath)
		return comp, fmt.Errorf("replacing original: %w", err)
	}

	return comp, nil
}
