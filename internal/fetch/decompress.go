package fetch

import (
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// wrapDecompressor wraps src with the decoder for the given archive suffix.
// The returned close function releases decoder state and must be called
// after copying. Zip archives need random access and are handled separately.
func wrapDecompressor(src io.Reader, suffix string) (io.Reader, func() error, error) {
	switch suffix {
	case ".gz":
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch: opening gzip stream: %w", err)
		}
		return gz, gz.Close, nil
	case ".sz":
		return snappy.NewReader(src), func() error { return nil }, nil
	default:
		return src, func() error { return nil }, nil
	}
}

// writeUnzipped spools src to disk, extracts one archive entry to tmp, and
// renames tmp to target. The entry matching the target's base name wins;
// otherwise the first file entry is taken.
func writeUnzipped(src io.Reader, tmp, target string) error {
	raw := tmp + ".zip"
	defer os.Remove(raw)

	rawOut, err := os.Create(raw)
	if err != nil {
		return fmt.Errorf("fetch: creating %s: %w", raw, err)
	}
	if _, err := io.Copy(rawOut, src); err != nil {
		rawOut.Close()
		return fmt.Errorf("fetch: writing %s: %w", raw, err)
	}
	if err := rawOut.Close(); err != nil {
		return fmt.Errorf("fetch: closing %s: %w", raw, err)
	}

	zr, err := zip.OpenReader(raw)
	if err != nil {
		return fmt.Errorf("fetch: opening zip archive: %w", err)
	}
	defer zr.Close()

	entry, err := pickZipEntry(zr, filepath.Base(target))
	if err != nil {
		return err
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("fetch: opening zip entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("fetch: creating %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("fetch: extracting %s: %w", entry.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("fetch: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("fetch: moving %s into place: %w", tmp, err)
	}
	return nil
}

// pickZipEntry selects the archive entry to extract.
func pickZipEntry(zr *zip.ReadCloser, preferred string) (*zip.File, error) {
	var first *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if filepath.Base(f.Name) == preferred {
			return f, nil
		}
		if first == nil {
			first = f
		}
	}
	if first == nil {
		return nil, fmt.Errorf("fetch: zip archive contains no files")
	}
	return first, nil
}
