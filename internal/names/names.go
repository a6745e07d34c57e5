// Package names derives deterministic local filenames for remote datasets.
// The same URL always maps to the same name, distinct URLs map to distinct
// names with overwhelming probability, and every derived name is safe to use
// as a single path segment.
package names

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/datastash/datastash/pkg/types"
)

const (
	// maxNameLength bounds derived names; longer candidates are replaced by
	// a digest prefix plus a fixed-length tail of the original
	maxNameLength = 150

	// digestHexLength is the rendered size of a 128-bit digest
	digestHexLength = 32
)

// archiveSuffixes are the compression suffixes the fetch layer can unpack.
var archiveSuffixes = []string{".gz", ".zip", ".sz"}

// Derive returns the local filename for a remote source. At least one of
// url and filename must be non-empty; an explicit filename wins over
// derivation from the URL. When decompress is set, a trailing archive
// suffix is stripped so the stored name matches the unpacked content.
func Derive(url, filename string, decompress bool) (string, error) {
	if url == "" && filename == "" {
		return "", fmt.Errorf("names: %w: need a url or a filename", types.ErrInvalidArgument)
	}
	if filename == "" {
		filename = fromURL(url)
	}
	filename = Shorten(sanitize(filename))
	if decompress {
		filename = stripArchiveSuffix(filename)
	}
	return filename, nil
}

// Shorten bounds a name's length. Names over the ceiling are replaced by a
// digest of the whole name plus a fixed-length tail of the original, keeping
// the informative trailing part (extension included) while staying unique.
func Shorten(name string) string {
	if len(name) <= maxNameLength {
		return name
	}
	return digest(name) + name[len(name)-(maxNameLength-digestHexLength):]
}

// Path joins the derived filename onto a directory.
func Path(dir, url, filename string, decompress bool) (string, error) {
	name, err := Derive(url, filename, decompress)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// fromURL builds a name candidate from a URL: a digest for stability plus
// the URL's path segments for readability. The first segment (the scheme)
// is dropped.
func fromURL(url string) string {
	parts := strings.Split(strings.ReplaceAll(url, `\`, "/"), "/")
	return digest(url) + "." + strings.Join(parts[1:], "_")
}

// sanitize replaces every path and query separator with an underscore.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ';', ':', '?', '=':
			return '_'
		}
		return r
	}, name)
}

// stripArchiveSuffix removes one trailing archive suffix, if present.
func stripArchiveSuffix(name string) string {
	ext := filepath.Ext(name)
	for _, suffix := range archiveSuffixes {
		if ext == suffix {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// digest renders the murmur3 128-bit hash of s as 32 hex characters.
func digest(s string) string {
	h1, h2 := murmur3.Sum128([]byte(s))
	return fmt.Sprintf("%016x%016x", h1, h2)
}
