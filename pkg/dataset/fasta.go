package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/datastash/datastash/pkg/types"
)

// fastaMaxLineBytes bounds a single sequence line; some references put a
// whole chromosome on one line.
const fastaMaxLineBytes = 64 * 1024 * 1024

// ParseFASTA reads FASTA-formatted records: a '>' header line whose first
// word is the identifier, followed by sequence lines that are concatenated.
// Record order is preserved. Repeated identifiers are a DuplicateKeyError.
func ParseFASTA(r io.Reader) ([]SequenceRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), fastaMaxLineBytes)

	var (
		records []SequenceRecord
		seen    = make(map[string]struct{})
		id      string
		seq     strings.Builder
		open    bool
	)

	flush := func() {
		if open {
			records = append(records, SequenceRecord{ID: id, Sequence: seq.String()})
			seq.Reset()
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimSpace(line[1:])
			fields := strings.Fields(header)
			if len(fields) == 0 {
				return nil, fmt.Errorf("dataset: %w: FASTA header has no identifier", types.ErrInvalidArgument)
			}
			id = fields[0]
			if _, dup := seen[id]; dup {
				return nil, &types.DuplicateKeyError{Key: id}
			}
			seen[id] = struct{}{}
			open = true
			continue
		}
		if !open {
			return nil, fmt.Errorf("dataset: %w: FASTA sequence data before first header", types.ErrInvalidArgument)
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: reading FASTA: %w", err)
	}
	flush()

	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %w: FASTA input has no records", types.ErrInvalidArgument)
	}
	return records, nil
}
