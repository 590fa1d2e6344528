package store

import (
	"context"
	"fmt"

	"go.calcjobs.dev/calcjobs/pkg/job"
)

// StreamOperations reads all operations of a job in fixed-size chunks
// and invokes handler once per record, bounding memory use regardless
// of job size.
//
// The cursor is keyset-paginated: each round trip materializes at most
// chunkSize rows. Handler invocations within a chunk run back-to-back;
// handler outcomes are the handler's own responsibility and never
// abort the stream. The first error from the underlying cursor is
// returned. A fresh call reopens a fresh cursor; a stream is not
// resumable mid-flight.
func (s *Store) StreamOperations(ctx context.Context, jobID string, chunkSize int, handler func(job.Operation)) error {
	s.Metrics.streamOperations.Add(ctx, 1)
	id, err := parseID(jobID)
	if err != nil {
		return err
	}
	if chunkSize < 1 {
		return fmt.Errorf("invalid chunk size: %d", chunkSize)
	}
	// language=MariaDB
	const stmt = `SELECT id, job_id, request, result FROM operations
WHERE job_id = ? AND id > ? ORDER BY id ASC LIMIT ?;`
	var lastID uint64
	for {
		var rows []operationRow
		if err := s.DB.SelectContext(ctx, &rows, stmt, id, lastID, chunkSize); err != nil {
			return fmt.Errorf("failed to read operations chunk: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			handler(rows[i].toDomain())
		}
		lastID = rows[len(rows)-1].ID
		if len(rows) < chunkSize {
			return nil
		}
	}
}
