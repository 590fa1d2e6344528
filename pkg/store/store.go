// Package store persists jobs and their operations in MySQL.
//
// It owns identifier assignment, the query indexes, and paginated
// retrieval. Listing totals are approximate by design: they come from
// the InnoDB row estimate instead of a full table scan per page
// request, so callers must not rely on exact equality with the summed
// page contents.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.calcjobs.dev/calcjobs/pkg/job"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Store errors.
var (
	// ErrNotFound marks a missing job, operation or compound key.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID marks an identifier that is not in store format.
	ErrInvalidID = errors.New("invalid id")
)

// Pagination bounds.
const (
	DefaultPageSize = 30
	MinPageSize     = 1
	MaxPageSize     = 100
)

// Page selects a 1-indexed window of a listing.
type Page struct {
	Number int
	Size   int
}

// PageOf clamps raw pagination parameters into a valid page.
// A non-positive page number falls back to the first page and the size
// is clamped into [MinPageSize, MaxPageSize], defaulting to
// DefaultPageSize when unset.
func PageOf(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if size < MinPageSize {
		size = MinPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// Store reads and writes the job and operation tables.
//
// The *sqlx.DB pool must be opened with ClientFoundRows so that
// idempotent result re-updates report matched rows, not changed rows.
type Store struct {
	DB      *sqlx.DB
	Log     *zap.Logger
	Metrics *Metrics
}

// CreateTables creates the job and operation tables with the two
// indexes required for acceptable query performance: one on the
// job-reference column and one on the result column backing the
// completed-count query.
func (s *Store) CreateTables(ctx context.Context) error {
	// language=MariaDB
	const jobs = `CREATE TABLE IF NOT EXISTS jobs (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	operation_count BIGINT UNSIGNED NOT NULL
);`
	// language=MariaDB
	const operations = `CREATE TABLE IF NOT EXISTS operations (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	job_id BIGINT UNSIGNED NOT NULL,
	request TEXT NOT NULL,
	result TEXT,
	INDEX operations_job_id (job_id),
	INDEX operations_result (result(64))
);`
	if _, err := s.DB.ExecContext(ctx, jobs); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, operations); err != nil {
		return fmt.Errorf("failed to create operations table: %w", err)
	}
	return nil
}

type jobRow struct {
	ID             uint64 `db:"id"`
	OperationCount int64  `db:"operation_count"`
}

func (r *jobRow) toDomain() job.Job {
	return job.Job{
		ID:             strconv.FormatUint(r.ID, 10),
		OperationCount: int(r.OperationCount),
	}
}

type operationRow struct {
	ID      uint64         `db:"id"`
	JobID   uint64         `db:"job_id"`
	Request string         `db:"request"`
	Result  sql.NullString `db:"result"`
}

func (r *operationRow) toDomain() job.Operation {
	return job.Operation{
		ID:        strconv.FormatUint(r.ID, 10),
		JobID:     strconv.FormatUint(r.JobID, 10),
		Request:   r.Request,
		Result:    r.Result.String,
		HasResult: r.Result.Valid && r.Result.String != "",
	}
}

func parseID(id string) (uint64, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}

// InsertJob creates a job record and returns its assigned identifier.
func (s *Store) InsertJob(ctx context.Context, operationCount int) (string, error) {
	s.Metrics.insertJob.Add(ctx, 1)
	// language=MariaDB
	const stmt = `INSERT INTO jobs (operation_count) VALUES (?);`
	res, err := s.DB.ExecContext(ctx, stmt, operationCount)
	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read inserted job id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// DeleteJob removes a job record. Operations are not touched here;
// the submission pipeline cascades to them in the background.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	s.Metrics.deleteJob.Add(ctx, 1)
	jobID, err := parseID(id)
	if err != nil {
		return err
	}
	// language=MariaDB
	const stmt = `DELETE FROM jobs WHERE id = ?;`
	res, err := s.DB.ExecContext(ctx, stmt, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob fetches a single job by id.
func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	s.Metrics.getJob.Add(ctx, 1)
	jobID, err := parseID(id)
	if err != nil {
		return job.Job{}, err
	}
	// language=MariaDB
	const stmt = `SELECT id, operation_count FROM jobs WHERE id = ?;`
	var row jobRow
	if err := s.DB.GetContext(ctx, &row, stmt, jobID); errors.Is(err, sql.ErrNoRows) {
		return job.Job{}, ErrNotFound
	} else if err != nil {
		return job.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toDomain(), nil
}

// ListJobs returns one page of jobs plus the approximate total count
// of the jobs table.
func (s *Store) ListJobs(ctx context.Context, page Page) (total int, items []job.Job, err error) {
	s.Metrics.listJobs.Add(ctx, 1)
	// language=MariaDB
	const stmt = `SELECT id, operation_count FROM jobs ORDER BY id ASC LIMIT ? OFFSET ?;`
	var rows []jobRow
	if err := s.DB.SelectContext(ctx, &rows, stmt, page.Size, page.offset()); err != nil {
		return 0, nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	items = make([]job.Job, len(rows))
	for i := range rows {
		items[i] = rows[i].toDomain()
	}
	total, err = s.estimatedCount(ctx, "jobs")
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// InsertOperations bulk-inserts operation records.
// The insert is a single statement but not required to be atomic;
// a failure may leave an arbitrary subset persisted.
func (s *Store) InsertOperations(ctx context.Context, ops []job.Operation) error {
	s.Metrics.insertOperations.Add(ctx, 1)
	if len(ops) == 0 {
		return nil
	}
	type insertRow struct {
		JobID   uint64 `db:"job_id"`
		Request string `db:"request"`
	}
	inserts := make([]insertRow, len(ops))
	for i, op := range ops {
		jobID, err := parseID(op.JobID)
		if err != nil {
			return err
		}
		inserts[i] = insertRow{JobID: jobID, Request: op.Request}
	}
	// language=MariaDB
	const stmt = `INSERT INTO operations (job_id, request) VALUES (:job_id, :request);`
	if _, err := s.DB.NamedExecContext(ctx, stmt, inserts); err != nil {
		return fmt.Errorf("failed to insert operations: %w", err)
	}
	return nil
}

// DeleteOperations removes all operations of a job.
func (s *Store) DeleteOperations(ctx context.Context, jobID string) error {
	s.Metrics.deleteOperations.Add(ctx, 1)
	id, err := parseID(jobID)
	if err != nil {
		return err
	}
	// language=MariaDB
	const stmt = `DELETE FROM operations WHERE job_id = ?;`
	res, err := s.DB.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("failed to delete operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOperation fetches one operation by the compound (job, operation)
// key. Operation ids are not guaranteed unique across jobs in the
// query path, so both keys are required.
func (s *Store) GetOperation(ctx context.Context, jobID, operationID string) (job.Operation, error) {
	s.Metrics.getOperation.Add(ctx, 1)
	jid, err := parseID(jobID)
	if err != nil {
		return job.Operation{}, err
	}
	oid, err := parseID(operationID)
	if err != nil {
		return job.Operation{}, err
	}
	// language=MariaDB
	const stmt = `SELECT id, job_id, request, result FROM operations WHERE id = ? AND job_id = ?;`
	var row operationRow
	if err := s.DB.GetContext(ctx, &row, stmt, oid, jid); errors.Is(err, sql.ErrNoRows) {
		return job.Operation{}, ErrNotFound
	} else if err != nil {
		return job.Operation{}, fmt.Errorf("failed to get operation: %w", err)
	}
	return row.toDomain(), nil
}

// CountCompleted counts the operations of a job whose result is
// present and non-empty. Job status derivation compares this number
// against the job's operation count.
func (s *Store) CountCompleted(ctx context.Context, jobID string) (int, error) {
	s.Metrics.countCompleted.Add(ctx, 1)
	id, err := parseID(jobID)
	if err != nil {
		return 0, err
	}
	// language=MariaDB
	const stmt = `SELECT COUNT(*) FROM operations WHERE job_id = ? AND result IS NOT NULL AND result <> '';`
	var n int
	if err := s.DB.GetContext(ctx, &n, stmt, id); err != nil {
		return 0, fmt.Errorf("failed to count completed operations: %w", err)
	}
	return n, nil
}

// ListOperations returns one page of a job's operations plus the
// approximate total count of the operations table.
func (s *Store) ListOperations(ctx context.Context, jobID string, page Page) (total int, items []job.Operation, err error) {
	s.Metrics.listOperations.Add(ctx, 1)
	id, err := parseID(jobID)
	if err != nil {
		return 0, nil, err
	}
	// language=MariaDB
	const stmt = `SELECT id, job_id, request, result FROM operations
WHERE job_id = ? ORDER BY id ASC LIMIT ? OFFSET ?;`
	var rows []operationRow
	if err := s.DB.SelectContext(ctx, &rows, stmt, id, page.Size, page.offset()); err != nil {
		return 0, nil, fmt.Errorf("failed to list operations: %w", err)
	}
	items = make([]job.Operation, len(rows))
	for i := range rows {
		items[i] = rows[i].toDomain()
	}
	total, err = s.estimatedCount(ctx, "operations")
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// UpdateOperationResult sets the result of one operation addressed by
// the compound key. Re-setting the same result is a successful no-op,
// which keeps concurrent duplicate deliveries harmless.
func (s *Store) UpdateOperationResult(ctx context.Context, jobID, operationID, result string) error {
	s.Metrics.updateOperation.Add(ctx, 1)
	jid, err := parseID(jobID)
	if err != nil {
		return err
	}
	oid, err := parseID(operationID)
	if err != nil {
		return err
	}
	// language=MariaDB
	const stmt = `UPDATE operations SET result = ? WHERE id = ? AND job_id = ?;`
	res, err := s.DB.ExecContext(ctx, stmt, result, oid, jid)
	if err != nil {
		return fmt.Errorf("failed to update operation result: %w", err)
	}
	// Matched rows, needs ClientFoundRows on the connection.
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// estimatedCount reads the InnoDB row estimate for a table.
// This deliberately trades accuracy for constant cost.
func (s *Store) estimatedCount(ctx context.Context, table string) (int, error) {
	// language=MariaDB
	const stmt = `SELECT TABLE_ROWS FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?;`
	var rows sql.NullInt64
	if err := s.DB.GetContext(ctx, &rows, stmt, table); err != nil {
		return 0, fmt.Errorf("failed to estimate row count of %s: %w", table, err)
	}
	return int(rows.Int64), nil
}

// Metrics counts store requests per operation.
type Metrics struct {
	insertJob        metric.Int64Counter
	deleteJob        metric.Int64Counter
	getJob           metric.Int64Counter
	listJobs         metric.Int64Counter
	insertOperations metric.Int64Counter
	deleteOperations metric.Int64Counter
	getOperation     metric.Int64Counter
	countCompleted   metric.Int64Counter
	listOperations   metric.Int64Counter
	streamOperations metric.Int64Counter
	updateOperation  metric.Int64Counter
}

// NewMetrics registers the store request counters.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	for _, c := range []struct {
		counter *metric.Int64Counter
		name    string
	}{
		{&metrics.insertJob, "database_insert_job_requests"},
		{&metrics.deleteJob, "database_delete_job_requests"},
		{&metrics.getJob, "database_get_job_requests"},
		{&metrics.listJobs, "database_get_jobs_requests"},
		{&metrics.insertOperations, "database_insert_operations_requests"},
		{&metrics.deleteOperations, "database_delete_operations_requests"},
		{&metrics.getOperation, "database_get_operation_requests"},
		{&metrics.countCompleted, "database_get_total_completed_operations_requests"},
		{&metrics.listOperations, "database_get_operations_requests"},
		{&metrics.streamOperations, "database_get_batch_operations_requests"},
		{&metrics.updateOperation, "database_update_operation_requests"},
	} {
		counter, err := m.NewInt64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.counter = counter
	}
	return metrics, nil
}
