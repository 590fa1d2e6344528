package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.calcjobs.dev/calcjobs/pkg/job"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.opentelemetry.io/otel/metric"
)

type healthResponse struct {
	Status string `json:"status"`
}

type newJobResponse struct {
	ID                string     `json:"id"`
	CreatedOperations int        `json:"created_operations"`
	Status            job.Status `json:"status"`
}

type jobResponse struct {
	ID         string     `json:"id"`
	Operations int        `json:"operations"`
	Status     job.Status `json:"status"`
}

type operationResponse struct {
	ID      string  `json:"id"`
	Request string  `json:"request"`
	Result  *string `json:"result,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

type pageResponse struct {
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Total int          `json:"total"`
	Items []idResponse `json:"items"`
}

// pageFromQuery reads the page and size query parameters, falling back
// to the defaults and clamping the size.
func pageFromQuery(r *http.Request) store.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return store.PageOf(page, size)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Metrics counts requests per endpoint.
type Metrics struct {
	health         metric.Int64Counter
	createJob      metric.Int64Counter
	deleteJob      metric.Int64Counter
	getJob         metric.Int64Counter
	listJobs       metric.Int64Counter
	getOperation   metric.Int64Counter
	listOperations metric.Int64Counter
	fallback       metric.Int64Counter
}

// NewMetrics registers the HTTP request counters.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	for _, c := range []struct {
		counter *metric.Int64Counter
		name    string
	}{
		{&metrics.health, "http_server_health_check_requests"},
		{&metrics.createJob, "http_server_create_job_requests"},
		{&metrics.deleteJob, "http_server_delete_job_requests"},
		{&metrics.getJob, "http_server_get_job_requests"},
		{&metrics.listJobs, "http_server_get_jobs_requests"},
		{&metrics.getOperation, "http_server_get_operation_requests"},
		{&metrics.listOperations, "http_server_get_operations_requests"},
		{&metrics.fallback, "http_server_fallback_requests"},
	} {
		counter, err := m.NewInt64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.counter = counter
	}
	return metrics, nil
}
