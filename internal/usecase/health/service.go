package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
// IndexedEntries and Vectors differ while the index holds stale positions or
// has not been loaded yet.
type Report struct {
	Status         Status
	Checks         map[string]CheckResult
	VectorState    string
	Vectors        int
	IndexedEntries int
}

// Service coordinates health checks.
type Service struct {
	postgres  Pinger
	redis     Pinger
	embedding EmbeddingChecker
	vectors   VectorStateReader
	entries   EntryCounter
}

// New creates a Service. Every dependency except postgres can be nil.
func New(postgres, redis Pinger, embedding EmbeddingChecker, vectors VectorStateReader, entries EntryCounter) *Service {
	return &Service{postgres: postgres, redis: redis, embedding: embedding, vectors: vectors, entries: entries}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["postgres"] = result(s.postgres.Ping(ctx))

	if s.redis != nil {
		checks["redis"] = result(s.redis.Ping(ctx))
	}

	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx))
	}

	report := Report{Checks: checks}

	// A missing search_index table fails here while postgres itself still pings.
	if s.entries != nil {
		n, err := s.entries.CountIndexable(ctx)
		checks["search_index"] = result(err)
		report.IndexedEntries = n
	}

	if s.vectors != nil {
		report.VectorState = s.vectors.StateName()
		report.Vectors = s.vectors.Size()
		if s.vectors.Degraded() {
			checks["vector_store"] = CheckError
		} else {
			checks["vector_store"] = CheckOK
		}
	}

	report.Status = Healthy
	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}
	return report
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
