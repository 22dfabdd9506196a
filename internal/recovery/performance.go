package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// latency thresholds for recovered data
const (
	perQueryThreshold = 2000 * time.Millisecond
	averageThreshold  = 500 * time.Millisecond
)

type benchmarkQuery struct {
	name  string
	query string
	args  []interface{}
}

// checkPerformance runs the benchmark battery against the sandbox schema
// and enforces the per-query and average latency thresholds.
func (v *Validator) checkPerformance(ctx context.Context, sandbox string, phase *PhaseResult) error {
	queries := []benchmarkQuery{
		{
			name:  "user_lookup_by_email",
			query: fmt.Sprintf(`SELECT id, nome, perfil FROM %s WHERE email = ? LIMIT 1`, qualify(sandbox, "usuarios")),
			args:  []interface{}{"admin@pontovault.local"},
		},
		{
			name:  "bulk_record_count",
			query: fmt.Sprintf(`SELECT COUNT(*) FROM %s`, qualify(sandbox, "registros_ponto")),
		},
		{
			name: "recent_records_page",
			query: fmt.Sprintf(`SELECT id, colaborador_id, data_hora, tipo FROM %s ORDER BY data_hora DESC LIMIT 50`,
				qualify(sandbox, "registros_ponto")),
		},
		{
			name: "employee_record_aggregate",
			query: fmt.Sprintf(`SELECT c.id, COUNT(rp.id) FROM %s c LEFT JOIN %s rp ON rp.colaborador_id = c.id GROUP BY c.id`,
				qualify(sandbox, "colaboradores"), qualify(sandbox, "registros_ponto")),
		},
	}

	var slow []string
	var total time.Duration

	for _, bq := range queries {
		elapsed, err := v.timeQuery(ctx, bq)
		if err != nil {
			return fmt.Errorf("benchmark query %s failed: %w", bq.name, err)
		}

		phase.Details[bq.name+"_ms"] = elapsed.Milliseconds()
		total += elapsed

		if elapsed > perQueryThreshold {
			slow = append(slow, fmt.Sprintf("%s took %s", bq.name, elapsed))
		}
	}

	average := total / time.Duration(len(queries))
	phase.Details["average_ms"] = average.Milliseconds()

	if len(slow) > 0 {
		return fmt.Errorf("queries exceeded the per-query threshold: %s", strings.Join(slow, "; "))
	}
	if average > averageThreshold {
		return fmt.Errorf("average query latency %s exceeds threshold %s", average, averageThreshold)
	}
	return nil
}

// timeQuery runs a query, drains its rows and returns the elapsed time
func (v *Validator) timeQuery(ctx context.Context, bq benchmarkQuery) (time.Duration, error) {
	start := time.Now()

	rows, err := v.store.Query(ctx, bq.query, bq.args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}
