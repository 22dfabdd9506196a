package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// requiredRecordColumns is the column set the application expects on the
// clock-in records table.
var requiredRecordColumns = []string{"id", "colaborador_id", "data_hora", "tipo"}

// checkFunctionality proves the recovered data supports the core
// application workflows.
func (v *Validator) checkFunctionality(ctx context.Context, sandbox string, phase *PhaseResult) error {
	var problems []string

	// an administrator must be resolvable the way the login flow does it
	var adminID int64
	err := v.store.QueryRow(ctx, fmt.Sprintf(
		`SELECT id FROM %s WHERE perfil = ? AND ativo = 1 ORDER BY id LIMIT 1`,
		qualify(sandbox, "usuarios")), "ADMINISTRADOR").Scan(&adminID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		problems = append(problems, "no active administrator account resolvable")
	case err != nil:
		return fmt.Errorf("administrator lookup failed: %w", err)
	default:
		phase.Details["admin_id"] = adminID
	}

	columns, err := v.store.ListColumns(ctx, sandbox, "registros_ponto")
	if err != nil {
		return fmt.Errorf("failed to inspect recovered record columns: %w", err)
	}
	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[col] = true
	}
	var missing []string
	for _, col := range requiredRecordColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	phase.Details["record_columns"] = len(columns)
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("registros_ponto is missing columns: %s", strings.Join(missing, ", ")))
	}

	// the per-employee report query must run against the recovered data
	reportRows, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM (
			SELECT c.id, COUNT(rp.id) AS registros
			FROM %s c LEFT JOIN %s rp ON rp.colaborador_id = c.id
			WHERE c.ativo = 1 GROUP BY c.id
		) r`,
		qualify(sandbox, "colaboradores"), qualify(sandbox, "registros_ponto")))
	if err != nil {
		return fmt.Errorf("per-employee report query failed: %w", err)
	}
	phase.Details["report_rows"] = reportRows

	// biometric enrollment ratio; zero employees is already flagged elsewhere
	total, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, qualify(sandbox, "colaboradores")))
	if err != nil {
		return fmt.Errorf("employee count query failed: %w", err)
	}
	if total > 0 {
		enrolled, err := v.countScalar(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE biometria_ativa = 1`, qualify(sandbox, "colaboradores")))
		if err != nil {
			return fmt.Errorf("biometric enrollment query failed: %w", err)
		}
		phase.Details["biometric_enrollment_ratio"] = float64(enrolled) / float64(total)
	}

	if len(problems) > 0 {
		return fmt.Errorf("functionality problems: %s", strings.Join(problems, "; "))
	}
	return nil
}
