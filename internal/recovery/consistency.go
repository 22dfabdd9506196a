package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pontovault/internal/database"
)

// consistency thresholds
var timestampFloor = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func qualify(schema, table string) string {
	return database.QuoteIdentifier(schema) + "." + database.QuoteIdentifier(table)
}

// checkDataConsistency verifies referential integrity, duplicates, required
// rows, CPF check digits and timestamp sanity in the recovered data.
func (v *Validator) checkDataConsistency(ctx context.Context, sandbox string, phase *PhaseResult) error {
	var problems []string

	orphanRecords, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s rp LEFT JOIN %s c ON rp.colaborador_id = c.id WHERE c.id IS NULL`,
		qualify(sandbox, "registros_ponto"), qualify(sandbox, "colaboradores")))
	if err != nil {
		return err
	}
	phase.Details["orphan_time_records"] = orphanRecords
	if orphanRecords > 0 {
		problems = append(problems, fmt.Sprintf("%d time records reference missing employees", orphanRecords))
	}

	orphanLogs, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s la LEFT JOIN %s u ON la.usuario_id = u.id WHERE la.usuario_id IS NOT NULL AND u.id IS NULL`,
		qualify(sandbox, "logs_auditoria"), qualify(sandbox, "usuarios")))
	if err != nil {
		return err
	}
	phase.Details["orphan_audit_logs"] = orphanLogs
	if orphanLogs > 0 {
		problems = append(problems, fmt.Sprintf("%d audit logs reference missing users", orphanLogs))
	}

	duplicateCPFs, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT cpf FROM %s GROUP BY cpf HAVING COUNT(*) > 1) d`,
		qualify(sandbox, "colaboradores")))
	if err != nil {
		return err
	}
	phase.Details["duplicate_cpfs"] = duplicateCPFs
	if duplicateCPFs > 0 {
		problems = append(problems, fmt.Sprintf("%d duplicated CPF values", duplicateCPFs))
	}

	duplicateEmails, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT email FROM %s GROUP BY email HAVING COUNT(*) > 1) d`,
		qualify(sandbox, "usuarios")))
	if err != nil {
		return err
	}
	phase.Details["duplicate_emails"] = duplicateEmails
	if duplicateEmails > 0 {
		problems = append(problems, fmt.Sprintf("%d duplicated user emails", duplicateEmails))
	}

	admins, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE perfil = ?`, qualify(sandbox, "usuarios")), "ADMINISTRADOR")
	if err != nil {
		return err
	}
	phase.Details["admin_users"] = admins
	if admins == 0 {
		problems = append(problems, "no administrator account in recovered data")
	}

	activeEmployees, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE ativo = 1`, qualify(sandbox, "colaboradores")))
	if err != nil {
		return err
	}
	phase.Details["active_employees"] = activeEmployees
	if activeEmployees == 0 {
		problems = append(problems, "no active employee in recovered data")
	}

	invalidCPFs, err := v.countInvalidCPFs(ctx, sandbox)
	if err != nil {
		return err
	}
	phase.Details["invalid_cpfs"] = invalidCPFs
	if invalidCPFs > 0 {
		problems = append(problems, fmt.Sprintf("%d CPF values fail check-digit validation", invalidCPFs))
	}

	futureRecords, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE data_hora > NOW()`, qualify(sandbox, "registros_ponto")))
	if err != nil {
		return err
	}
	phase.Details["future_records"] = futureRecords
	if futureRecords > 0 {
		problems = append(problems, fmt.Sprintf("%d time records dated in the future", futureRecords))
	}

	ancientRecords, err := v.countScalar(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE data_hora < ?`, qualify(sandbox, "registros_ponto")),
		timestampFloor.Format("2006-01-02"))
	if err != nil {
		return err
	}
	phase.Details["pre_floor_records"] = ancientRecords
	if ancientRecords > 0 {
		problems = append(problems, fmt.Sprintf("%d time records predate the system floor", ancientRecords))
	}

	if len(problems) > 0 {
		return fmt.Errorf("data consistency problems: %s", strings.Join(problems, "; "))
	}
	return nil
}

// countInvalidCPFs validates the check digits of every unmasked CPF.
// Masked values from sanitized backups are skipped.
func (v *Validator) countInvalidCPFs(ctx context.Context, sandbox string) (int, error) {
	rows, err := v.store.Query(ctx, fmt.Sprintf(
		`SELECT cpf FROM %s WHERE cpf IS NOT NULL AND cpf <> ''`, qualify(sandbox, "colaboradores")))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	invalid := 0
	for rows.Next() {
		var cpf string
		if err := rows.Scan(&cpf); err != nil {
			return 0, err
		}
		if strings.Contains(cpf, "*") {
			continue
		}
		if !ValidCPF(cpf) {
			invalid++
		}
	}
	return invalid, rows.Err()
}

func (v *Validator) countScalar(ctx context.Context, query string, args ...interface{}) (int, error) {
	var count int
	if err := v.store.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("consistency query failed: %w", err)
	}
	return count, nil
}

// ValidCPF checks the two verification digits of a Brazilian CPF
func ValidCPF(cpf string) bool {
	var digits []int
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 11 {
		return false
	}

	// all-identical sequences pass the arithmetic but are not valid CPFs
	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	if checkDigit(digits[:9], 10) != digits[9] {
		return false
	}
	return checkDigit(digits[:10], 11) == digits[10]
}

func checkDigit(digits []int, weight int) int {
	sum := 0
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}
