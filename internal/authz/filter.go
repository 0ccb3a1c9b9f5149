package authz

import (
	"fmt"

	"github.com/ratepro/backend/internal/models"
)

// Filter is a SQL predicate fragment with positional arguments. Repositories
// append it to list queries so rows outside the principal's scope are never
// fetched, not merely hidden.
type Filter struct {
	SQL  string
	Args []interface{}
}

// None is a predicate matching no rows.
var noneFilter = Filter{SQL: "FALSE"}

// SurveyFilter returns the predicate narrowing survey list queries to what
// the principal may see: tenant equality plus the department rule. The
// alias names the surveys table in the enclosing query; start is the index
// of the first positional argument.
func (e *Engine) SurveyFilter(p *Principal, alias string, start int) Filter {
	if p == nil || p.TenantID == nil {
		return noneFilter
	}
	col := func(c string) string {
		if alias == "" {
			return c
		}
		return alias + "." + c
	}

	switch p.Role {
	case models.RoleAdmin:
		// Platform admins are excluded from survey operations entirely.
		return noneFilter
	case models.RoleCompanyAdmin:
		if p.CrossDepartmentSurveyAccess {
			return Filter{
				SQL:  fmt.Sprintf("%s = $%d", col("tenant_id"), start),
				Args: []interface{}{*p.TenantID},
			}
		}
		if p.DepartmentID == nil {
			return Filter{
				SQL:  fmt.Sprintf("%s = $%d AND %s IS NULL", col("tenant_id"), start, col("department_id")),
				Args: []interface{}{*p.TenantID},
			}
		}
		return Filter{
			SQL: fmt.Sprintf("%s = $%d AND (%s IS NULL OR %s = $%d)",
				col("tenant_id"), start, col("department_id"), col("department_id"), start+1),
			Args: []interface{}{*p.TenantID, *p.DepartmentID},
		}
	case models.RoleMember:
		if p.DepartmentID == nil {
			return noneFilter
		}
		return Filter{
			SQL: fmt.Sprintf("%s = $%d AND %s = $%d",
				col("tenant_id"), start, col("department_id"), start+1),
			Args: []interface{}{*p.TenantID, *p.DepartmentID},
		}
	}
	return noneFilter
}

// ActionFilter narrows action list queries: tenant equality intersected
// with the visibility of the originating survey. Actions without a survey
// reference are visible tenant-wide. Department ownership dominates the
// survey's action permissions, matching the survey list rule.
func (e *Engine) ActionFilter(p *Principal, alias string, start int) Filter {
	if p == nil || p.TenantID == nil || p.Role == models.RoleAdmin {
		return noneFilter
	}
	col := func(c string) string {
		if alias == "" {
			return c
		}
		return alias + "." + c
	}

	surveyScope := e.SurveyFilter(p, "s", start+1)
	if surveyScope.SQL == noneFilter.SQL {
		return noneFilter
	}
	sql := fmt.Sprintf(
		"%s = $%d AND (%s->>'survey_id' IS NULL OR EXISTS (SELECT 1 FROM surveys s WHERE s.id = (%s->>'survey_id')::uuid AND %s))",
		col("tenant_id"), start, col("metadata"), col("metadata"), surveyScope.SQL,
	)
	args := append([]interface{}{*p.TenantID}, surveyScope.Args...)
	return Filter{SQL: sql, Args: args}
}
