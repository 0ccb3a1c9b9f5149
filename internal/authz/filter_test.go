package authz

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/models"
)

func TestSurveyFilter(t *testing.T) {
	engine := NewEngine(&fakePerms{}, nil)
	tenant := uuid.New()
	dept := uuid.New()

	tests := []struct {
		name     string
		p        *Principal
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "nil principal matches nothing",
			p:       nil,
			wantSQL: "FALSE",
		},
		{
			name:    "platform admin matches nothing",
			p:       &Principal{Role: models.RoleAdmin, TenantID: &tenant},
			wantSQL: "FALSE",
		},
		{
			name: "cross-department companyAdmin sees the whole tenant",
			p: &Principal{Role: models.RoleCompanyAdmin, TenantID: &tenant,
				DepartmentID: &dept, CrossDepartmentSurveyAccess: true},
			wantSQL:  "s.tenant_id = $3",
			wantArgs: 1,
		},
		{
			name: "companyAdmin with department sees own plus tenant-wide",
			p: &Principal{Role: models.RoleCompanyAdmin, TenantID: &tenant,
				DepartmentID: &dept},
			wantSQL:  "s.tenant_id = $3 AND (s.department_id IS NULL OR s.department_id = $4)",
			wantArgs: 2,
		},
		{
			name:     "companyAdmin without department sees tenant-wide only",
			p:        &Principal{Role: models.RoleCompanyAdmin, TenantID: &tenant},
			wantSQL:  "s.tenant_id = $3 AND s.department_id IS NULL",
			wantArgs: 1,
		},
		{
			name: "member pinned to own department",
			p: &Principal{Role: models.RoleMember, TenantID: &tenant,
				DepartmentID: &dept},
			wantSQL:  "s.tenant_id = $3 AND s.department_id = $4",
			wantArgs: 2,
		},
		{
			name:    "member without department matches nothing",
			p:       &Principal{Role: models.RoleMember, TenantID: &tenant},
			wantSQL: "FALSE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.SurveyFilter(tt.p, "s", 3)
			if got.SQL != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", got.SQL, tt.wantSQL)
			}
			if len(got.Args) != tt.wantArgs {
				t.Errorf("len(Args) = %d, want %d", len(got.Args), tt.wantArgs)
			}
		})
	}

	t.Run("empty alias uses bare columns", func(t *testing.T) {
		p := &Principal{Role: models.RoleMember, TenantID: &tenant, DepartmentID: &dept}
		got := engine.SurveyFilter(p, "", 1)
		if got.SQL != "tenant_id = $1 AND department_id = $2" {
			t.Errorf("SQL = %q", got.SQL)
		}
	})
}

func TestActionFilter(t *testing.T) {
	engine := NewEngine(&fakePerms{}, nil)
	tenant := uuid.New()
	dept := uuid.New()

	t.Run("platform admin matches nothing", func(t *testing.T) {
		got := engine.ActionFilter(&Principal{Role: models.RoleAdmin, TenantID: &tenant}, "a", 1)
		if got.SQL != "FALSE" {
			t.Errorf("SQL = %q, want FALSE", got.SQL)
		}
	})

	t.Run("member without department matches nothing", func(t *testing.T) {
		got := engine.ActionFilter(&Principal{Role: models.RoleMember, TenantID: &tenant}, "a", 1)
		if got.SQL != "FALSE" {
			t.Errorf("SQL = %q, want FALSE", got.SQL)
		}
	})

	t.Run("member filter intersects survey visibility", func(t *testing.T) {
		p := &Principal{Role: models.RoleMember, TenantID: &tenant, DepartmentID: &dept}
		got := engine.ActionFilter(p, "a", 1)
		for _, fragment := range []string{
			"a.tenant_id = $1",
			"a.metadata->>'survey_id' IS NULL",
			"EXISTS (SELECT 1 FROM surveys s",
			"s.tenant_id = $2 AND s.department_id = $3",
		} {
			if !strings.Contains(got.SQL, fragment) {
				t.Errorf("SQL missing %q:\n%s", fragment, got.SQL)
			}
		}
		if len(got.Args) != 3 {
			t.Errorf("len(Args) = %d, want 3", len(got.Args))
		}
	})

	t.Run("cross-department companyAdmin needs only tenant args", func(t *testing.T) {
		p := &Principal{Role: models.RoleCompanyAdmin, TenantID: &tenant,
			CrossDepartmentSurveyAccess: true}
		got := engine.ActionFilter(p, "", 5)
		if !strings.Contains(got.SQL, "tenant_id = $5") || !strings.Contains(got.SQL, "s.tenant_id = $6") {
			t.Errorf("SQL = %q", got.SQL)
		}
		if len(got.Args) != 2 {
			t.Errorf("len(Args) = %d, want 2", len(got.Args))
		}
	})
}
