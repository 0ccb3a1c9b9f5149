package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/models"
)

type fakePerms struct {
	granted map[string]bool
	err     error
}

func (f *fakePerms) HasPermission(_ context.Context, _, _ uuid.UUID, permission string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.granted[permission], nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func wantDenyCode(t *testing.T, err error, code string) {
	t.Helper()
	de, ok := AsDeny(err)
	if !ok {
		t.Fatalf("err = %v, want DenyError with code %s", err, code)
	}
	if de.Code != code {
		t.Fatalf("code = %s, want %s", de.Code, code)
	}
}

func TestAuthorizeScopeSeparation(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(&fakePerms{}, nil)
	tenant := uuid.New()

	admin := &Principal{UserID: uuid.New(), Role: models.RoleAdmin}
	companyAdmin := &Principal{UserID: uuid.New(), Role: models.RoleCompanyAdmin, TenantID: &tenant}
	member := &Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenant}

	t.Run("nil principal is unauthenticated", func(t *testing.T) {
		err := engine.Authorize(ctx, nil, Route{Action: "tenant:list", Scope: ScopePlatform}, nil)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("platform scope requires admin", func(t *testing.T) {
		route := Route{Action: "tenant:list", Scope: ScopePlatform}
		if err := engine.Authorize(ctx, admin, route, nil); err != nil {
			t.Fatalf("admin denied: %v", err)
		}
		wantDenyCode(t, engine.Authorize(ctx, companyAdmin, route, nil), CodePlatformAccessDenied)
		wantDenyCode(t, engine.Authorize(ctx, member, route, nil), CodePlatformAccessDenied)
	})

	t.Run("tenant scope excludes admin", func(t *testing.T) {
		route := Route{Action: "contact:list", Scope: ScopeTenant}
		wantDenyCode(t, engine.Authorize(ctx, admin, route, nil), CodeTenantAccessDenied)
		if err := engine.Authorize(ctx, companyAdmin, route, nil); err != nil {
			t.Fatalf("companyAdmin denied: %v", err)
		}
	})

	t.Run("tenant scope requires tenant context", func(t *testing.T) {
		orphan := &Principal{UserID: uuid.New(), Role: models.RoleMember}
		route := Route{Action: "contact:list", Scope: ScopeTenant}
		wantDenyCode(t, engine.Authorize(ctx, orphan, route, nil), CodeNoTenantContext)
	})

	t.Run("cross-tenant target reads as absent", func(t *testing.T) {
		other := uuid.New()
		route := Route{Action: "contact:get", Scope: ScopeTenant}
		err := engine.Authorize(ctx, member, route, &Target{TenantID: &other})
		if !errors.Is(err, ErrNotVisible) {
			t.Fatalf("err = %v, want ErrNotVisible", err)
		}
	})

	t.Run("dual scope passes admin and owning tenant", func(t *testing.T) {
		route := Route{Action: "user:get", Scope: ScopeDual}
		target := &Target{TenantID: &tenant}
		if err := engine.Authorize(ctx, admin, route, target); err != nil {
			t.Fatalf("admin denied: %v", err)
		}
		if err := engine.Authorize(ctx, member, route, target); err != nil {
			t.Fatalf("owning member denied: %v", err)
		}
		other := uuid.New()
		err := engine.Authorize(ctx, member, route, &Target{TenantID: &other})
		if !errors.Is(err, ErrNotVisible) {
			t.Fatalf("err = %v, want ErrNotVisible", err)
		}
	})

	t.Run("shared scope admits everyone", func(t *testing.T) {
		route := Route{Action: "notification:list", Scope: ScopeShared}
		for _, p := range []*Principal{admin, companyAdmin, member} {
			if err := engine.Authorize(ctx, p, route, nil); err != nil {
				t.Fatalf("role %s denied: %v", p.Role, err)
			}
		}
	})
}

func TestAuthorizeRoleAndPermissionGates(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	companyAdmin := &Principal{UserID: uuid.New(), Role: models.RoleCompanyAdmin, TenantID: &tenant}
	member := &Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenant}

	t.Run("role gate", func(t *testing.T) {
		engine := NewEngine(&fakePerms{}, nil)
		route := Route{Action: "user:create", Scope: ScopeTenant, Roles: []models.Role{models.RoleCompanyAdmin}}
		if err := engine.Authorize(ctx, companyAdmin, route, nil); err != nil {
			t.Fatalf("companyAdmin denied: %v", err)
		}
		wantDenyCode(t, engine.Authorize(ctx, member, route, nil), CodeRoleNotAuthorized)
	})

	t.Run("companyAdmin holds permissions implicitly", func(t *testing.T) {
		engine := NewEngine(&fakePerms{}, nil) // grants nothing
		route := Route{Action: "contact:delete", Scope: ScopeTenant, Permission: "contacts:delete"}
		if err := engine.Authorize(ctx, companyAdmin, route, nil); err != nil {
			t.Fatalf("companyAdmin denied: %v", err)
		}
	})

	t.Run("member needs the grant", func(t *testing.T) {
		route := Route{Action: "contact:delete", Scope: ScopeTenant, Permission: "contacts:delete"}

		denied := NewEngine(&fakePerms{}, nil)
		wantDenyCode(t, denied.Authorize(ctx, member, route, nil), CodePermissionDenied)

		granted := NewEngine(&fakePerms{granted: map[string]bool{"contacts:delete": true}}, nil)
		if err := granted.Authorize(ctx, member, route, nil); err != nil {
			t.Fatalf("granted member denied: %v", err)
		}
	})

	t.Run("permission source errors propagate", func(t *testing.T) {
		boom := errors.New("db down")
		engine := NewEngine(&fakePerms{err: boom}, nil)
		route := Route{Action: "contact:delete", Scope: ScopeTenant, Permission: "contacts:delete"}
		if err := engine.Authorize(ctx, member, route, nil); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped source error", err)
		}
	})
}

func TestAuthorizeDepartmentScope(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(&fakePerms{}, nil)
	tenant := uuid.New()
	deptA := uuid.New()
	deptB := uuid.New()
	route := Route{Action: "survey:get", Scope: ScopeTenant, SurveyScoped: true}

	t.Run("platform admin hard-denied from surveys", func(t *testing.T) {
		admin := &Principal{UserID: uuid.New(), Role: models.RoleAdmin}
		adminRoute := Route{Action: "survey:get", Scope: ScopeDual, SurveyScoped: true}
		wantDenyCode(t, engine.Authorize(ctx, admin, adminRoute, nil), CodeSurveyActionDenied)
	})

	t.Run("admin denial wins over the tenant scope code", func(t *testing.T) {
		// On tenant-scoped survey routes the survey-specific code must
		// surface, not the generic tenant separation denial.
		admin := &Principal{UserID: uuid.New(), Role: models.RoleAdmin}
		wantDenyCode(t, engine.Authorize(ctx, admin, route, nil), CodeSurveyActionDenied)
	})

	t.Run("member passes the route-level check without a target", func(t *testing.T) {
		p := &Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenant, DepartmentID: &deptA}
		if err := engine.Authorize(ctx, p, route, nil); err != nil {
			t.Fatalf("route-level check denied: %v", err)
		}
	})

	t.Run("member without department denied at the route", func(t *testing.T) {
		p := &Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenant}
		if err := engine.Authorize(ctx, p, route, nil); !errors.Is(err, ErrNotVisible) {
			t.Fatalf("err = %v, want ErrNotVisible", err)
		}
	})

	t.Run("companyAdmin sees own department and tenant-wide", func(t *testing.T) {
		p := &Principal{UserID: uuid.New(), Role: models.RoleCompanyAdmin, TenantID: &tenant, DepartmentID: &deptA}
		if err := engine.Authorize(ctx, p, route, &Target{TenantID: &tenant, DepartmentID: &deptA}); err != nil {
			t.Fatalf("own department denied: %v", err)
		}
		if err := engine.Authorize(ctx, p, route, &Target{TenantID: &tenant}); err != nil {
			t.Fatalf("tenant-wide survey denied: %v", err)
		}
		err := engine.Authorize(ctx, p, route, &Target{TenantID: &tenant, DepartmentID: &deptB})
		if !errors.Is(err, ErrNotVisible) {
			t.Fatalf("other department: err = %v, want ErrNotVisible", err)
		}
	})

	t.Run("cross-department access overrides", func(t *testing.T) {
		p := &Principal{UserID: uuid.New(), Role: models.RoleCompanyAdmin, TenantID: &tenant,
			DepartmentID: &deptA, CrossDepartmentSurveyAccess: true}
		if err := engine.Authorize(ctx, p, route, &Target{TenantID: &tenant, DepartmentID: &deptB}); err != nil {
			t.Fatalf("cross-department principal denied: %v", err)
		}
	})

	t.Run("member sees only own department", func(t *testing.T) {
		p := &Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenant, DepartmentID: &deptA}
		if err := engine.Authorize(ctx, p, route, &Target{TenantID: &tenant, DepartmentID: &deptA}); err != nil {
			t.Fatalf("own department denied: %v", err)
		}
		for name, target := range map[string]*Target{
			"other department":   {TenantID: &tenant, DepartmentID: &deptB},
			"tenant-wide survey": {TenantID: &tenant},
		} {
			if err := engine.Authorize(ctx, p, route, target); !errors.Is(err, ErrNotVisible) {
				t.Errorf("%s: err = %v, want ErrNotVisible", name, err)
			}
		}
	})

	t.Run("member without department sees nothing", func(t *testing.T) {
		p := &Principal{UserID: uuid.New(), Role: models.RoleMember, TenantID: &tenant}
		err := engine.Authorize(ctx, p, route, &Target{TenantID: &tenant, DepartmentID: &deptA})
		if !errors.Is(err, ErrNotVisible) {
			t.Fatalf("err = %v, want ErrNotVisible", err)
		}
	})
}

func TestAuthorizeAssign(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(&fakePerms{}, nil)
	tenant := uuid.New()
	dept := uuid.New()
	manager := uuid.New()
	route := Route{Action: "surveyAction:assign", Scope: ScopeTenant, SurveyScoped: true}

	base := func(userID uuid.UUID) *Principal {
		return &Principal{UserID: userID, Role: models.RoleCompanyAdmin, TenantID: &tenant, DepartmentID: &dept}
	}
	target := func() *Target {
		return &Target{TenantID: &tenant, DepartmentID: &dept, ActionManagerID: uuidPtr(manager)}
	}

	t.Run("action manager may assign", func(t *testing.T) {
		if err := engine.AuthorizeAssign(ctx, base(manager), route, target()); err != nil {
			t.Fatalf("manager denied: %v", err)
		}
	})

	t.Run("unrelated user may not", func(t *testing.T) {
		wantDenyCode(t, engine.AuthorizeAssign(ctx, base(uuid.New()), route, target()), CodeSurveyActionDenied)
	})

	t.Run("cross-department access may assign", func(t *testing.T) {
		p := base(uuid.New())
		p.CrossDepartmentSurveyAccess = true
		if err := engine.AuthorizeAssign(ctx, p, route, target()); err != nil {
			t.Fatalf("cross-department principal denied: %v", err)
		}
	})

	t.Run("allowed assigner list", func(t *testing.T) {
		assigner := uuid.New()
		tg := target()
		tg.ActionPermissions = &models.ActionPermissions{AllowedAssigners: []uuid.UUID{assigner}}
		if err := engine.AuthorizeAssign(ctx, base(assigner), route, tg); err != nil {
			t.Fatalf("listed assigner denied: %v", err)
		}
	})

	t.Run("department restriction pins the assigner", func(t *testing.T) {
		other := uuid.New()
		tg := target()
		tg.ActionPermissions = &models.ActionPermissions{RestrictToDepartment: &other}
		wantDenyCode(t, engine.AuthorizeAssign(ctx, base(manager), route, tg), CodeSurveyActionDenied)
	})
}
