package authz

import "errors"

// Deny codes surfaced as machine-readable 403 codes by the HTTP layer.
const (
	CodePlatformAccessDenied = "PLATFORM_ACCESS_DENIED"
	CodeTenantAccessDenied   = "TENANT_ACCESS_DENIED"
	CodeTenantOwnership      = "TENANT_OWNERSHIP_DENIED"
	CodeNoTenantContext      = "NO_TENANT_CONTEXT"
	CodeRoleNotAuthorized    = "ROLE_NOT_AUTHORIZED"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeSurveyActionDenied   = "SURVEY_ACTION_DENIED"
)

// ErrUnauthenticated means no principal was presented.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrNotVisible means the target is outside the principal's scope. The HTTP
// layer renders it as 404 so cross-tenant probes cannot distinguish a denied
// row from an absent one.
var ErrNotVisible = errors.New("target not visible")

// DenyError is an authorization denial with a machine code.
type DenyError struct {
	Code   string
	Reason string
}

func (e *DenyError) Error() string { return e.Reason }

func deny(code, reason string) *DenyError {
	return &DenyError{Code: code, Reason: reason}
}

// AsDeny extracts a DenyError from err, if any.
func AsDeny(err error) (*DenyError, bool) {
	var de *DenyError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
