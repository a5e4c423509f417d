package domain

// PrincipalKind tags the two kinds of authenticated callers.
type PrincipalKind string

const (
	PrincipalAdmin  PrincipalKind = "admin"
	PrincipalHolder PrincipalKind = "holder"
)

// Principal is the authenticated caller, derived from the session token.
// Admins are unrestricted; holders carry their (holder_id, tenant_id) pair.
type Principal struct {
	Kind     PrincipalKind
	HolderID string
	TenantID string
	Subject  string
}

// AdminPrincipal builds an unrestricted principal.
func AdminPrincipal(subject string) Principal {
	return Principal{Kind: PrincipalAdmin, Subject: subject}
}

// HolderPrincipal builds a principal restricted to one holder identity.
func HolderPrincipal(holderID, tenantID string) Principal {
	return Principal{Kind: PrincipalHolder, HolderID: holderID, TenantID: tenantID, Subject: holderID}
}

func (p Principal) IsAdmin() bool { return p.Kind == PrincipalAdmin }
