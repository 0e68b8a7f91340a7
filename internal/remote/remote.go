// Package remote defines the data and control contracts at the vendor API
// boundary: credential acquisition, system enumeration, and the snapshot
// fetch itself.
//
// Reconciliation treats everything here as an external collaborator. The
// engine depends only on the interfaces; the HTTP client in this package is
// the default production implementation.
package remote

import "context"

// System identifies one target system (tenant/company scope) to reconcile.
type System struct {
	ID    string
	Label string
}

// Credential is an access token for one system's API session.
type Credential struct {
	Token string
}

// TokenProvider acquires an access credential for a target system.
//
// Reconciliation always passes forceRefresh=true: token lifetime is shorter
// than a typical batch window, so credentials are never cached across runs.
type TokenProvider interface {
	Acquire(ctx context.Context, systemID string, forceRefresh bool) (Credential, error)
}

// Directory enumerates the systems to process in a batch.
type Directory interface {
	ListActive(ctx context.Context) ([]System, error)
}

// Query names a full-snapshot request: the target entity type, the explicit
// field list, and the flag disabling paging limits. A snapshot query always
// asks for the complete dataset in one response.
type Query struct {
	Entity   string   `json:"entity"`
	Fields   []string `json:"fields"`
	NoPaging bool     `json:"noPaging"`
}

// StaticTokens is a TokenProvider backed by preconfigured per-system tokens.
// Static tokens have nothing to renew, so forceRefresh is a no-op.
type StaticTokens map[string]string

// Acquire implements TokenProvider.
func (s StaticTokens) Acquire(_ context.Context, systemID string, _ bool) (Credential, error) {
	token, ok := s[systemID]
	if !ok {
		return Credential{}, &CredentialError{SystemID: systemID, Reason: "no token configured"}
	}
	return Credential{Token: token}, nil
}

// StaticDirectory is a Directory backed by a fixed system list.
type StaticDirectory []System

// ListActive implements Directory.
func (d StaticDirectory) ListActive(_ context.Context) ([]System, error) {
	out := make([]System, len(d))
	copy(out, d)
	return out, nil
}

// CredentialError indicates that a credential could not be acquired for a
// system.
type CredentialError struct {
	SystemID string
	Reason   string
}

func (e *CredentialError) Error() string {
	return "credential for system " + e.SystemID + ": " + e.Reason
}
