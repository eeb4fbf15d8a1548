package postgres

import (
	"strings"

	"github.com/justengland/gatekeeper/internal/provider"
)

// classifyCreateErr maps a substring in the helper routine's RAISE EXCEPTION
// message to a stable provider.Code. The routine itself carries the
// authoritative validation; this only translates its vocabulary into the
// machine-readable taxonomy callers branch on.
func classifyCreateErr(err error) *provider.Error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "name_exists"):
		return provider.NewError(engineTag, provider.CodeUserExists, false, "principal already exists: %v", err)
	case strings.Contains(msg, "unknown_role_pack"):
		return provider.NewError(engineTag, provider.CodeRoleNotFound, false, "unknown role pack: %v", err)
	case strings.Contains(msg, "invalid_name"), strings.Contains(msg, "expired_time"):
		return provider.NewError(engineTag, provider.CodeUserCreateFailed, false, "invalid create request: %v", err)
	default:
		return provider.NewError(engineTag, provider.CodeUserCreateFailed, true, "create ephemeral user: %v", err)
	}
}

func classifyDropErr(err error) *provider.Error {
	msg := err.Error()
	if strings.Contains(msg, "invalid_name") {
		return provider.NewError(engineTag, provider.CodeUserDropFailed, false, "invalid drop request: %v", err)
	}
	return provider.NewError(engineTag, provider.CodeUserDropFailed, true, "drop user: %v", err)
}
