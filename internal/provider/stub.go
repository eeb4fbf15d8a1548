package provider

import (
	"context"

	"github.com/justengland/gatekeeper/internal/domain"
)

// StubFactory returns a Factory whose Provider raises NOT_IMPLEMENTED from
// every operation that can fail; Engine, Version, Close and GenerateDSN
// answer without error. Other database engines are intentionally absent from
// this milestone's core; registering a stub keeps the registry's
// catalog accurate (GetSupportedTypes lists the engine) while making clear
// that attempting to use it fails predictably rather than with
// PROVIDER_NOT_FOUND, so callers can distinguish "unknown engine" from
// "known engine, not yet built".
func StubFactory(engine string) Factory {
	return func() Provider { return &stub{engine: engine} }
}

type stub struct{ engine string }

func (s *stub) notImplemented() error {
	return NewError(s.engine, CodeNotImplemented, false, "provider %q is not implemented in this milestone", s.engine)
}

func (s *stub) Engine() string  { return s.engine }
func (s *stub) Version() string { return "unimplemented" }
func (s *stub) Close() error    { return nil }

func (s *stub) GenerateDSN(ConnectionInfo, string, string) string { return "" }

func (s *stub) Initialize(context.Context, ConnectionInfo, Credentials) error {
	return s.notImplemented()
}

func (s *stub) HealthCheck(context.Context) (domain.Health, error) {
	return domain.Health{}, s.notImplemented()
}

func (s *stub) CreateEphemeralUser(context.Context, CreateRequest) (CreateResult, error) {
	return CreateResult{}, s.notImplemented()
}

func (s *stub) DropUser(context.Context, string) (bool, error) {
	return false, s.notImplemented()
}

func (s *stub) ListEphemeralUsers(context.Context) ([]domain.EphemeralUser, error) {
	return nil, s.notImplemented()
}

func (s *stub) CleanupExpiredUsers(context.Context, int) ([]domain.CleanupRow, error) {
	return nil, s.notImplemented()
}

func (s *stub) GetAvailableRolePacks(context.Context) ([]domain.RolePack, error) {
	return nil, s.notImplemented()
}

func (s *stub) InstallRolePack(context.Context, domain.RolePack) error {
	return s.notImplemented()
}

func (s *stub) TestConnection(context.Context, string) error {
	return s.notImplemented()
}
