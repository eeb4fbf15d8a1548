package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/justengland/gatekeeper/internal/config"
	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/idempotency"
	"github.com/justengland/gatekeeper/internal/provider"
	"github.com/justengland/gatekeeper/internal/telemetry"
)

type fakeProvider struct {
	MockInitialize      func(ctx context.Context, conn provider.ConnectionInfo, creds provider.Credentials) error
	MockHealthCheck     func(ctx context.Context) (domain.Health, error)
	MockCreateEphemeral func(ctx context.Context, req provider.CreateRequest) (provider.CreateResult, error)
	MockDropUser        func(ctx context.Context, name string) (bool, error)
	MockCleanupExpired  func(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error)

	initCalls int
	closed    bool
}

func (f *fakeProvider) Initialize(ctx context.Context, conn provider.ConnectionInfo, creds provider.Credentials) error {
	f.initCalls++
	if f.MockInitialize != nil {
		return f.MockInitialize(ctx, conn, creds)
	}
	return nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (domain.Health, error) {
	return f.MockHealthCheck(ctx)
}

func (f *fakeProvider) CreateEphemeralUser(ctx context.Context, req provider.CreateRequest) (provider.CreateResult, error) {
	return f.MockCreateEphemeral(ctx, req)
}

func (f *fakeProvider) DropUser(ctx context.Context, name string) (bool, error) {
	return f.MockDropUser(ctx, name)
}

func (f *fakeProvider) ListEphemeralUsers(ctx context.Context) ([]domain.EphemeralUser, error) {
	return nil, nil
}

func (f *fakeProvider) CleanupExpiredUsers(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error) {
	return f.MockCleanupExpired(ctx, olderThanMinutes)
}

func (f *fakeProvider) GetAvailableRolePacks(ctx context.Context) ([]domain.RolePack, error) {
	return nil, nil
}

func (f *fakeProvider) InstallRolePack(ctx context.Context, pack domain.RolePack) error { return nil }

func (f *fakeProvider) GenerateDSN(conn provider.ConnectionInfo, name, password string) string {
	return "postgresql://" + name + "@" + conn.Host
}

func (f *fakeProvider) TestConnection(ctx context.Context, dsn string) error { return nil }

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProvider) Engine() string  { return "postgresql" }
func (f *fakeProvider) Version() string { return "pg-1.0.0" }

type fakeAuditStore struct {
	MockWrite                   func(ctx context.Context, event domain.AuditEvent) error
	MockLookupUsernameBySession func(ctx context.Context, sessionID string) (string, bool, error)

	written []domain.AuditEvent
}

func (f *fakeAuditStore) Write(ctx context.Context, event domain.AuditEvent) error {
	f.written = append(f.written, event)
	if f.MockWrite != nil {
		return f.MockWrite(ctx, event)
	}
	return nil
}

func (f *fakeAuditStore) LookupUsernameBySession(ctx context.Context, sessionID string) (string, bool, error) {
	return f.MockLookupUsernameBySession(ctx, sessionID)
}

func testOrchestrator(p *fakeProvider, a *fakeAuditStore) *Orchestrator {
	logger := zerolog.Nop()
	tracer, err := telemetry.New(context.Background(), telemetryDisabledConfig(), logger)
	if err != nil {
		panic(err)
	}
	idem := idempotency.New(nil, logger)
	return New(p, a, idem, tracer, Config{MaxTTLMinutes: 60, DefaultConnLimit: 2}, logger)
}

func validCreateEnvelope() domain.JobEnvelope {
	return domain.JobEnvelope{
		ID:            "job-1",
		CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8",
		Type:          domain.JobCreateSession,
		Target:        &domain.Target{Host: "db.internal", Port: 5432, Database: "appdb"},
		Role:          domain.RoleRead,
		TTLMinutes:    30,
		Requester:     &domain.Requester{UserID: "user-1"},
		Reason:        "debugging an incident",
	}
}

func TestDispatchCreateSession_Success(t *testing.T) {
	p := &fakeProvider{
		MockCreateEphemeral: func(ctx context.Context, req provider.CreateRequest) (provider.CreateResult, error) {
			if req.RolePack != string(domain.RoleRead) {
				t.Fatalf("unexpected role pack %q", req.RolePack)
			}
			return provider.CreateResult{
				Name:      req.Name,
				DSN:       "postgresql://" + req.Name + "@db.internal/appdb",
				ExpiresAt: time.Now().Add(30 * time.Minute),
			}, nil
		},
	}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	result, err := o.Dispatch(context.Background(), validCreateEnvelope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, ok := result.(domain.CreateSessionResult)
	if !ok {
		t.Fatalf("expected domain.CreateSessionResult, got %T", result)
	}
	if created.Status != domain.SessionReady {
		t.Fatalf("expected status ready, got %s", created.Status)
	}
	if created.SessionID == "" || created.Username == "" || created.DSN == "" {
		t.Fatalf("expected populated session fields, got %+v", created)
	}
	if len(audit.written) != 1 || audit.written[0].EventType != domain.AuditSessionCreated {
		t.Fatalf("expected one session.created audit event, got %+v", audit.written)
	}
}

func TestDispatchCreateSession_ValidationFailure(t *testing.T) {
	p := &fakeProvider{}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	env := validCreateEnvelope()
	env.Role = "not-a-role"

	result, err := o.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, ok := result.(domain.CreateSessionResult)
	if !ok {
		t.Fatalf("expected domain.CreateSessionResult, got %T", result)
	}
	if created.Status != domain.SessionFailed || created.Error == nil || created.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected a VALIDATION_ERROR failure, got %+v", created)
	}
	if len(audit.written) != 0 {
		t.Fatalf("expected no audit events for a rejected job, got %+v", audit.written)
	}
}

func TestDispatchCreateSession_TTLOverMax(t *testing.T) {
	p := &fakeProvider{}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	env := validCreateEnvelope()
	env.TTLMinutes = 999

	result, err := o.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created := result.(domain.CreateSessionResult)
	if created.Status != domain.SessionFailed || created.Error.Retryable {
		t.Fatalf("expected a non-retryable TTL failure, got %+v", created)
	}
}

func TestDispatchCreateSession_ProviderError(t *testing.T) {
	p := &fakeProvider{
		MockCreateEphemeral: func(ctx context.Context, req provider.CreateRequest) (provider.CreateResult, error) {
			return provider.CreateResult{}, &provider.Error{Code: provider.CodeUserExists, Message: "name_exists", Retryable: false}
		},
	}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	result, err := o.Dispatch(context.Background(), validCreateEnvelope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created := result.(domain.CreateSessionResult)
	if created.Status != domain.SessionFailed || created.Error.Code != string(provider.CodeUserExists) {
		t.Fatalf("expected provider error surfaced, got %+v", created)
	}
	if len(audit.written) != 0 {
		t.Fatalf("expected no audit event when the provider call fails, got %+v", audit.written)
	}
}

func TestDispatchCreateSession_NoReplayWithoutRedis(t *testing.T) {
	calls := 0
	p := &fakeProvider{
		MockCreateEphemeral: func(ctx context.Context, req provider.CreateRequest) (provider.CreateResult, error) {
			calls++
			return provider.CreateResult{Name: req.Name, DSN: "dsn", ExpiresAt: time.Now()}, nil
		},
	}
	audit := &fakeAuditStore{}
	logger := zerolog.Nop()
	tracer, _ := telemetry.New(context.Background(), telemetryDisabledConfig(), logger)
	redisFreeCache := idempotency.New(nil, logger)
	o := New(p, audit, redisFreeCache, tracer, Config{MaxTTLMinutes: 60, DefaultConnLimit: 2}, logger)

	env := validCreateEnvelope()
	if _, err := o.Dispatch(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Dispatch(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Without a live Redis connection the idempotency cache always misses,
	// so the provider is invoked both times; this just pins that behavior
	// rather than asserting a false sense of replay protection.
	if calls != 2 {
		t.Fatalf("expected 2 provider calls without redis, got %d", calls)
	}
}

func TestDispatchRevokeSession_Success(t *testing.T) {
	p := &fakeProvider{
		MockDropUser: func(ctx context.Context, name string) (bool, error) {
			if name != "gk_abc123" {
				t.Fatalf("unexpected username %q", name)
			}
			return true, nil
		},
	}
	audit := &fakeAuditStore{
		MockLookupUsernameBySession: func(ctx context.Context, sessionID string) (string, bool, error) {
			return "gk_abc123", true, nil
		},
	}
	o := testOrchestrator(p, audit)

	env := domain.JobEnvelope{ID: "job-2", CorrelationID: "9f4b6e2a-1c3d-4e5f-8a9b-0c1d2e3f4a5b", Type: domain.JobRevokeSession, SessionID: "ses-1"}
	result, err := o.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	revoked := result.(domain.RevokeSessionResult)
	if revoked.Status != domain.SessionRevoked {
		t.Fatalf("expected revoked, got %+v", revoked)
	}
	if len(audit.written) != 1 || audit.written[0].EventType != domain.AuditSessionRevoked {
		t.Fatalf("expected one session.revoked audit event, got %+v", audit.written)
	}
}

func TestDispatchRevokeSession_UnknownSession(t *testing.T) {
	p := &fakeProvider{}
	audit := &fakeAuditStore{
		MockLookupUsernameBySession: func(ctx context.Context, sessionID string) (string, bool, error) {
			return "", false, nil
		},
	}
	o := testOrchestrator(p, audit)

	env := domain.JobEnvelope{ID: "job-3", CorrelationID: "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d", Type: domain.JobRevokeSession, SessionID: "ses-unknown"}
	result, err := o.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	revoked := result.(domain.RevokeSessionResult)
	if revoked.Status != domain.SessionNotFound {
		t.Fatalf("expected not_found, got %+v", revoked)
	}
}

func TestDispatchCleanup_Success(t *testing.T) {
	p := &fakeProvider{
		MockCleanupExpired: func(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error) {
			if olderThanMinutes != 10 {
				t.Fatalf("unexpected olderThanMinutes %d", olderThanMinutes)
			}
			return []domain.CleanupRow{
				{Name: "gk_one", WasExpired: true, Dropped: true},
				{Name: "gk_two", WasExpired: true, Dropped: false, ErrorMessage: "connection busy"},
			}, nil
		},
	}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	olderThan := 10
	env := domain.JobEnvelope{ID: "job-4", CorrelationID: "2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6e", Type: domain.JobCleanup, OlderThanMins: &olderThan}
	result, err := o.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cleanup := result.(domain.CleanupResult)
	if cleanup.Status != "completed" || cleanup.CleanedCount != 1 {
		t.Fatalf("expected 1 cleaned session, got %+v", cleanup)
	}
	if len(audit.written) != 1 || audit.written[0].EventType != domain.AuditSessionsCleaned {
		t.Fatalf("expected one sessions.cleaned audit event, got %+v", audit.written)
	}
}

func TestDispatchCleanup_NothingCleaned(t *testing.T) {
	p := &fakeProvider{
		MockCleanupExpired: func(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error) {
			return nil, nil
		},
	}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	env := domain.JobEnvelope{ID: "job-5", CorrelationID: "3c4d5e6f-7a8b-4c9d-0e1f-2a3b4c5d6e7f", Type: domain.JobCleanup}
	result, err := o.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cleanup := result.(domain.CleanupResult)
	if cleanup.CleanedCount != 0 {
		t.Fatalf("expected 0 cleaned, got %+v", cleanup)
	}
	if len(audit.written) != 0 {
		t.Fatalf("expected no audit event when nothing was cleaned, got %+v", audit.written)
	}
}

func TestInitialize_OnlyCallsProviderOnce(t *testing.T) {
	p := &fakeProvider{}
	audit := &fakeAuditStore{}
	o := testOrchestrator(p, audit)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.Initialize(context.Background(), provider.ConnectionInfo{}, provider.Credentials{})
		}()
	}
	wg.Wait()

	if p.initCalls != 1 {
		t.Fatalf("expected exactly one underlying Initialize call, got %d", p.initCalls)
	}
}

func TestDispatch_InitializesOnDemand(t *testing.T) {
	p := &fakeProvider{
		MockCleanupExpired: func(ctx context.Context, olderThanMinutes int) ([]domain.CleanupRow, error) {
			return nil, nil
		},
	}
	o := testOrchestrator(p, &fakeAuditStore{})
	o.Configure(provider.ConnectionInfo{Host: "db.internal"}, provider.Credentials{Username: "gatekeeper_admin"})

	env := domain.JobEnvelope{ID: "job-6", CorrelationID: "4d5e6f7a-8b9c-4d0e-1f2a-3b4c5d6e7f8a", Type: domain.JobCleanup}
	if _, err := o.Dispatch(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.initCalls != 1 {
		t.Fatalf("expected the first dispatch to initialize the provider, got %d init calls", p.initCalls)
	}
}

func TestDispatch_InitFailureSurfacesAsFailedResult(t *testing.T) {
	p := &fakeProvider{
		MockInitialize: func(ctx context.Context, conn provider.ConnectionInfo, creds provider.Credentials) error {
			return &provider.Error{Code: provider.CodeProviderInitError, Message: "ping failed", Retryable: true}
		},
	}
	o := testOrchestrator(p, &fakeAuditStore{})
	o.Configure(provider.ConnectionInfo{Host: "db.internal"}, provider.Credentials{})

	result, err := o.Dispatch(context.Background(), validCreateEnvelope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created := result.(domain.CreateSessionResult)
	if created.Status != domain.SessionFailed || created.Error.Code != string(provider.CodeProviderInitError) || !created.Error.Retryable {
		t.Fatalf("expected a retryable PROVIDER_INIT_ERROR failure, got %+v", created)
	}
}

func TestHealth_MapsProviderStatus(t *testing.T) {
	cases := map[string]struct {
		providerStatus domain.HealthStatus
		providerErr    error
		wantStatus     string
		wantErr        bool
	}{
		"healthy maps to ok": {
			providerStatus: domain.HealthHealthy,
			wantStatus:     "ok",
		},
		"degraded stays degraded": {
			providerStatus: domain.HealthDegraded,
			wantStatus:     "degraded",
		},
		"unhealthy maps to down": {
			providerStatus: domain.HealthUnhealthy,
			wantStatus:     "down",
		},
		"provider error surfaces as down": {
			providerErr: errors.New("connection refused"),
			wantStatus:  "down",
			wantErr:     true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{
				MockHealthCheck: func(ctx context.Context) (domain.Health, error) {
					if tc.providerErr != nil {
						return domain.Health{}, tc.providerErr
					}
					return domain.Health{Status: tc.providerStatus}, nil
				},
			}
			o := testOrchestrator(p, &fakeAuditStore{})

			status, health, err := o.Health(context.Background())
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				if status != tc.wantStatus {
					t.Fatalf("expected status %q, got %q", tc.wantStatus, status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status != tc.wantStatus {
				t.Fatalf("expected status %q, got %q", tc.wantStatus, status)
			}
			if health.Details["providerEngine"] != "postgresql" {
				t.Fatalf("expected provider engine detail, got %+v", health.Details)
			}
		})
	}
}

func TestShutdown_ClosesProviderOnce(t *testing.T) {
	p := &fakeProvider{}
	o := testOrchestrator(p, &fakeAuditStore{})

	if err := o.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.closed {
		t.Fatalf("expected provider to be closed")
	}
}

func telemetryDisabledConfig() config.OtelConfig {
	return config.OtelConfig{
		Enabled:        false,
		ServiceName:    "gatekeeper-test",
		SampleFraction: 0,
	}
}
