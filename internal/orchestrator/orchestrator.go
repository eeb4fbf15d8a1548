// Package orchestrator validates inbound jobs, routes them to a
// provider.Provider, and emits audit events. It holds no
// state beyond the provider handle and its initialized flag.
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/idempotency"
	"github.com/justengland/gatekeeper/internal/provider"
	"github.com/justengland/gatekeeper/internal/telemetry"
)

// AuditStore is the persistence surface the orchestrator needs from the
// audit log: append an event, and recover a session's username in lieu of
// a durable session map.
type AuditStore interface {
	Write(ctx context.Context, event domain.AuditEvent) error
	LookupUsernameBySession(ctx context.Context, sessionID string) (string, bool, error)
}

// Config bounds what the orchestrator will accept and generate.
type Config struct {
	MaxTTLMinutes    int
	DefaultConnLimit int
}

// Orchestrator is provider-agnostic: it only ever calls through the
// provider.Provider interface, so a second engine plugs in without any
// change here.
type Orchestrator struct {
	provider provider.Provider
	audit    AuditStore
	idem     *idempotency.Cache
	tracer   *telemetry.Tracer
	logger   zerolog.Logger
	cfg      Config

	connMu     sync.Mutex
	conn       provider.ConnectionInfo
	creds      provider.Credentials
	configured bool

	initOnce  sync.Once
	initErr   error
	closeOnce sync.Once
	closeErr  error
}

// New builds an Orchestrator. Call Initialize (or Configure, for lazy
// pool opening) before dispatching jobs.
func New(p provider.Provider, audit AuditStore, idem *idempotency.Cache, tracer *telemetry.Tracer, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: p,
		audit:    audit,
		idem:     idem,
		tracer:   tracer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Initialize records the admin connection and opens the provider's pool.
// Concurrent callers may race to invoke it; only the first call reaches
// the provider, and every caller observes its result.
func (o *Orchestrator) Initialize(ctx context.Context, conn provider.ConnectionInfo, creds provider.Credentials) error {
	o.Configure(conn, creds)
	return o.ensureInitialized(ctx)
}

// Configure records the admin connection without opening the pool; the
// first dispatched job initializes the provider on demand. First call
// wins.
func (o *Orchestrator) Configure(conn provider.ConnectionInfo, creds provider.Credentials) {
	o.connMu.Lock()
	defer o.connMu.Unlock()
	if !o.configured {
		o.conn = conn
		o.creds = creds
		o.configured = true
	}
}

// ensureInitialized opens the provider's pool on demand, so a job that
// arrives before Initialize was ever called still dispatches instead of
// failing with NOT_INITIALIZED. A no-op when the orchestrator
// was never given connection details, e.g. when the provider was
// initialized externally.
func (o *Orchestrator) ensureInitialized(ctx context.Context) error {
	o.connMu.Lock()
	configured := o.configured
	conn, creds := o.conn, o.creds
	o.connMu.Unlock()

	if !configured {
		return nil
	}
	o.initOnce.Do(func() {
		o.initErr = o.provider.Initialize(ctx, conn, creds)
	})
	return o.initErr
}

// RecordSession is a hook a future design can use to persist a durable
// session-to-username mapping without changing the provider contract. It
// is a no-op today: revoke resolves usernames through the audit trail
// instead.
func (o *Orchestrator) RecordSession(ctx context.Context, sessionID, username string) {}

// Dispatch decodes env, routes it to the matching handler, and returns one
// of domain.CreateSessionResult, domain.RevokeSessionResult, or
// domain.CleanupResult. A decode failure never reaches the provider; it
// is mapped straight to a failed result carrying VALIDATION_ERROR.
func (o *Orchestrator) Dispatch(ctx context.Context, env domain.JobEnvelope) (interface{}, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.dispatch",
		attribute.String("job.type", string(env.Type)),
		attribute.String("job.correlation_id", env.CorrelationID),
	)
	defer span.End()

	job, err := domain.DecodeJob(env)
	if err != nil {
		return o.validationFailure(env.Type, err), nil
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return o.providerFailure(env.Type, err), nil
	}

	switch j := job.(type) {
	case domain.CreateSessionJob:
		return o.dispatchCreate(ctx, j)
	case domain.RevokeSessionJob:
		return o.dispatchRevoke(ctx, j)
	case domain.CleanupJob:
		return o.dispatchCleanup(ctx, j)
	default:
		return nil, fmt.Errorf("orchestrator: unreachable job variant %T", job)
	}
}

func (o *Orchestrator) validationFailure(t domain.JobType, err error) interface{} {
	return o.failure(t, &domain.ResultError{Code: "VALIDATION_ERROR", Message: err.Error(), Retryable: false})
}

func (o *Orchestrator) providerFailure(t domain.JobType, err error) interface{} {
	return o.failure(t, providerErrToResult(err))
}

func (o *Orchestrator) failure(t domain.JobType, resultErr *domain.ResultError) interface{} {
	switch t {
	case domain.JobRevokeSession:
		return domain.RevokeSessionResult{Status: domain.SessionFailed, Error: resultErr}
	case domain.JobCleanup:
		return domain.CleanupResult{Status: "failed", CleanedCount: 0, Error: resultErr}
	default:
		return domain.CreateSessionResult{Status: domain.SessionFailed, Error: resultErr}
	}
}

func (o *Orchestrator) dispatchCreate(ctx context.Context, job domain.CreateSessionJob) (domain.CreateSessionResult, error) {
	if err := domain.ValidateTTL(job.TTLMinutes, o.cfg.MaxTTLMinutes); err != nil {
		return domain.CreateSessionResult{
			Status: domain.SessionFailed,
			Error:  &domain.ResultError{Code: "VALIDATION_ERROR", Message: err.Error(), Retryable: false},
		}, nil
	}

	var cached domain.CreateSessionResult
	if o.idem.Lookup(ctx, job.ID, &cached) {
		return cached, nil
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.create_session",
		attribute.String("target.host", job.Target.Host),
		attribute.String("target.database", job.Target.Database),
		attribute.String("role", string(job.Role)),
	)
	defer span.End()

	sessionID := "ses_" + randomHex(12)
	username := "gk_" + randomHex(12)
	password := randomSecret()

	o.logger.Info().
		Str("job_id", job.ID).
		Str("correlation_id", job.CorrelationID).
		Str("role", string(job.Role)).
		Int("ttl_minutes", job.TTLMinutes).
		Str("target_host", job.Target.Host).
		Int("target_port", job.Target.Port).
		Str("target_database", job.Target.Database).
		Str("requester_id", job.Requester.UserID).
		Msg("dispatching create_session")

	created, err := o.provider.CreateEphemeralUser(ctx, provider.CreateRequest{
		Name:            username,
		Password:        password,
		RolePack:        string(job.Role),
		TTLMinutes:      job.TTLMinutes,
		ConnectionLimit: o.cfg.DefaultConnLimit,
	})
	if err != nil {
		return domain.CreateSessionResult{
			SessionID: sessionID,
			Status:    domain.SessionFailed,
			Error:     providerErrToResult(err),
		}, nil
	}

	event := domain.AuditEvent{
		EventType:     domain.AuditSessionCreated,
		SessionID:     sessionID,
		Username:      username,
		CorrelationID: job.CorrelationID,
		EventData: map[string]interface{}{
			"jobId":           job.ID,
			"role":            string(job.Role),
			"ttlMinutes":      job.TTLMinutes,
			"requesterId":     job.Requester.UserID,
			"reason":          job.Reason,
			"targetHost":      job.Target.Host,
			"targetPort":      job.Target.Port,
			"targetDatabase":  job.Target.Database,
			"providerEngine":  o.provider.Engine(),
			"providerVersion": o.provider.Version(),
		},
	}
	if err := o.audit.Write(ctx, event); err != nil {
		o.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to write session.created audit event")
	}

	expiresAt := created.ExpiresAt
	result := domain.CreateSessionResult{
		SessionID: sessionID,
		Status:    domain.SessionReady,
		DSN:       created.DSN,
		ExpiresAt: &expiresAt,
		Username:  username,
	}
	o.idem.Store(ctx, job.ID, result)

	return result, nil
}

func (o *Orchestrator) dispatchRevoke(ctx context.Context, job domain.RevokeSessionJob) (domain.RevokeSessionResult, error) {
	var cached domain.RevokeSessionResult
	if o.idem.Lookup(ctx, job.ID, &cached) {
		return cached, nil
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.revoke_session", attribute.String("session.id", job.SessionID))
	defer span.End()

	username, found, err := o.audit.LookupUsernameBySession(ctx, job.SessionID)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", job.SessionID).Msg("audit lookup failed during revoke")
		return domain.RevokeSessionResult{
			Status: domain.SessionFailed,
			Error:  &domain.ResultError{Code: "REVOCATION_ERROR", Message: err.Error(), Retryable: true},
		}, nil
	}
	if !found {
		return domain.RevokeSessionResult{Status: domain.SessionNotFound}, nil
	}

	dropped, err := o.provider.DropUser(ctx, username)
	if err != nil {
		return domain.RevokeSessionResult{
			Status: domain.SessionFailed,
			Error:  &domain.ResultError{Code: "REVOCATION_ERROR", Message: err.Error(), Retryable: true},
		}, nil
	}
	if !dropped {
		result := domain.RevokeSessionResult{Status: domain.SessionNotFound}
		o.idem.Store(ctx, job.ID, result)
		return result, nil
	}

	event := domain.AuditEvent{
		EventType:     domain.AuditSessionRevoked,
		SessionID:     job.SessionID,
		Username:      username,
		CorrelationID: job.CorrelationID,
		EventData:     map[string]interface{}{"jobId": job.ID},
	}
	if err := o.audit.Write(ctx, event); err != nil {
		o.logger.Error().Err(err).Str("session_id", job.SessionID).Msg("failed to write session.revoked audit event")
	}

	result := domain.RevokeSessionResult{Status: domain.SessionRevoked}
	o.idem.Store(ctx, job.ID, result)

	o.logger.Info().Str("job_id", job.ID).Str("session_id", job.SessionID).Msg("session revoked")
	return result, nil
}

func (o *Orchestrator) dispatchCleanup(ctx context.Context, job domain.CleanupJob) (domain.CleanupResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.cleanup", attribute.Int("older_than_minutes", job.OlderThanMinutes))
	defer span.End()

	rows, err := o.provider.CleanupExpiredUsers(ctx, job.OlderThanMinutes)
	if err != nil {
		return domain.CleanupResult{Status: "failed", CleanedCount: 0, Error: providerErrToResult(err)}, nil
	}

	var cleanedNames []string
	for _, row := range rows {
		if row.Dropped {
			cleanedNames = append(cleanedNames, row.Name)
		}
	}

	if len(cleanedNames) > 0 {
		event := domain.AuditEvent{
			EventType:     domain.AuditSessionsCleaned,
			CorrelationID: job.CorrelationID,
			EventData: map[string]interface{}{
				"jobId":        job.ID,
				"cleanedCount": len(cleanedNames),
				"cleanedUsers": cleanedNames,
			},
		}
		if err := o.audit.Write(ctx, event); err != nil {
			o.logger.Error().Err(err).Msg("failed to write sessions.cleaned audit event")
		}
	}

	o.logger.Info().Str("job_id", job.ID).Int("cleaned_count", len(cleanedNames)).Msg("cleanup completed")
	return domain.CleanupResult{Status: "completed", CleanedCount: len(cleanedNames)}, nil
}

// Health proxies provider.HealthCheck, mapping its tri-state into
// ok/degraded/down and enriching the detail bag with the provider's tag
// and version.
func (o *Orchestrator) Health(ctx context.Context) (string, domain.Health, error) {
	health, err := o.provider.HealthCheck(ctx)
	if err != nil {
		return "down", domain.Health{}, err
	}

	status := "down"
	switch health.Status {
	case domain.HealthHealthy:
		status = "ok"
	case domain.HealthDegraded:
		status = "degraded"
	case domain.HealthUnhealthy:
		status = "down"
	}

	if health.Details == nil {
		health.Details = map[string]interface{}{}
	}
	health.Details["providerEngine"] = o.provider.Engine()
	health.Details["providerVersion"] = o.provider.Version()

	return status, health, nil
}

// Shutdown calls provider.Close once; subsequent calls are no-ops.
func (o *Orchestrator) Shutdown() error {
	o.closeOnce.Do(func() {
		o.closeErr = o.provider.Close()
	})
	return o.closeErr
}

func providerErrToResult(err error) *domain.ResultError {
	if pErr, ok := err.(*provider.Error); ok {
		return &domain.ResultError{Code: string(pErr.Code), Message: pErr.Message, Retryable: pErr.Retryable}
	}
	return &domain.ResultError{Code: string(provider.CodeInternal), Message: err.Error(), Retryable: true}
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)[:n]
}

// randomSecret generates an 18-byte (144-bit) secret, base64url-encoded
// to a 24-character string, satisfying the >=16 bytes of entropy /
// >=24 chars requirement.
func randomSecret() string {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
