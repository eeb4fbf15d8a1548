package domain

import "testing"

func TestDecodeJob_CreateSession_AppliesDefaults(t *testing.T) {
	env := JobEnvelope{
		ID:            "job-1",
		CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8",
		Type:          JobCreateSession,
		Target:        &Target{Host: "db.internal", Port: 5432, Database: "appdb"},
		Role:          RoleRead,
		TTLMinutes:    15,
		Requester:     &Requester{UserID: "u1"},
	}

	job, err := DecodeJob(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	create, ok := job.(CreateSessionJob)
	if !ok {
		t.Fatalf("expected a CreateSessionJob, got %T", job)
	}
	if create.Target.SSLMode != "prefer" {
		t.Fatalf("expected sslMode to default to prefer, got %q", create.Target.SSLMode)
	}
}

func TestDecodeJob_CreateSession_MissingTarget(t *testing.T) {
	env := JobEnvelope{
		ID:            "job-1",
		CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8",
		Type:          JobCreateSession,
		Role:          RoleRead,
		TTLMinutes:    15,
		Requester:     &Requester{UserID: "u1"},
	}

	if _, err := DecodeJob(env); err == nil {
		t.Fatalf("expected a validation error for a missing target")
	}
}

func TestDecodeJob_Cleanup_DefaultsOlderThanMinutes(t *testing.T) {
	env := JobEnvelope{ID: "job-2", CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8", Type: JobCleanup}

	job, err := DecodeJob(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cleanup, ok := job.(CleanupJob)
	if !ok {
		t.Fatalf("expected a CleanupJob, got %T", job)
	}
	if cleanup.OlderThanMinutes != DefaultOlderThanMinutes {
		t.Fatalf("expected default older_than_minutes=%d, got %d", DefaultOlderThanMinutes, cleanup.OlderThanMinutes)
	}
}

func TestDecodeJob_Cleanup_RejectsNegative(t *testing.T) {
	negative := -1
	env := JobEnvelope{ID: "job-3", CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8", Type: JobCleanup, OlderThanMins: &negative}

	if _, err := DecodeJob(env); err == nil {
		t.Fatalf("expected a validation error for a negative older_than_minutes")
	}
}

func TestDecodeJob_RevokeSession_RequiresSessionID(t *testing.T) {
	env := JobEnvelope{ID: "job-4", CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8", Type: JobRevokeSession}

	if _, err := DecodeJob(env); err == nil {
		t.Fatalf("expected a validation error for a missing sessionId")
	}
}

func TestDecodeJob_UnknownType(t *testing.T) {
	env := JobEnvelope{ID: "job-5", CorrelationID: "c07a0c9b-7f6d-4b8f-8b0c-1d8b9eb9f4f8", Type: "not_a_type"}

	if _, err := DecodeJob(env); err == nil {
		t.Fatalf("expected a validation error for an unknown job type")
	}
}
