package domain

// DecodeJob validates a JobEnvelope and turns it into a concrete Job
// variant, applying defaults during decoding: sslMode defaults to
// "prefer" and olderThanMinutes defaults to 5.
func DecodeJob(env JobEnvelope) (Job, error) {
	if err := ValidateJobID(env.ID); err != nil {
		return nil, err
	}
	if err := ValidateCorrelationID(env.CorrelationID); err != nil {
		return nil, err
	}

	switch env.Type {
	case JobCreateSession:
		if env.Target == nil {
			return nil, &ValidationError{Field: "target", Message: "is required"}
		}
		if err := ValidateRole(env.Role); err != nil {
			return nil, err
		}
		if err := ValidateReason(env.Reason); err != nil {
			return nil, err
		}
		if env.Requester == nil || env.Requester.UserID == "" {
			return nil, &ValidationError{Field: "requester.userId", Message: "is required"}
		}

		target := *env.Target
		target.SSLMode = target.SSLModeOrDefault()

		return CreateSessionJob{
			ID:            env.ID,
			CorrelationID: env.CorrelationID,
			Target:        target,
			Role:          env.Role,
			TTLMinutes:    env.TTLMinutes,
			Requester:     *env.Requester,
			Reason:        env.Reason,
		}, nil

	case JobRevokeSession:
		if len(env.SessionID) < 1 {
			return nil, &ValidationError{Field: "sessionId", Message: "is required"}
		}
		return RevokeSessionJob{
			ID:            env.ID,
			CorrelationID: env.CorrelationID,
			SessionID:     env.SessionID,
		}, nil

	case JobCleanup:
		olderThan := DefaultOlderThanMinutes
		if env.OlderThanMins != nil {
			if *env.OlderThanMins < 0 {
				return nil, &ValidationError{Field: "olderThanMinutes", Message: "must be >= 0"}
			}
			olderThan = *env.OlderThanMins
		}
		return CleanupJob{
			ID:               env.ID,
			CorrelationID:    env.CorrelationID,
			OlderThanMinutes: olderThan,
		}, nil

	default:
		return nil, &ValidationError{Field: "type", Message: "must be one of create_session, revoke_session, cleanup"}
	}
}
