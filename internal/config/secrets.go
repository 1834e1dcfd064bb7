package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Redis.Password)
	redact(&out.Server.JWTSecret)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Aggregator.Venues = copyStrings(cfg.Aggregator.Venues)
	out.Aggregator.Coins = copyStrings(cfg.Aggregator.Coins)
	out.Triangular.Venues = copyStrings(cfg.Triangular.Venues)
	out.Triangular.Coins = copyStrings(cfg.Triangular.Coins)
	out.Server.CORSOrigins = copyStrings(cfg.Server.CORSOrigins)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
