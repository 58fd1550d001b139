package config

import "maps"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	// Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	redact(&out.Redis.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Server
	redact(&out.Server.APIKey)

	// RPC URLs often embed provider keys.
	if cfg.Venues.AMM.RPCOverrides != nil {
		out.Venues.AMM.RPCOverrides = make(map[string]string, len(cfg.Venues.AMM.RPCOverrides))
		for k, v := range cfg.Venues.AMM.RPCOverrides {
			redact(&v)
			out.Venues.AMM.RPCOverrides[k] = v
		}
	}

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	out.Throttle.ChainLimits = maps.Clone(cfg.Throttle.ChainLimits)
	out.Throttle.VenueLimits = maps.Clone(cfg.Throttle.VenueLimits)
	out.CostModel.TokenTransfer = maps.Clone(cfg.CostModel.TokenTransfer)
	out.CostModel.StableReturn = maps.Clone(cfg.CostModel.StableReturn)
	out.CostModel.MinTransfer = maps.Clone(cfg.CostModel.MinTransfer)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
