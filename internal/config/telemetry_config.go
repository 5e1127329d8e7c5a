package config

type TelemetryConfig interface {
	GetOTLPEndpoint() string
}

var _ TelemetryConfig = (*mainConfig)(nil)

// GetOTLPEndpoint is the OTLP trace collector address. Empty disables
// exporting entirely.
func (c *mainConfig) GetOTLPEndpoint() string {
	return c.vars.OTLPEndpoint
}
