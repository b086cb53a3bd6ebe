package config

// RateLimit bounds JSON-RPC requests per client source. A zero
// RequestsPerMinute disables the limiter.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	ServiceName string  `toml:"ServiceName"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// RPCAuth requires a bearer token for escrow_submitCall. The HS256 secret is
// read from the environment variable named by SecretEnv; leaving SecretEnv
// empty disables authentication.
type RPCAuth struct {
	SecretEnv        string `toml:"SecretEnv"`
	Issuer           string `toml:"Issuer"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds"`
}
