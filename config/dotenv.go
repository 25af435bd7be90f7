package config

// LoadDotEnv loads .env.local then .env from the current directory into the
// process environment, for callers (the agentflow CLI) that need API keys
// and other secrets available before a config path is even known. It is a
// thin, cwd-scoped wrapper around the same loadEnvFiles helper Load uses
// against a config file's own directory; safe to call multiple times and a
// no-op if neither file exists.
func LoadDotEnv() error {
	return loadEnvFiles("")
}
