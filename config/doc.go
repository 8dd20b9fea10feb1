// Package config provides application configuration management.
//
// The config package loads the application's configuration from a YAML
// file, DATAAGENT_* environment variables and an optional .env file, and
// validates it. It covers the MCP transport, logging, the execution
// sandbox, dataset limits, the conversation store and telemetry.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox backend: %s\n", cfg.Sandbox.Backend)
package config
