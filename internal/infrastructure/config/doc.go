// Package config handles loading and validating the driver configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LIGHTSPEED_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords, InfluxDB tokens and the JWT secret should come from
//     environment variables rather than the file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Driver.SDK)
package config
