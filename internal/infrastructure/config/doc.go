// Package config handles loading and validating DoorOpener Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (actuator token, JWT secret, admin password) should be
//     set via environment variables, not committed to config.yaml
//   - The config file should have restricted permissions (0600)
//   - The [pins] base table holds plaintext PINs; treat the file accordingly
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load; hot-reload is out of scope
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Actuator.OpenEntity)
package config
