// Package config handles loading and validating the EzVille bridge's
// configuration.
//
// This package manages:
//   - Loading configuration from a JSON file
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Gateway and MQTT passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup; there is no hot-reload
//     and no persistence across restarts
//
// Usage:
//
//	cfg, err := config.Load("configs/config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.EW11Server)
package config
