// Package config handles loading and validating the radio gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (RADIOGW_*)
//   - Validation of required fields, including the LoRa key length
//   - Default value handling
//
// Security Considerations:
//   - The LoRa key and broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.LoRa.Transport)
package config
