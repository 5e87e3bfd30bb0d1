// Package config handles loading and validating Emerald HWS configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling (vendor endpoints, session intervals)
//
// Security Considerations:
//   - The account password should be set via EMERALD_PASSWORD, not the file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	region, _ := cfg.AWSIoT.Region()
package config
