// Package config loads the client configuration.
//
// Values come from built-in defaults, then the YAML file, then CATALOG_*
// environment variables, and are checked by Validate. Keep broker passwords
// and InfluxDB tokens in the environment rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
