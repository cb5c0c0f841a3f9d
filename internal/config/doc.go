// Package config loads the configuration of the mass upload service and
// its command line tool.
//
// # Configuration Sources
//
// Configuration is layered from the following sources, later ones winning:
//
//	1. Default values (Default)
//	2. A YAML file named by MASSUPLOAD_CONFIG_FILE, or config.yaml when present
//	3. Environment variables, after merging a .env file if one exists
//
// # Environment Variables
//
// Variables follow the pattern MASSUPLOAD_<SECTION>_<FIELD>:
//
//	MASSUPLOAD_SERVER_PORT=8080
//	MASSUPLOAD_DATABASE_DRIVER=postgres
//	MASSUPLOAD_DATABASE_DSN=postgres://massupload@localhost/massupload?sslmode=disable
//	MASSUPLOAD_UPLOAD_WORKERS=4
//	MASSUPLOAD_LOGGING_LEVEL=debug
//
// # Validation
//
// The loaded configuration is checked with validator struct tags: ports and
// sizes are range checked, enumerations such as the database driver and the
// log output are restricted to their known values.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
