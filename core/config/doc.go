// Package config provides configuration management for the asset bank.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of the
// partial configurations.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Project: asset root, code module sources, build command, loop period (PROJECT_*)
//   - Server: HTTP port and API key (SERVER_*)
//   - Database: catalog mirror connection (DATABASE_*)
//   - Storage: S3/MinIO module archive (STORAGE_*)
//   - Log: logging level and format (LOG_*)
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Project.Root)
package config
