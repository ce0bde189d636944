// Package config loads the configuration of a price surface run.
//
// # Configuration Sources
//
// Values are resolved in order of precedence:
//
//	1. Command line flags applied by the caller (highest priority)
//	2. Environment variables with the MAIZE_ prefix
//	3. A YAML configuration file
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// Nested sections map to underscore-joined names:
//
//	MAIZE_PIPELINE_ANCHOR=Lilongwe
//	MAIZE_PIPELINE_SEASONAL_METHOD=additive
//	MAIZE_INTERPOLATION_METHODS=tps,idw,rf
//	MAIZE_INTERPOLATION_RESOLUTION=0.05
//	MAIZE_LOGGING_LEVEL=debug
//
// # Validation
//
// The merged configuration is validated with struct tags once the caller has
// applied its flag overrides. The anchor market has no default and must
// always be given.
package config
