// Package config loads swiftpath configuration: which backend to use, its
// credentials, the gateway served by `swiftpath serve` and logging.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. The selected profile from the profiles file
//  3. Configuration file(s) - multiple files merged left-to-right
//  4. Environment variables (SWIFTPATH_ prefix, plus OS_* for swift)
//  5. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"swiftpath.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// Every key maps to an environment variable with the SWIFTPATH_ prefix:
//   - backend.type → SWIFTPATH_BACKEND_TYPE
//   - local.database.dsn → SWIFTPATH_LOCAL_DATABASE_DSN
//   - auth.read → SWIFTPATH_AUTH_READ
//
// The swift section also reads the usual OpenStack variables when its own
// SWIFTPATH_SWIFT_* variable is unset: OS_USERNAME, OS_USER_ID, OS_PASSWORD,
// OS_PROJECT_NAME (or OS_TENANT_NAME), OS_PROJECT_ID, OS_AUTH_URL (or
// OS_AUTHENTICATION_URL), OS_STORAGE_URL, OS_REGION_NAME,
// OS_USER_DOMAIN_NAME, OS_PROJECT_DOMAIN_NAME and OS_AUTH_TOKEN.
//
// # Profiles
//
// `swiftpath configure` stores named profiles in ~/.swiftpath/profiles.yaml.
// SWIFTPATH_PROFILE (or the profile key) selects one; otherwise the profile
// marked default is used, if any.
//
// # Validation
//
// The common sections are always validated. Of the backend sections only
// the one named by backend.type is checked, so a swift-only deployment does
// not need an s3 endpoint.
package config
