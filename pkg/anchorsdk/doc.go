// Package anchorsdk bootstraps the SDK's clients from an explicit Config
// value or from environment variables. Configuration is constructed once at
// process start and passed into the components; there is no ambient global.
package anchorsdk
