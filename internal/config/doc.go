// Package config loads, parses, and validates configuration for the studio
// server and the studio client from environment variables (SCRY_ prefix) and
// an optional config.yaml. Settings are grouped into typed sections so each
// component receives only what it needs.
package config
