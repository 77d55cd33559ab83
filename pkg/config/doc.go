// Package config defines the runtime configuration for the SDK: the wallet
// connection URI, local storage location, reward pricing, reconciliation
// schedule, and per-operation timeouts. It provides validation, defaulting
// helpers, and environment loading.
package config
