// Package core holds the verification domain model, the session state
// machine, structured error kinds, configuration and the storage and
// provider contracts. Adapters depend on core; core never imports them.
package core
