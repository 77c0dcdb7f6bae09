// Package providers groups the identity-verification provider integrations.
// Each subpackage implements core.ProviderClient for one vendor API.
package providers
