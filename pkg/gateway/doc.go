// Package gateway implements the Command Gateway: the
// single external write surface in front of the Horology Kernel. It
// authenticates callers through a pluggable CredentialResolver chain,
// enforces per-tenant quotas with sliding-window ring buffers, rejects
// cross-tenant requests, normalises scheduling input onto the server
// clock, and forwards admitted commands to the kernel leader.
//
// Every credential kind resolves to one AuthContext shape through one
// composable chain, so handlers never branch on how a caller
// authenticated.
package gateway
