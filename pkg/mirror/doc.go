// Package mirror is a read-only client for the Hedera mirror node REST API.
// It resolves anchor topics and the consensus messages submitted to them.
// Non-2xx responses surface as *StatusError so callers can tell a missing
// entity from a node that is temporarily unavailable.
package mirror
