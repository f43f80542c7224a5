// Package reconcile classifies an uploaded document against the certificate
// record store and the ledger.
//
// Classify hashes the literal bytes it is given, looks the digest up in the
// record store and then, depending on how the certificate was issued, asks
// the ledger for the single certificate or recomputes the batch root and
// checks the membership proof both locally and on the ledger. The result is
// always one of the certificate.Reason values; classification never writes.
//
// This package is part of the Hashgraph Online Certificate SDK for Go.
package reconcile
