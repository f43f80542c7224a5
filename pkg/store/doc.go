// Package store is a Badger implementation of certificate.RecordStore.
//
// Records are append-only. Every key is partitioned by scope, so lookups for
// one institute never see another institute's records:
//
//	0x01 scope 0x00 docHash                       -> Record
//	0x02 scope 0x00 batchID 0x00 externalID       -> DocumentLeaf
//	0x03 scope 0x00 holderID 0x00 docHash         -> (empty)
//
// Values are JSON encoded.
//
// This package is part of the Hashgraph Online Certificate SDK for Go.
package store
