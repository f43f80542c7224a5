// Package anchor implements certificate.LedgerGateway on the Hedera Consensus
// Service.
//
// Every certificate hash and every batch root is submitted as one JSON message
// to a dedicated anchor topic. The consensus sequence number of that message
// becomes the certificate ID or batch ID, and the mirror node is the read
// path used to verify them later.
//
// Messages that do not fit a single 1024 byte chunk are brotli compressed and
// wrapped as {"c":"data:application/json;base64,..."}. Anything still larger
// is rejected before submission.
//
// Topic memo format:
//
//	cert-anchor:1:<scope>
//
// The scope segment is optional.
package anchor
