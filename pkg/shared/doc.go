// Package shared holds the Hedera plumbing every ledger-facing package needs:
// network names, client construction, operator credentials from the
// environment and private key parsing.
//
// # Environment Variables
//
// OperatorConfigFromEnv reads HEDERA_ACCOUNT_ID, HEDERA_PRIVATE_KEY and
// HEDERA_NETWORK, with MAINNET_ or TESTNET_ prefixed variants taking
// precedence for the selected network, and CERTANCHOR_TOPIC_ID for the anchor
// topic. A .env file in the working directory or any parent is loaded once;
// variables already set in the process win.
package shared
