package cmd

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/anchor"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/issuance"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/reconcile"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/shared"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/store"
)

// environment holds the components a command works with. Fields are nil
// when the command did not ask for them.
type environment struct {
	settings settings
	ledger   *anchor.Client
	store    *store.Store
	registry *prometheus.Registry
	engine   *reconcile.Engine
	issuer   *issuance.Issuer
}

func openLedger(s settings) (*anchor.Client, error) {
	operator, err := shared.OperatorConfigFromEnv()
	if err != nil {
		return nil, err
	}

	network := operator.Network
	if s.Network != "" {
		network = s.Network
	}
	topicID := operator.TopicID
	if s.TopicID != "" {
		topicID = s.TopicID
	}

	return anchor.NewClient(anchor.ClientConfig{
		OperatorAccountID:  operator.AccountID,
		OperatorPrivateKey: operator.PrivateKey,
		Network:            network,
		MirrorBaseURL:      s.MirrorURL,
		MirrorAPIKey:       s.MirrorAPIKey,
		TopicID:            topicID,
		Logger:             log,
	})
}

// openEnvironment opens the ledger client and the record store and builds
// the verification engine and the issuer on top of them.
func openEnvironment(s settings) (*environment, error) {
	ledger, err := openLedger(s)
	if err != nil {
		return nil, err
	}
	if ledger.TopicID() == "" {
		_ = ledger.Close()
		return nil, fmt.Errorf("--%s is required; create one with \"certanchor topic create\"", flagTopicID)
	}

	records, err := store.Open(store.Config{Dir: s.DataDir, Logger: log})
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	env := &environment{
		settings: s,
		ledger:   ledger,
		store:    records,
		registry: prometheus.NewRegistry(),
	}

	recorder, err := reconcile.NewPrometheusRecorder(env.registry)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	env.engine, err = reconcile.NewEngine(records, ledger,
		reconcile.WithLogger(log),
		reconcile.WithRecorder(recorder),
		reconcile.WithLedgerTimeout(s.LedgerTimeout),
	)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	env.issuer, err = issuance.NewIssuer(records, ledger,
		issuance.WithLogger(log),
		issuance.WithIssuerID(ledger.OperatorAccountID()),
		issuance.WithLedgerTimeout(s.LedgerTimeout),
	)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	return env, nil
}

// Close drains pending issuance, writes the metrics file if one was
// requested and releases the store and the ledger connections.
func (e *environment) Close() error {
	var result *multierror.Error

	if e.issuer != nil {
		e.issuer.Close()
	}
	if e.registry != nil && e.settings.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(e.settings.MetricsFile, e.registry); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close record store: %w", err))
		}
	}
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close ledger client: %w", err))
		}
	}

	return result.ErrorOrNil()
}
