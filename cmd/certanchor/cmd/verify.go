package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

// Exit codes of verify beyond the generic failure code 1.
const (
	exitNotVerified    = 2
	exitIntegrityAlert = 3
	exitLedgerError    = 4
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Classify a document against the record store and the ledger",
	Long: `Classify a document against the record store and the ledger.

Exit codes: 0 verified, 2 not verified, 3 local data needs reconciliation,
4 ledger unavailable.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <file>",
	Short: "Recompute the batch a document belongs to from stored leaves",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnose,
}

func runVerify(cmd *cobra.Command, args []string) error {
	s := loadSettings(conf)
	scope, err := s.scope()
	if err != nil {
		return err
	}

	content, err := afero.ReadFile(fs, args[0])
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	env, err := openEnvironment(s)
	if err != nil {
		return err
	}
	defer closeEnvironment(env)

	outcome, err := env.engine.Classify(commandContext(cmd), content, scope)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
		return err
	}
	return outcomeExit(outcome)
}

func outcomeExit(outcome certificate.Outcome) error {
	switch {
	case outcome.Verified:
		return nil
	case outcome.Reason.IntegrityAlert():
		return exitError{code: exitIntegrityAlert}
	case outcome.Reason.Retryable():
		return exitError{code: exitLedgerError}
	default:
		return exitError{code: exitNotVerified}
	}
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	s := loadSettings(conf)
	scope, err := s.scope()
	if err != nil {
		return err
	}

	file, err := fs.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	hash, err := digest.ComputeReader(file)
	_ = file.Close()
	if err != nil {
		return fmt.Errorf("failed to hash document: %w", err)
	}

	env, err := openEnvironment(s)
	if err != nil {
		return err
	}
	defer closeEnvironment(env)

	diagnosis, err := env.engine.DiagnoseBatch(commandContext(cmd), hash, scope)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), diagnosis); err != nil {
		return err
	}
	if !diagnosis.RootMatches {
		return exitError{code: exitIntegrityAlert}
	}
	return nil
}
