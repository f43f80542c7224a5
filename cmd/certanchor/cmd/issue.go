package cmd

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/intake"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/issuance"
)

var (
	flagExternalID  string
	flagDocType     string
	flagCategory    string
	flagIDPattern   string
	flagExtensions  []string
	flagMaxFileSize int64
)

var issueCmd = &cobra.Command{
	Use:   "issue <file>",
	Short: "Issue a single certificate for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssue,
}

var issueBatchCmd = &cobra.Command{
	Use:   "issue-batch <archive.zip|directory>",
	Short: "Issue a batch of certificates anchored by one Merkle root",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssueBatch,
}

func init() {
	issueCmd.Flags().StringVar(&flagExternalID, "external-id", "",
		"holder registration number; defaults to the file name without extension")
	issueCmd.Flags().StringVar(&flagDocType, "doc-type", "", "document type stored with the record")
	issueCmd.Flags().StringVar(&flagCategory, "category", "", "document category stored with the record")

	issueBatchCmd.Flags().StringVar(&flagDocType, "doc-type", "", "document type stored with every record")
	issueBatchCmd.Flags().StringVar(&flagCategory, "category", "", "document category stored with every record")
	issueBatchCmd.Flags().StringVar(&flagIDPattern, "id-pattern", intake.RegistrationNumberPattern.String(),
		"regular expression every external ID must match; empty accepts any")
	issueBatchCmd.Flags().StringSliceVar(&flagExtensions, "ext", []string{".pdf"}, "accepted file extensions")
	issueBatchCmd.Flags().Int64Var(&flagMaxFileSize, "max-file-size", 20<<20, "largest accepted document in bytes")
}

func runIssue(cmd *cobra.Command, args []string) error {
	s := loadSettings(conf)
	scope, err := s.scope()
	if err != nil {
		return err
	}

	content, err := afero.ReadFile(fs, args[0])
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	externalID := flagExternalID
	if externalID == "" {
		externalID = intake.ExternalIDFromFileName(args[0])
	}

	env, err := openEnvironment(s)
	if err != nil {
		return err
	}
	defer closeEnvironment(env)

	result, err := env.issuer.IssueSingle(commandContext(cmd), issuance.SingleRequest{
		Scope:      scope,
		ExternalID: externalID,
		Content:    content,
		FileName:   filepath.Base(args[0]),
		DocType:    flagDocType,
		Category:   flagCategory,
	})
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), result.Record)
}

type batchSummary struct {
	BatchID string               `json:"batch_id,omitempty"`
	Root    string               `json:"root,omitempty"`
	TxRef   string               `json:"tx_ref,omitempty"`
	Issued  int                  `json:"issued"`
	Records []certificate.Record `json:"records,omitempty"`
	Skipped []intake.Skip        `json:"skipped,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func runIssueBatch(cmd *cobra.Command, args []string) error {
	s := loadSettings(conf)
	scope, err := s.scope()
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if flagIDPattern != "" {
		pattern, err = regexp.Compile(flagIDPattern)
		if err != nil {
			return fmt.Errorf("invalid --id-pattern: %w", err)
		}
	}

	reader := intake.NewReaderFs(fs, intake.Options{
		Pattern:     pattern,
		Extensions:  flagExtensions,
		MaxFileSize: flagMaxFileSize,
		Logger:      log,
	})
	collected, err := reader.Read(args[0])
	if err != nil {
		return err
	}
	if len(collected.Documents) == 0 {
		_ = printJSON(cmd.OutOrStdout(), batchSummary{Skipped: collected.Skipped})
		return fmt.Errorf("%w: no usable documents in %s", certificate.ErrEmptyBatch, args[0])
	}

	env, err := openEnvironment(s)
	if err != nil {
		return err
	}
	defer closeEnvironment(env)

	result, issueErr := env.issuer.IssueBatch(commandContext(cmd), issuance.BatchRequest{
		Scope:     scope,
		Documents: collected.BatchDocuments(),
		DocType:   flagDocType,
		Category:  flagCategory,
	})

	summary := summarizeBatch(collected.Skipped, result, issueErr)
	if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	return issueErr
}

// summarizeBatch reports intake skips first, then documents the issuer
// skipped.
func summarizeBatch(intakeSkips []intake.Skip, result issuance.BatchResult, issueErr error) batchSummary {
	summary := batchSummary{
		BatchID: result.Receipt.BatchID,
		TxRef:   result.Receipt.TxRef,
		Issued:  len(result.Records),
		Records: result.Records,
		Skipped: append([]intake.Skip(nil), intakeSkips...),
	}
	for _, skipped := range result.Skipped {
		name := skipped.FileName
		if name == "" {
			name = skipped.ExternalID
		}
		summary.Skipped = append(summary.Skipped, intake.Skip{FileName: name, Reason: skipped.Reason})
	}
	if !result.Batch.Root.IsZero() {
		summary.Root = result.Batch.Root.PrefixedHex()
	}
	if issueErr != nil {
		summary.Error = issueErr.Error()
	}
	return summary
}

func closeEnvironment(env *environment) {
	if err := env.Close(); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}
