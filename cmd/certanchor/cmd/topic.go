package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/anchor"
)

var (
	flagAdminKey     string
	flagSubmitKey    string
	flagOperatorKeys bool
	flagScan         bool
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage the anchor topic",
}

var topicCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an anchor topic for an institute",
	Args:  cobra.NoArgs,
	RunE:  runTopicCreate,
}

var topicValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configured topic is an anchor topic",
	Args:  cobra.NoArgs,
	RunE:  runTopicValidate,
}

func init() {
	topicCreateCmd.Flags().StringVar(&flagAdminKey, "admin-key", "", "public key allowed to update the topic")
	topicCreateCmd.Flags().StringVar(&flagSubmitKey, "submit-key", "", "public key allowed to submit anchors")
	topicCreateCmd.Flags().BoolVar(&flagOperatorKeys, "operator-keys", true,
		"use the operator key as admin and submit key when none is given")

	topicValidateCmd.Flags().BoolVar(&flagScan, "scan", false, "also read every topic message and count the anchors")

	topicCmd.AddCommand(topicCreateCmd, topicValidateCmd)
}

func runTopicCreate(cmd *cobra.Command, _ []string) error {
	s := loadSettings(conf)
	scope, err := s.scope()
	if err != nil {
		return err
	}

	ledger, err := openLedger(s)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx, cancel := withTimeout(cmd, s.LedgerTimeout)
	defer cancel()

	topicID, transactionID, err := ledger.CreateAnchorTopic(ctx, anchor.CreateTopicOptions{
		Scope:               scope.String(),
		AdminKey:            flagAdminKey,
		SubmitKey:           flagSubmitKey,
		UseOperatorAsAdmin:  flagOperatorKeys && flagAdminKey == "",
		UseOperatorAsSubmit: flagOperatorKeys && flagSubmitKey == "",
	})
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), map[string]string{
		"topic_id":       topicID,
		"transaction_id": transactionID,
		"memo":           anchor.BuildTopicMemo(scope.String()),
		"network":        ledger.Network(),
	})
}

func runTopicValidate(cmd *cobra.Command, _ []string) error {
	s := loadSettings(conf)
	ledger, err := openLedger(s)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx, cancel := withTimeout(cmd, s.LedgerTimeout)
	defer cancel()

	memo, err := ledger.ValidateTopic(ctx)
	if err != nil {
		return err
	}

	report := map[string]interface{}{
		"topic_id": ledger.TopicID(),
		"version":  memo.Version,
		"scope":    memo.Scope,
	}
	if flagScan {
		scan, err := ledger.ScanTopic(ctx)
		if err != nil {
			return err
		}
		report["scan"] = scan
	}
	return printJSON(cmd.OutOrStdout(), report)
}
