package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/store"
)

var flagHolder string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued certificate records of an institute",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&flagHolder, "holder", "", "only list records of this registration number")
}

// runList only reads the local record store and does not need operator
// credentials.
func runList(cmd *cobra.Command, _ []string) error {
	s := loadSettings(conf)
	scope, err := s.scope()
	if err != nil {
		return err
	}

	records, err := store.Open(store.Config{Dir: s.DataDir, Logger: log})
	if err != nil {
		return err
	}
	defer records.Close()

	holderID := ""
	if flagHolder != "" {
		holderID = certificate.HolderID(flagHolder, scope)
	}

	list, err := records.List(commandContext(cmd), scope, holderID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), list)
}
