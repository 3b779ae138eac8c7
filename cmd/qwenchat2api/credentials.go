package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icheer/qwenchat2api/pkg/cli"
	"github.com/icheer/qwenchat2api/pkg/credential"
)

var credentialsFlags struct {
	file   string
	output string
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the credential pools",
	Long: `Inspect and modify the credential pools directly through the
configured storage, without a running server.

A storage path must be configured; in-memory pools exist only inside a
running server process.`,
}

var credentialsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import credentials from a file of cookie-header lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := openManager()
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := manager.ImportSeedFile(cmd.Context(), credentialsFlags.file)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		return writeResult(result,
			fmt.Sprintf("%d tokens and %d cookies added", result.TokensAdded, result.CookiesAdded))
	},
}

var credentialsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the credential pools with masked values",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := openManager()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		status := map[string]any{}
		for _, kind := range []credential.Kind{credential.KindToken, credential.KindCookie} {
			valid, invalid, err := manager.Counts(ctx, kind)
			if err != nil {
				return err
			}
			infos, err := manager.Snapshot(ctx, kind)
			if err != nil {
				return err
			}
			status[string(kind)] = map[string]any{
				"valid":       valid,
				"invalid":     invalid,
				"credentials": infos,
			}
		}
		return writeResult(status, fmt.Sprintf("%v", status))
	},
}

var credentialsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove invalid credentials from both pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := openManager()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		tokens, err := manager.PurgeInvalid(ctx, credential.KindToken)
		if err != nil {
			return err
		}
		cookies, err := manager.PurgeInvalid(ctx, credential.KindCookie)
		if err != nil {
			return err
		}
		result := map[string]int{"tokens_removed": tokens, "cookies_removed": cookies}
		return writeResult(result,
			fmt.Sprintf("%d tokens and %d cookies removed", tokens, cookies))
	},
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsImportCmd, credentialsStatusCmd, credentialsPurgeCmd)

	credentialsCmd.PersistentFlags().StringVarP(&credentialsFlags.output, "output", "o", "text", "output format (text, json)")
	credentialsImportCmd.Flags().StringVarP(&credentialsFlags.file, "file", "f", "", "file of cookie-header lines")
	_ = credentialsImportCmd.MarkFlagRequired("file")
}

// openManager opens the configured durable store and wraps it in a
// manager. The caller must invoke the returned cleanup.
func openManager() (*credential.Manager, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Credentials.StoragePath == "" {
		return nil, nil, fmt.Errorf("credentials.storage_path is not configured; the credentials commands need durable storage")
	}

	store, err := credential.NewSQLiteStore(cfg.Credentials.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential storage: %w", err)
	}
	return credential.NewManager(store), func() { _ = store.Close() }, nil
}

// writeResult prints data in the selected output format, with text
// output using the given summary line.
func writeResult(data any, textSummary string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(credentialsFlags.output))
	if err != nil {
		return err
	}
	if credentialsFlags.output == string(cli.FormatJSON) {
		return formatter.FormatTo(os.Stdout, data)
	}
	return formatter.FormatTo(os.Stdout, textSummary)
}
