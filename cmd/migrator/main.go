// Package main はマイグレーションCLIのエントリポイント。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	envFile      string
	experimental bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "migrator",
		Short:         "MongoDB schema migration tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file (ignored when missing)")
	rootCmd.PersistentFlags().BoolVar(&experimental, "experimental", false, "Include experimental migrations")

	// サブコマンド登録
	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(currentCmd())
	rootCmd.AddCommand(markCmd())
	rootCmd.AddCommand(markToCmd())
	rootCmd.AddCommand(forgetCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "migrator version %s\n", version)
		},
	}
}
