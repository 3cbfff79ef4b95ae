package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mongo-migrations/internal/domain"
	"mongo-migrations/internal/middleware"
)

// signalContext はSIGINT/SIGTERMでキャンセルされるコンテキストを返す。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func versionArg(args []string) (domain.Version, error) {
	return domain.ParseVersion(args[0])
}

func audit(ctx context.Context, a *app, operation, version string, err error) {
	middleware.WriteAuditLog(ctx, middleware.AuditLog{
		Operation: operation,
		Database:  a.cfg.DatabaseName,
		Version:   version,
		Result:    middleware.Result(err),
	})
}

// upCmd は未適用のマイグレーションを適用する。
func upCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply all pending migrations, or those up to --to, in version order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			var target *domain.Version
			if to != "" {
				v, err := domain.ParseVersion(to)
				if err != nil {
					return err
				}
				target = &v
			}

			return withApp(ctx, func(ctx context.Context, a *app) error {
				var applied int
				var err error
				if target != nil {
					applied, err = a.runner.UpdateTo(ctx, *target)
				} else {
					applied, err = a.runner.UpdateToLatest(ctx)
				}
				audit(ctx, a, "up", to, err)
				if err != nil {
					return fmt.Errorf("migration failed after %d applied: %w", applied, err)
				}

				if applied == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", applied)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target version (defaults to the latest known version)")
	return cmd
}

// statusCmd は既知のマイグレーションと台帳の状態を表示する。
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  "Show the status of all known and ledgered migrations (applied/incomplete/pending)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				entries, err := a.status.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				return printStatus(cmd, entries)
			})
		},
	}
}

func printStatus(cmd *cobra.Command, entries []domain.StatusEntry) error {
	// テーブル形式で出力
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "VERSION\tDESCRIPTION\tSTATUS\tCOMPLETED AT")
	fmt.Fprintln(w, "-------\t-----------\t------\t------------")

	for _, e := range entries {
		completedAt := "-"
		if e.CompletedOn != nil {
			completedAt = e.CompletedOn.Format("2006-01-02 15:04:05")
		}
		status := string(e.Status)
		if e.Experimental {
			status += " (experimental)"
		}
		if !e.Known {
			status += " (unknown)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Version, e.Description, status, completedAt)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// checkCmd は未適用のマイグレーションがあれば失敗する。
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fail when the database is not up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.status.CheckUpToDate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
				return nil
			})
		},
	}
}

// currentCmd はデータベースの現在のバージョンを表示する。
func currentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the current database version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				v, err := a.status.GetVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

// markCmd は1つのバージョンを実行せずに適用済みとして記録する。
func markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark VERSION",
		Short: "Record a version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := versionArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				err := a.status.MarkVersion(ctx, v)
				audit(ctx, a, "mark", v.String(), err)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as applied.\n", v)
				return nil
			})
		},
	}
}

// markToCmd は指定バージョン以下の既知のマイグレーションを適用済みとして記録する。
func markToCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-to VERSION",
		Short: "Record every known migration up to VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := versionArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				marked, err := a.status.MarkUpToVersion(ctx, v)
				audit(ctx, a, "mark-to", v.String(), err)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d migration(s) as applied.\n", marked)
				return nil
			})
		},
	}
}

// forgetCmd はクラッシュした未完了エントリを削除して再実行可能にする。
func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget VERSION",
		Short: "Remove incomplete ledger entries so the migration runs again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := versionArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				deleted, err := a.status.Forget(ctx, v)
				audit(ctx, a, "forget", v.String(), err)
				if errors.Is(err, domain.ErrLedgerEntryNotFound) {
					fmt.Fprintf(cmd.ErrOrStderr(), "No incomplete entry for %s.\n", v)
					return err
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d incomplete ledger entries for %s.\n", deleted, v)
				return nil
			})
		},
	}
}
