package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/fhirtransform/internal/config"
	"github.com/ehr/fhirtransform/internal/domain/bundle"
	"github.com/ehr/fhirtransform/internal/domain/transform"
	"github.com/ehr/fhirtransform/internal/platform/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "fhir-transformer",
		Version:       version,
		Short:         "Transform clinical submissions into FHIR R4 collection bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(bundleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, out io.Writer) (zerolog.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat, out)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving (postgres only)")
	return cmd
}

// loadStore loads and validates configuration and opens the configured
// backend. Logs go to stderr so stdout stays usable for output.
func loadStore(ctx context.Context) (*config.Config, *store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, st, err := loadStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.pool == nil {
				return fmt.Errorf("migrations apply to the postgres backend only, STORE_BACKEND is %q", cfg.StoreBackend)
			}

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			count, err := newMigrator(st.pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, st, err := loadStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.pool == nil {
				return fmt.Errorf("migrations apply to the postgres backend only, STORE_BACKEND is %q", cfg.StoreBackend)
			}

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := newMigrator(st.pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func transformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform a submission file and print the bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			persist, _ := cmd.Flags().GetBool("persist")

			in := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			sub, err := transform.DecodeSubmission(in)
			if err != nil {
				return describe(err)
			}

			var doc []byte
			if persist {
				doc, err = transformAndStore(cmd.Context(), sub)
			} else {
				doc, err = transformOnly(sub)
			}
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			if _, err := out.Write(doc); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out)
			return err
		},
	}
	cmd.Flags().StringP("file", "f", "-", "Submission JSON file, - for stdin")
	cmd.Flags().Bool("persist", false, "Store the bundle in the configured backend and publish bundle.created")
	return cmd
}

func transformOnly(sub *transform.Submission) ([]byte, error) {
	b, err := transform.NewTransformer().Transform(sub)
	if err != nil {
		return nil, err
	}
	return b.Marshal()
}

func transformAndStore(ctx context.Context, sub *transform.Submission) ([]byte, error) {
	cfg, st, err := loadStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	logger, _ := newLogger(cfg, os.Stderr)
	pub, closePubs, err := openPublishers(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closePubs()

	svc := transform.NewService(transform.NewTransformer(), st.repo, pub, logger)
	res, err := svc.Process(ctx, sub)
	svc.Wait()
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// describe expands validation errors into one line per field.
func describe(err error) error {
	var inv *transform.InvalidInputError
	if !errors.As(err, &inv) {
		return err
	}
	fields := make([]string, 0, len(inv.Fields))
	for f := range inv.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msg := "invalid input data:"
	for _, f := range fields {
		msg += fmt.Sprintf("\n  %s: %s", f, inv.Fields[f])
	}
	return errors.New(msg)
}

func bundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect stored bundles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored bundle exactly as it was returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, st, err := loadStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := st.repo.GetByID(ctx, args[0])
			if errors.Is(err, bundle.ErrNotFound) {
				return fmt.Errorf("bundle %s not found", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := out.Write(b.Document); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out)
			return err
		},
	})

	return cmd
}
