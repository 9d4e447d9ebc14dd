package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"habitledger/cmd/internal/secret"
	"habitledger/config"
	"habitledger/core"
	"habitledger/storage"
)

type options struct {
	configPath string
	jsonOutput bool
}

// session is an opened ledger plus the configuration it was opened with.
// habitsctl works directly on the data directory, so the daemon must be
// stopped when a LevelDB or Bolt backend is in use.
type session struct {
	cfg    *config.Config
	db     storage.Database
	ledger *core.Ledger
	owner  [20]byte
}

func (s *session) Close() error { return s.db.Close() }

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "habitsctl",
		Short: "Operate a habits ledger data directory",
		Long: `habitsctl inspects and administers the habits ledger stored in the data
directory named by the daemon configuration. Stop habitsd before running
commands that write.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.toml", "path to habitsd configuration")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "emit JSON instead of a table")

	root.AddCommand(
		newStatusCmd(opts),
		newEntriesCmd(opts),
		newPoolsCmd(opts),
		newExportCmd(opts),
		newSweepCmd(opts),
		newAdminCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func (o *options) open() (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return nil, err
	}
	params, err := cfg.HabitsParams()
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	ledger, err := core.NewLedger(db, core.WithParams(params))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ledger.Init(context.Background(), owner); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger owner: %w", err)
	}
	return &session{cfg: cfg, db: db, ledger: ledger, owner: owner}, nil
}

// withSession opens the ledger for the duration of fn.
func (o *options) withSession(fn func(*session) error) error {
	s, err := o.open()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (o *options) signingSecret(cfg *config.Config) *secret.Source {
	return secret.NewSource("API signing secret", cfg.Auth.HMACSecret, cfg.Auth.HMACSecretEnv)
}

// render writes v as JSON when requested or when stdout is not a terminal,
// and as a table otherwise.
func (o *options) render(out io.Writer, v interface{}, header []string, rows [][]string) error {
	if o.jsonOutput || !secret.IsTerminal(out) {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
	return tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
}

func stdout(cmd *cobra.Command) io.Writer {
	if out := cmd.OutOrStdout(); out != nil {
		return out
	}
	return os.Stdout
}
