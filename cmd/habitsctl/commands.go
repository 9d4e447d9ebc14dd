package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"habitledger/config"
	"habitledger/gateway/middleware"
	"habitledger/integrations/exports"
	"habitledger/native/habits"
)

func formatAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

func formatDate(date int64) string {
	return time.Unix(date, 0).UTC().Format(time.DateOnly)
}

type statusView struct {
	Owner        string `json:"owner"`
	Now          int64  `json:"now"`
	Today        string `json:"today"`
	PerDayFee    string `json:"perDayFee"`
	BatchSize    int    `json:"batchSize"`
	Lookahead    int64  `json:"maxLookaheadDays"`
	VaultBalance string `json:"vaultBalance"`
	Pools        int    `json:"pools"`
	FeesPending  string `json:"withdrawableOperationFees"`
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger owner, economics and vault balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				ctx := cmd.Context()
				vault, err := s.ledger.Vault(ctx, s.owner)
				if err != nil {
					return err
				}
				pools, err := s.ledger.Pools(ctx)
				if err != nil {
					return err
				}
				_, fees, err := s.ledger.WithdrawableOperationFees(ctx, s.owner)
				if err != nil {
					return err
				}
				params := s.ledger.Params()
				now := s.ledger.Now()
				view := statusView{
					Owner:        formatAddress(s.owner),
					Now:          now,
					Today:        formatDate(habits.DateFloor(now)),
					PerDayFee:    params.PerDayFee.String(),
					BatchSize:    params.BatchSize,
					Lookahead:    params.MaxLookaheadDays,
					VaultBalance: vault.Balance.String(),
					Pools:        len(pools),
					FeesPending:  fees.String(),
				}
				rows := [][]string{
					{"owner", view.Owner},
					{"today", view.Today},
					{"per-day fee", view.PerDayFee},
					{"batch size", strconv.Itoa(view.BatchSize)},
					{"max lookahead days", strconv.FormatInt(view.Lookahead, 10)},
					{"vault balance", view.VaultBalance},
					{"pools", strconv.Itoa(view.Pools)},
					{"withdrawable fees", view.FeesPending},
				}
				return opts.render(stdout(cmd), view, []string{"FIELD", "VALUE"}, rows)
			})
		},
	}
}

type entryView struct {
	Date   int64  `json:"date"`
	Day    string `json:"day"`
	Status string `json:"status"`
}

func newEntriesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <address>",
		Short: "List a participant's dates and entry statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := config.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return opts.withSession(func(s *session) error {
				ctx := cmd.Context()
				dates, err := s.ledger.DatesForUser(ctx, s.owner, user)
				if err != nil {
					return err
				}
				views := make([]entryView, 0, len(dates))
				rows := make([][]string, 0, len(dates))
				for _, date := range dates {
					status, err := s.ledger.EntryStatus(ctx, s.owner, user, date)
					if err != nil {
						return err
					}
					view := entryView{Date: date, Day: formatDate(date), Status: status.String()}
					views = append(views, view)
					rows = append(rows, []string{view.Day, strconv.FormatInt(date, 10), view.Status})
				}
				return opts.render(stdout(cmd), views, []string{"DAY", "DATE", "STATUS"}, rows)
			})
		},
	}
}

func newPoolsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List every pool with its settlement figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				pools, err := s.ledger.Pools(cmd.Context())
				if err != nil {
					return err
				}
				rowsOut := exports.Rows(pools, s.ledger.Params().PerDayFee, s.ledger.Now())
				rows := make([][]string, 0, len(rowsOut))
				for _, r := range rowsOut {
					rows = append(rows, []string{
						r.Day,
						strconv.FormatUint(r.Registered, 10),
						strconv.FormatUint(r.Completed, 10),
						strconv.FormatBool(r.Mature),
						r.Bonus,
						r.OperationFee,
						strconv.FormatBool(r.OperationFeeWithdrawn),
					})
				}
				return opts.render(stdout(cmd), rowsOut,
					[]string{"DAY", "REGISTERED", "COMPLETED", "MATURE", "BONUS", "OP FEE", "SWEPT"}, rows)
			})
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export pools as CSV or JSON Lines with a SHA-256 checksum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				pools, err := s.ledger.Pools(cmd.Context())
				if err != nil {
					return err
				}
				fee, now := s.ledger.Params().PerDayFee, s.ledger.Now()
				var (
					data     []byte
					checksum string
				)
				switch strings.ToLower(format) {
				case "csv":
					data, checksum, err = exports.PoolsCSV(pools, fee, now)
				case "jsonl":
					data, checksum, err = exports.PoolsJSONL(pools, fee, now)
				default:
					return fmt.Errorf("unsupported format %q (csv or jsonl)", format)
				}
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = stdout(cmd).Write(data)
					if err == nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "sha256 %s\n", checksum)
					}
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(stdout(cmd), "wrote %s (%d pools) sha256 %s\n", output, len(pools), checksum)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "export format: csv or jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

type settlementView struct {
	Recipient string  `json:"recipient"`
	Dates     []int64 `json:"dates"`
	Amount    string  `json:"amount"`
}

func newSweepCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Withdraw every matured operator fee to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(func(s *session) error {
				ctx := cmd.Context()
				var view settlementView
				if dryRun {
					dates, amount, err := s.ledger.WithdrawableOperationFees(ctx, s.owner)
					if err != nil {
						return err
					}
					view = settlementView{Recipient: formatAddress(s.owner), Dates: dates, Amount: amount.String()}
				} else {
					settlement, err := s.ledger.SweepOperationFees(ctx, s.owner)
					if err != nil {
						return err
					}
					view = settlementView{Recipient: formatAddress(settlement.Recipient), Dates: settlement.Dates, Amount: settlement.Amount.String()}
				}
				if view.Dates == nil {
					view.Dates = []int64{}
				}
				rows := make([][]string, 0, len(view.Dates)+1)
				for _, date := range view.Dates {
					rows = append(rows, []string{formatDate(date), ""})
				}
				rows = append(rows, []string{"total", view.Amount})
				return opts.render(stdout(cmd), view, []string{"DAY", "AMOUNT"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report withdrawable fees without sweeping")
	return cmd
}

func newAdminCmd(opts *options) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke admin rights as the owner",
	}
	update := func(enable bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			addr, err := config.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return opts.withSession(func(s *session) error {
				ctx := cmd.Context()
				if enable {
					err = s.ledger.AddAdmin(ctx, s.owner, addr)
				} else {
					err = s.ledger.RemoveAdmin(ctx, s.owner, addr)
				}
				if err != nil {
					return err
				}
				isAdmin, err := s.ledger.IsAdmin(ctx, addr)
				if err != nil {
					return err
				}
				view := map[string]interface{}{"address": formatAddress(addr), "admin": isAdmin}
				return opts.render(stdout(cmd), view, []string{"ADDRESS", "ADMIN"},
					[][]string{{formatAddress(addr), strconv.FormatBool(isAdmin)}})
			})
		}
	}
	admin.AddCommand(
		&cobra.Command{Use: "add <address>", Short: "Grant admin rights", Args: cobra.ExactArgs(1), RunE: update(true)},
		&cobra.Command{Use: "remove <address>", Short: "Revoke admin rights", Args: cobra.ExactArgs(1), RunE: update(false)},
	)
	return admin
}

func newTokenCmd(opts *options) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Mint an API bearer token for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := config.ParseAddress(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			signing, err := opts.signingSecret(cfg).Get()
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(middleware.AuthConfig{
				HMACSecret: signing,
				Issuer:     cfg.Auth.Issuer,
				Audience:   cfg.Auth.Audience,
			}, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout(cmd), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
