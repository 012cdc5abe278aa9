package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/indrav/forecourt/internal/config"
	"github.com/indrav/forecourt/internal/db"
	"github.com/indrav/forecourt/internal/dnscheck"
	"github.com/indrav/forecourt/internal/history"
	"github.com/indrav/forecourt/internal/hostname"
	"github.com/indrav/forecourt/internal/lifecycle"
	"github.com/indrav/forecourt/internal/registry"
)

var (
	domainTenant string
	domainStatus string
	domainFormat string
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Domain management commands",
}

var domainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected domains",
	RunE:  runDomainList,
}

var domainConnectCmd = &cobra.Command{
	Use:   "connect <domain>",
	Short: "Connect a domain to a dealer",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainConnect,
}

var domainVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Run DNS verification for a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainVerify,
}

var domainRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Disconnect a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainRemove,
}

var domainChecksCmd = &cobra.Command{
	Use:   "checks <id>",
	Short: "Show verification history for a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainChecks,
}

func init() {
	domainConnectCmd.Flags().StringVar(&domainTenant, "tenant", "", "dealer ID (required)")
	domainConnectCmd.MarkFlagRequired("tenant")
	domainListCmd.Flags().StringVar(&domainStatus, "status", "", "filter by status (pending_dns, verified)")
	domainListCmd.Flags().StringVar(&domainFormat, "format", "table", "output format (table, json)")
	domainChecksCmd.Flags().StringVar(&domainFormat, "format", "table", "output format (table, json)")

	domainCmd.AddCommand(domainListCmd, domainConnectCmd, domainVerifyCmd, domainRemoveCmd, domainChecksCmd)
	rootCmd.AddCommand(domainCmd)
}

// cliEnv bundles the stores and service the admin commands operate on.
// Commands talk to the local database directly, not to a running server.
type cliEnv struct {
	cfg     *config.Config
	store   *registry.Store
	service *lifecycle.Service
	close   func()
}

func openEnv() (*cliEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	database, err := db.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	historyStore, err := history.NewStore(cfg.Storage.HistoryPath)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	store := registry.NewStore(database.DB)
	engine := dnscheck.NewEngine(
		dnscheck.NewNetResolver(cfg.DNS.ResolverAddr, cfg.DNS.Timeout),
		cfg.DNS.ExpectedA, cfg.DNS.ExpectedCNAME)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := lifecycle.NewService(store, engine, hostname.New(cfg.DNS.ReservedSuffixes), historyStore, quiet)

	return &cliEnv{
		cfg:     cfg,
		store:   store,
		service: service,
		close: func() {
			historyStore.Close()
			database.Close()
		},
	}, nil
}

func runDomainList(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	records, err := env.store.List(context.Background(), registry.Filter{
		Status: registry.Status(domainStatus),
	})
	if err != nil {
		return err
	}

	if domainFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No domains connected")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEALER\tHOSTNAME\tSTATUS\tCONNECTED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.TenantID, rec.Hostname, rec.Status,
			rec.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runDomainConnect(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	res, err := env.service.Connect(context.Background(), domainTenant, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Connected %s for dealer %s (id %s)\n", res.Record.Hostname, domainTenant, res.Record.ID)
	fmt.Println("\nCreate these DNS records at the registrar:")
	printInstructions(res.Instructions)
	return nil
}

func runDomainVerify(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := env.service.Verify(ctx, "", args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n\n", res.Record.Hostname, res.Check.Message)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tEXPECTED\tOBSERVED\tOK")
	for _, rec := range res.Check.Records {
		observed := rec.Observed
		if observed == "" {
			observed = rec.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
			rec.Type, rec.Name, rec.Expected, observed, rec.Matched)
	}
	return w.Flush()
}

func runDomainRemove(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.service.Remove(context.Background(), "", args[0]); err != nil {
		return err
	}

	fmt.Printf("Removed domain %s\n", args[0])
	return nil
}

func runDomainChecks(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.close()

	checks, err := env.service.Checks(context.Background(), "", args[0], 20)
	if err != nil {
		return err
	}

	if domainFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(checks)
	}

	if len(checks) == 0 {
		fmt.Println("No verification checks recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECKED\tVERIFIED\tDETAILS")
	for _, check := range checks {
		fmt.Fprintf(w, "%s\t%v\t%s\n",
			check.CheckedAt.Format(time.RFC3339), check.AllVerified, summarizeRecords(check))
	}
	return w.Flush()
}

func summarizeRecords(check history.Check) string {
	out := ""
	for i, rec := range check.Records {
		if i > 0 {
			out += ", "
		}
		mark := "ok"
		if !rec.Matched {
			mark = "miss"
		}
		out += fmt.Sprintf("%s %s: %s", rec.Type, rec.Name, mark)
	}
	return out
}
