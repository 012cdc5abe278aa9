package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/indrav/forecourt/internal/dnscheck"
)

var (
	dnsResolverAddr string
	dnsFormat       string
)

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "DNS commands",
}

var dnsCheckCmd = &cobra.Command{
	Use:   "check <domain>",
	Short: "Check whether a domain points at the platform",
	Long:  `Look up the apex A record and the www CNAME and compare them to the expected targets. Runs standalone, without the registry.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDNSCheck,
}

var dnsInstructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Print the DNS records a dealer must create",
	RunE:  runDNSInstructions,
}

func init() {
	dnsCheckCmd.Flags().StringVar(&dnsResolverAddr, "resolver", "", "DNS resolver address (default "+dnscheck.DefaultResolverAddr+")")
	dnsCheckCmd.Flags().StringVar(&dnsFormat, "format", "table", "output format (table, json)")

	dnsCmd.AddCommand(dnsCheckCmd, dnsInstructionsCmd)
	rootCmd.AddCommand(dnsCmd)
}

func runDNSCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine := dnscheck.NewEngine(dnscheck.NewNetResolver(dnsResolverAddr, 0), "", "")

	result, err := engine.Check(ctx, args[0])
	if err != nil {
		return err
	}

	if dnsFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	fmt.Printf("%s: %s\n\n", result.Hostname, result.Message)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tEXPECTED\tOBSERVED\tOK")
	for _, rec := range result.Records {
		observed := rec.Observed
		if observed == "" {
			observed = rec.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
			rec.Type, rec.Name, rec.Expected, observed, rec.Matched)
	}
	return w.Flush()
}

func runDNSInstructions(cmd *cobra.Command, args []string) error {
	engine := dnscheck.NewEngine(dnscheck.NewNetResolver("", 0), "", "")

	fmt.Println("Create these DNS records at the registrar:")
	printInstructions(engine.Instructions())

	fmt.Println("\nSetup steps:")
	for i, step := range engine.Steps() {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	return nil
}

func printInstructions(instructions []dnscheck.Instruction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TYPE\tNAME\tVALUE\tTTL")
	for _, ins := range instructions {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", ins.Type, ins.Name, ins.Value, ins.TTL)
	}
	w.Flush()
}
