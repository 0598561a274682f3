// Command fraudctl is an ops tool for the FraudGate API.
//
// Usage:
//
//	fraudctl check '{"transaction_id":"t1","transaction_amount":5000}'
//	fraudctl get t1                  # Fetch the persisted decision
//	fraudctl list -limit 20          # Recent decisions, newest first
//	fraudctl rules                   # List rules in evaluation order
//	fraudctl rule-add -condition 'transaction_amount > 10000' -action 'amount too high'
//	fraudctl rule-del 3              # Delete rule 3 (rest renumbered)
//	fraudctl report -txn t1 -entity bank-22 -details 'chargeback confirmed'
//
// The API endpoint is taken from FRAUDGATE_API_URL (default
// http://localhost:8080); FRAUDGATE_API_KEY is sent as a bearer token when set.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mbd888/fraudgate/internal/mcpserver"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := mcpserver.Config{
		APIURL: envOrDefault("FRAUDGATE_API_URL", "http://localhost:8080"),
		APIKey: os.Getenv("FRAUDGATE_API_KEY"),
	}
	client := mcpserver.NewFraudGateClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "check":
		err = runCheck(ctx, client, args)
	case "get":
		err = runGet(ctx, client, args)
	case "list":
		err = runList(ctx, client, args)
	case "rules":
		err = runRules(ctx, client)
	case "rule-add":
		err = runRuleAdd(ctx, client, args)
	case "rule-del":
		err = runRuleDel(ctx, client, args)
	case "report":
		err = runReport(ctx, client, args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: fraudctl <command> [args]")
	fmt.Println("Commands: check, get, list, rules, rule-add, rule-del, report")
}

func runCheck(ctx context.Context, client *mcpserver.FraudGateClient, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	file := fs.String("f", "", "read the transaction JSON from a file instead of the argument")
	_ = fs.Parse(args)

	var data []byte
	switch {
	case *file != "":
		b, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		data = b
	case fs.NArg() > 0:
		data = []byte(fs.Arg(0))
	default:
		return fmt.Errorf("check requires a transaction JSON argument or -f file")
	}

	var txn map[string]any
	if err := json.Unmarshal(data, &txn); err != nil {
		return fmt.Errorf("transaction must be a JSON object: %w", err)
	}

	resp, err := client.CheckTransaction(ctx, txn)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runGet(ctx context.Context, client *mcpserver.FraudGateClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("get requires a transaction id")
	}
	resp, err := client.GetDecision(ctx, args[0])
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runList(ctx context.Context, client *mcpserver.FraudGateClient, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum number of decisions to return")
	_ = fs.Parse(args)

	resp, err := client.ListDecisions(ctx, *limit)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runRules(ctx context.Context, client *mcpserver.FraudGateClient) error {
	resp, err := client.ListRules(ctx)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runRuleAdd(ctx context.Context, client *mcpserver.FraudGateClient, args []string) error {
	fs := flag.NewFlagSet("rule-add", flag.ExitOnError)
	cond := fs.String("condition", "", "field comparison, e.g. 'transaction_amount > 10000'")
	action := fs.String("action", "", "recorded as the fraud reason when the rule matches")
	disabled := fs.Bool("disabled", false, "create the rule disabled")
	_ = fs.Parse(args)

	if *cond == "" || *action == "" {
		return fmt.Errorf("rule-add requires -condition and -action")
	}

	resp, err := client.AddRule(ctx, *cond, *action, !*disabled)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runRuleDel(ctx context.Context, client *mcpserver.FraudGateClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("rule-del requires a rule id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		return fmt.Errorf("rule id must be a positive integer")
	}

	resp, err := client.DeleteRule(ctx, id)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runReport(ctx context.Context, client *mcpserver.FraudGateClient, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	txn := fs.String("txn", "", "transaction id being reported")
	entity := fs.String("entity", "", "reporting entity id")
	details := fs.String("details", "", "description of the suspected fraud")
	_ = fs.Parse(args)

	if *txn == "" || *entity == "" || *details == "" {
		return fmt.Errorf("report requires -txn, -entity, and -details")
	}

	resp, err := client.ReportFraud(ctx, *txn, *entity, *details)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func printJSON(raw json.RawMessage) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
