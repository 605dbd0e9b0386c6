// Command contractguard is the core's CLI entrypoint: a flag-dispatch
// binary in the manner of cmd/helm, wiring the policy catalog, rule and
// semantic evaluators, orchestrator, history store and coordinator into
// a small set of subcommands. There is no HTTP surface here; the core
// is a library, and this binary exists only to exercise it end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dataguild/contractguard/pkg/config"
	"github.com/dataguild/contractguard/pkg/contracts"
	"github.com/dataguild/contractguard/pkg/govtypes"
	"github.com/dataguild/contractguard/pkg/history"
	"github.com/dataguild/contractguard/pkg/llm"
	"github.com/dataguild/contractguard/pkg/orchestrator"
	"github.com/dataguild/contractguard/pkg/policy/catalog"
	"github.com/dataguild/contractguard/pkg/policy/rule"
	"github.com/dataguild/contractguard/pkg/policy/semantic"

	"github.com/dataguild/contractguard/pkg/coordinator"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing: it never calls os.Exit itself.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "validate":
		return runValidate(args[2:], stdout, stderr)
	case "commit":
		return runCommit(args[2:], stdout, stderr)
	case "history":
		if len(args) < 3 {
			fmt.Fprintln(stderr, "Usage: contractguard history <log|diff> [flags]")
			return 2
		}
		return runHistory(args[2], args[3:], stdout, stderr)
	case "reload":
		return runReload(args[2:], stdout, stderr)
	case "serve":
		return runServe(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "contractguard - data contract governance core")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  contractguard <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  validate   Validate a raw contract without committing it (--in, --strategy, --json)")
	fmt.Fprintln(w, "  commit     Validate, version and commit a raw contract (--in, --strategy, --json)")
	fmt.Fprintln(w, "  history    Inspect the history store: log or diff (--limit, --json | --from, --to, --ref)")
	fmt.Fprintln(w, "  reload     Force a policy catalog reload")
	fmt.Fprintln(w, "  serve      Run a long-lived process that reloads the catalog on SIGHUP")
	fmt.Fprintln(w, "  help       Show this help")
}

// bootstrap wires the core's collaborators from the environment-derived
// configuration. Every subcommand that touches the catalog, history
// store or evaluators goes through this.
type bootstrap struct {
	cfg  *config.Config
	cat  *catalog.Catalog
	hist *history.Store
	crd  *coordinator.Coordinator
}

func newBootstrap(ctx context.Context) (*bootstrap, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cat, err := catalog.New(cfg.PoliciesDir)
	if err != nil {
		return nil, fmt.Errorf("load policy catalog: %w", err)
	}

	ruleEval, err := rule.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("init rule evaluator: %w", err)
	}

	client := llm.NewHTTPClient(cfg.LLMBackendURL, cfg.LLMTimeout)
	semEval := semantic.NewEvaluator(ctx, client, semantic.WithFanOut(cfg.SemanticFanOut), semantic.WithTimeout(cfg.LLMTimeout))

	orc := orchestrator.New(cat, ruleEval, semEval)
	if cfg.SemanticInFlightCap > 0 {
		orc = orc.WithBackpressure(orchestrator.NewBackpressure(int64(cfg.SemanticInFlightCap)))
	}
	if telemetry, ok := buildTelemetry(); ok {
		orc = orc.WithTelemetry(telemetry)
	}

	hist, err := history.Open(cfg.HistoryDir)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	author := envOr("CONTRACTGUARD_AUTHOR", "contractguard-cli")
	crd := coordinator.New(orc, hist, author)

	return &bootstrap{cfg: cfg, cat: cat, hist: hist, crd: crd}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildTelemetry wires a real OpenTelemetry SDK tracer and meter provider
// when CONTRACTGUARD_TELEMETRY=1, matching cmd/helm's pattern of gating
// an optional observability surface behind an operator flag rather than
// always running it. With no exporter registered, the SDK still counts
// and traces validations in-process; wiring an OTLP exporter onto these
// providers is left to the operator, per the exporter-construction split
// noted for this dependency.
func buildTelemetry() (orchestrator.Telemetry, bool) {
	if os.Getenv("CONTRACTGUARD_TELEMETRY") != "1" {
		return orchestrator.Telemetry{}, false
	}

	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()

	telemetry, err := orchestrator.NewTelemetry(tp, mp)
	if err != nil {
		log.Printf("contractguard: telemetry init failed, continuing unmetered: %v", err)
		return orchestrator.Telemetry{}, false
	}
	return telemetry, true
}

func parseStrategy(s string) govtypes.Strategy {
	switch s {
	case "FAST", "BALANCED", "THOROUGH", "ADAPTIVE":
		return govtypes.Strategy(s)
	default:
		return ""
	}
}

func readRaw(path string) (contracts.RawContract, error) {
	var raw contracts.RawContract
	data, err := os.ReadFile(path)
	if err != nil {
		return raw, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, nil
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "path to a raw contract JSON file (REQUIRED)")
	strategy := fs.String("strategy", "", "strategy override: FAST, BALANCED, THOROUGH, ADAPTIVE (default: config default)")
	asJSON := fs.Bool("json", false, "emit the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		fmt.Fprintln(stderr, "Error: --in is required")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bs, err := newBootstrap(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	raw, err := readRaw(*in)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	strat := parseStrategy(*strategy)
	if strat == "" {
		strat = bs.cfg.DefaultStrategy
	}

	res, err := bs.crd.CreateOrUpdateContract(ctx, coordinator.Request{Raw: raw, Strategy: strat, DryRun: true})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	printResult(stdout, res, *asJSON)
	if res.Report.Status == govtypes.StatusFailed {
		return 1
	}
	return 0
}

func runCommit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "path to a raw contract JSON file (REQUIRED)")
	strategy := fs.String("strategy", "", "strategy override: FAST, BALANCED, THOROUGH, ADAPTIVE (default: config default)")
	asJSON := fs.Bool("json", false, "emit the result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		fmt.Fprintln(stderr, "Error: --in is required")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bs, err := newBootstrap(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	raw, err := readRaw(*in)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	strat := parseStrategy(*strategy)
	if strat == "" {
		strat = bs.cfg.DefaultStrategy
	}

	res, err := bs.crd.CreateOrUpdateContract(ctx, coordinator.Request{Raw: raw, Strategy: strat})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	printResult(stdout, res, *asJSON)
	if res.Outcome != coordinator.OutcomeCommitted {
		return 1
	}
	return 0
}

func printResult(w io.Writer, res coordinator.Result, asJSON bool) {
	if asJSON {
		out := map[string]any{
			"outcome":   res.Outcome,
			"version":   res.Version,
			"commit_id": res.CommitID,
			"report":    res.Report,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	fmt.Fprintf(w, "outcome:   %s\n", res.Outcome)
	fmt.Fprintf(w, "version:   %s\n", res.Version)
	if res.CommitID != "" {
		fmt.Fprintf(w, "commit:    %s\n", res.CommitID)
	}
	fmt.Fprintf(w, "status:    %s (passed=%d warnings=%d failures=%d)\n",
		res.Report.Status, res.Report.Passed, res.Report.Warnings, res.Report.Failures)
	for _, f := range res.Report.Findings {
		fmt.Fprintf(w, "  [%s/%s] %s: %s\n", f.Engine, f.Severity, f.PolicyID, f.Message)
	}
}

func runHistory(sub string, args []string, stdout, stderr io.Writer) int {
	switch sub {
	case "log":
		return runHistoryLog(args, stdout, stderr)
	case "diff":
		return runHistoryDiff(args, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown history subcommand: %s\n", sub)
		return 2
	}
}

func runHistoryLog(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history log", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "maximum number of commits to show")
	asJSON := fs.Bool("json", false, "emit entries as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	hist, err := history.Open(cfg.HistoryDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	entries, err := hist.Log(*limit, time.Time{})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *asJSON {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Fprintln(stdout, string(data))
		return 0
	}

	for _, e := range entries {
		fmt.Fprintf(stdout, "%s  %s  %s\n", e.ID[:12], e.Timestamp.Format(time.RFC3339), e.Message)
	}
	return 0
}

func runHistoryDiff(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history diff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "'from' commit id (REQUIRED)")
	to := fs.String("to", "", "'to' commit id (REQUIRED)")
	ref := fs.String("ref", "", "ref name to diff, e.g. customers_v1.0.0 (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *from == "" || *to == "" || *ref == "" {
		fmt.Fprintln(stderr, "Error: --from, --to and --ref are required")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	hist, err := history.Open(cfg.HistoryDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	diff, err := hist.Diff(*from, *to, *ref)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprint(stdout, diff)
	return 0
}

func runReload(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cat, err := catalog.New(cfg.PoliciesDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := cat.Reload(); err != nil {
		fmt.Fprintf(stderr, "Reload failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "catalog reloaded")
	return 0
}

// runServe starts a long-lived process whose only job is to keep the
// policy catalog fresh: SIGHUP triggers a reload, matching cmd/helm's
// signal-handling style, but this core has no HTTP surface of its own.
func runServe(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bs, err := newBootstrap(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	hupChan := make(chan os.Signal, 1)
	signal.Notify(hupChan, syscall.SIGHUP)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("contractguard: serving, policies=%s history=%s", bs.cfg.PoliciesDir, bs.cfg.HistoryDir)

	for {
		select {
		case <-hupChan:
			if err := bs.cat.Reload(); err != nil {
				log.Printf("contractguard: catalog reload failed: %v", err)
				continue
			}
			log.Println("contractguard: catalog reloaded")
		case <-sigChan:
			log.Println("contractguard: shutting down")
			return 0
		}
	}
}
