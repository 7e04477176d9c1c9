package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/extract"
	"github.com/clearcontract-ai/pipeline/nodes"
)

// CLI configuration
type Config struct {
	Document       string
	Jurisdiction   string
	ContractType   string
	PurchaseMethod string
	UseCategory    string
	ResumeID       string
	ListRuns       bool
	CheckpointsDir string
	LogsDir        string
	RulesFile      string
	SkipQuality    bool
	Timeout        time.Duration
	StepTimeout    time.Duration
	Verbose        bool
	JSON           bool
}

func main() {
	config := parseFlags()
	logger := setupLogger(config.Verbose)

	checkpointer, lister := setupCheckpointer(config)

	if config.ListRuns {
		listRuns(lister, config)
		return
	}

	if config.ResumeID == "" && config.Document == "" {
		color.Red("Error: a document is required (use -document, -resume, or -list)")
		flag.Usage()
		os.Exit(1)
	}
	if config.Document != "" {
		if _, err := os.Stat(config.Document); os.IsNotExist(err) {
			color.Red("Error: document '%s' not found", config.Document)
			os.Exit(1)
		}
	}

	rules := loadRules(config)
	orchestrator := buildOrchestrator(config, logger, checkpointer, rules)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
		color.Yellow("Timeout: %v", config.Timeout)
	}

	startTime := time.Now()
	var (
		state *pipeline.WorkflowState
		err   error
	)
	if config.ResumeID != "" {
		color.Blue("Resuming run: %s", config.ResumeID)
		state, err = orchestrator.Resume(ctx, config.ResumeID)
	} else {
		state = pipeline.NewWorkflowState("", pipeline.RunRequest{
			DocumentRef:       config.Document,
			Jurisdiction:      config.Jurisdiction,
			ContractType:      config.ContractType,
			PurchaseMethod:    config.PurchaseMethod,
			UseCategory:       config.UseCategory,
			QualityValidation: !config.SkipQuality,
		})
		color.Green("Starting run (ID: %s)...", state.RunID())
		state, err = orchestrator.Run(ctx, state)
	}

	showResults(state, err, time.Since(startTime), config)
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Document, "document", "", "Path to the contract document (required for new runs)")
	flag.StringVar(&config.Document, "d", "", "Path to the contract document (shorthand)")

	flag.StringVar(&config.Jurisdiction, "jurisdiction", "NSW", "Australian state or territory (NSW, VIC, QLD, SA, WA, TAS, ACT, NT)")
	flag.StringVar(&config.Jurisdiction, "j", "NSW", "Jurisdiction (shorthand)")

	flag.StringVar(&config.ContractType, "contract-type", "purchase_agreement", "Contract type (purchase_agreement, off_the_plan, commercial_sale)")
	flag.StringVar(&config.PurchaseMethod, "purchase-method", "private_treaty", "Purchase method (private_treaty, auction)")
	flag.StringVar(&config.UseCategory, "use", "residential", "Use category (residential, commercial)")

	flag.StringVar(&config.ResumeID, "resume", "", "Resume an interrupted run by ID")
	flag.BoolVar(&config.ListRuns, "list", false, "List known runs and exit")

	flag.StringVar(&config.CheckpointsDir, "checkpoints", "", "Directory to store run checkpoints (optional)")
	flag.StringVar(&config.LogsDir, "logs", "", "Directory to store step execution logs (optional)")
	flag.StringVar(&config.RulesFile, "rules", "", "Path to a jurisdiction rules YAML file (defaults to built-in rules)")

	flag.BoolVar(&config.SkipQuality, "skip-quality", false, "Skip the document quality validation step")
	flag.DurationVar(&config.Timeout, "timeout", 0, "Overall run timeout (e.g., 30s, 5m)")
	flag.DurationVar(&config.StepTimeout, "step-timeout", 0, "Per-step timeout (defaults to 2m)")

	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging (shorthand)")
	flag.BoolVar(&config.JSON, "json", false, "Output the report in JSON format")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `contractpipe - Analyze Australian real estate contracts

Usage: %s [options] -document <contract.txt>

Examples:
  # Analyze a NSW purchase agreement
  %s -document contract.txt -jurisdiction NSW

  # Analyze with checkpointing, then resume after an interruption
  %s -document contract.txt -checkpoints ./runs
  %s -resume run_01h2xcejqtf2nbrexx3vqjhp41 -checkpoints ./runs

  # List known runs
  %s -list -checkpoints ./runs

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return config
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return pipeline.NewLogger(level)
}

func setupCheckpointer(config *Config) (pipeline.Checkpointer, pipeline.RunLister) {
	if config.CheckpointsDir == "" {
		return pipeline.NewNullCheckpointer(), nil
	}
	checkpointer, err := pipeline.NewFileCheckpointer(config.CheckpointsDir)
	if err != nil {
		log.Fatalf("Failed to create checkpointer: %v", err)
	}
	color.Blue("Checkpoints: %s", config.CheckpointsDir)
	return checkpointer, checkpointer
}

func loadRules(config *Config) *pipeline.RuleSet {
	if config.RulesFile == "" {
		return pipeline.DefaultRules()
	}
	rules, err := pipeline.LoadRulesFile(config.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	color.Blue("Rules: %s", config.RulesFile)
	return rules
}

func buildOrchestrator(config *Config, logger *slog.Logger, checkpointer pipeline.Checkpointer, rules *pipeline.RuleSet) *pipeline.Orchestrator {
	extractor := extract.NewFileExtractor()
	invoker := &extract.OfflineInvoker{}
	composer := pipeline.NewFragmentComposer(pipeline.DefaultPromptFragments())

	var runLogger pipeline.RunLogger = pipeline.NewNullRunLogger()
	if config.LogsDir != "" {
		runLogger = pipeline.NewFileRunLogger(config.LogsDir)
		color.Blue("Step logs: %s", config.LogsDir)
	}

	orchestrator, err := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Nodes: []pipeline.Node{
			&nodes.ValidateInput{Resolver: extractor},
			&nodes.ProcessDocument{Extractor: extractor},
			&nodes.ExtractTerms{Composer: composer, Invoker: invoker},
			&nodes.ValidateQuality{},
			&nodes.ValidateCompleteness{Rules: rules},
			&nodes.AnalyzeCompliance{Rules: rules},
			&nodes.AssessRisks{},
			&nodes.GenerateRecommendations{},
			&nodes.CompileReport{},
		},
		Checkpointer: checkpointer,
		Notifier:     pipeline.NewLogNotifier(logger),
		RunLogger:    runLogger,
		Logger:       logger,
		StepTimeout:  config.StepTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	return orchestrator
}

func listRuns(lister pipeline.RunLister, config *Config) {
	if lister == nil {
		color.Red("Error: -list requires -checkpoints")
		os.Exit(1)
	}
	runs, err := lister.ListRuns(context.Background())
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		color.Blue("No runs found")
		return
	}
	if config.JSON {
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			log.Fatalf("Failed to format runs: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	for _, run := range runs {
		fmt.Printf("  %s  %-10s %3d%%  %s %s  %s\n",
			run.RunID, run.Status, run.Progress,
			run.Jurisdiction, run.ContractType,
			run.CheckpointAt.Format(time.RFC3339))
	}
}

func showResults(state *pipeline.WorkflowState, err error, duration time.Duration, config *Config) {
	if state == nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	color.White("Run completed in %v", duration)
	color.White("Status: %s", state.Status())
	color.White("Overall confidence: %.2f", state.OverallConfidence())

	for _, warning := range state.Warnings() {
		color.Yellow("Warning: %s", warning)
	}

	if err != nil {
		color.Red("Error: %v", err)
		if config.ResumeID == "" && state.Status() != pipeline.RunStatusCompleted {
			color.Yellow("Resume with: -resume %s", state.RunID())
		}
		os.Exit(1)
	}
	color.Green("Analysis successful!")

	report, reportErr := state.Report()
	if reportErr != nil {
		color.Red("No report produced: %v", reportErr)
		os.Exit(1)
	}

	if config.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Fatalf("Failed to format report: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	printReport(report)
}

func printReport(report *pipeline.Report) {
	fmt.Println()
	color.Magenta("Report %s", report.ID)
	color.White("%s", report.ExecutiveSummary)
	fmt.Println()

	for _, section := range report.Sections {
		color.Cyan("%s:", section.Section)
		fmt.Printf("  %s\n", section.Summary)
	}

	if len(report.KeyRisks) > 0 {
		fmt.Println()
		color.Cyan("Key risks:")
		for _, risk := range report.KeyRisks {
			fmt.Printf("  [%s] %s: %s\n", risk.Severity, risk.Title, risk.Description)
		}
	}

	if len(report.ActionPlan) > 0 {
		fmt.Println()
		color.Cyan("Action plan:")
		for _, rec := range report.ActionPlan {
			due := ""
			if rec.DueBy != "" {
				due = " (" + rec.DueBy + ")"
			}
			fmt.Printf("  [%s] %s, owner: %s%s\n", rec.Priority, rec.Action, rec.Owner, due)
		}
	}
}
