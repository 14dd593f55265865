package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/ai"
	"github.com/CovenantBits/Covforge/src/internal/audit"
	"github.com/CovenantBits/Covforge/src/internal/benchmark"
	"github.com/CovenantBits/Covforge/src/internal/compiler"
	"github.com/CovenantBits/Covforge/src/internal/config"
	"github.com/CovenantBits/Covforge/src/internal/engine"
	"github.com/CovenantBits/Covforge/src/internal/knowledge"
	"github.com/CovenantBits/Covforge/src/internal/lint"
	"github.com/CovenantBits/Covforge/src/internal/logger"
	"github.com/CovenantBits/Covforge/src/internal/repair"
	"github.com/CovenantBits/Covforge/src/internal/report"
	"github.com/CovenantBits/Covforge/src/internal/scoring"
	"github.com/CovenantBits/Covforge/src/internal/session"
	"github.com/CovenantBits/Covforge/src/internal/tollgate"
	"github.com/CovenantBits/Covforge/src/internal/ui"
	"github.com/CovenantBits/Covforge/src/strategy/prompts"
)

func Execute(ctx context.Context, cfg *CLIConfig) error {
	if cfg.Verbose {
		fmt.Printf(ui.Gray+"Running Covforge with config: %+v"+ui.Reset+"\n", cfg)
	}

	switch cfg.Mode {
	case "generate":
		return ExecuteGenerate(ctx, cfg)
	case "audit":
		return ExecuteAudit(ctx, cfg)
	case "repair":
		return ExecuteRepair(ctx, cfg)
	case "lint":
		return ExecuteLint(cfg)
	case "benchmark":
		return ExecuteBenchmark(ctx, cfg)
	default:
		return fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}
}

func buildOracle(appConfig *config.AppConfig, cli *CLIConfig, task ai.Task) (ai.Oracle, error) {
	chain := appConfig.TaskChain(task)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no provider chain configured for task %q", task)
	}
	return ai.NewResilient(task, chain, func(provider string) ai.ProviderSettings {
		ps := appConfig.ProviderSettings(provider)
		if cli.Proxy != "" {
			ps.Proxy = cli.Proxy
		}
		if ps.Timeout == 0 {
			ps.Timeout = cli.Timeout
		}
		return ps
	})
}

func openStore(ctx context.Context, appConfig *config.AppConfig) session.Store {
	if !appConfig.Database.Enabled {
		return session.NewMemoryStore()
	}
	store, err := session.OpenMySQL(ctx, appConfig.GetDatabaseDSN())
	if err != nil {
		logger.Warn("MySQL session archive unavailable, using in-memory store: %v", err)
		return session.NewMemoryStore()
	}
	return store
}

func newCompiler(appConfig *config.AppConfig) *compiler.Cashc {
	return compiler.NewCashc(
		appConfig.Compiler.Binary,
		time.Duration(appConfig.Compiler.TimeoutSeconds)*time.Second,
	)
}

func resolveMode(cli *CLIConfig, code string) lint.Mode {
	mode := lint.ParseMode(cli.ContractMode)
	if mode == lint.ModeUnknown {
		mode = lint.InferMode(code)
	}
	return mode
}

func ExecuteGenerate(ctx context.Context, cfg *CLIConfig) error {
	if err := logger.InitLogger(); err != nil {
		fmt.Printf("⚠️  Warning: Failed to init logger: %v\n", err)
	}
	defer logger.Close()

	appConfig, err := config.LoadConfig()
	if err != nil {
		return err
	}

	oracles := engine.Oracles{}
	for _, task := range []ai.Task{ai.TaskIntent, ai.TaskGenerate, ai.TaskFix} {
		oracle, err := buildOracle(appConfig, cfg, task)
		if err != nil {
			return err
		}
		defer oracle.Close()
		oracles[task] = oracle
	}

	eng, err := engine.New(
		oracles,
		newCompiler(appConfig),
		tollgate.New(),
		openStore(ctx, appConfig),
		knowledge.Load(appConfig.Knowledge.Path),
		engine.Bounds{
			GenRetries:  appConfig.Engine.GenRetries,
			LintRetries: appConfig.Engine.LintRetries,
			FixRetries:  appConfig.Engine.FixRetries,
		},
	)
	if err != nil {
		return err
	}

	stop := ui.StartSpinner("Synthesizing guarded covenant...")
	result, err := eng.GenerateGuarded(ctx, engine.SynthesisRequest{
		Intent:        cfg.Intent,
		SecurityLevel: cfg.SecurityLvl,
		SessionID:     cfg.SessionID,
	})
	close(stop)

	if err != nil {
		var genErr *engine.GenerationError
		if errors.As(err, &genErr) && !cfg.JSONOutput {
			printGenerationFailure(genErr)
		}
		return err
	}

	if cfg.JSONOutput {
		return printJSON(result)
	}

	fmt.Println()
	ui.LogSuccess("Contract %q passed every gate (structural score %.2f)",
		result.ContractName, result.TollGate.StructuralScore)
	if result.SessionID != "" {
		ui.LogInfo("Session: %s", result.SessionID)
	}
	fmt.Println()
	fmt.Println(result.Code)
	return nil
}

func printGenerationFailure(genErr *engine.GenerationError) {
	fmt.Println()
	ui.LogError("Generation failed [%s]: %s", genErr.Code, genErr.Message)
	if genErr.LastCompilerError != "" {
		fmt.Printf("   Last compiler error: %s\n", genErr.LastCompilerError)
	}
	for _, violation := range genErr.Violations {
		fmt.Printf("   - [%s] %s\n", violation.Rule, violation.Reason)
	}
}

func ExecuteAudit(ctx context.Context, cfg *CLIConfig) error {
	if err := logger.InitLogger(); err != nil {
		fmt.Printf("⚠️  Warning: Failed to init logger: %v\n", err)
	}
	defer logger.Close()

	appConfig, err := config.LoadConfig()
	if err != nil {
		return err
	}

	code, err := prompts.LoadContractFile(cfg.File)
	if err != nil {
		return err
	}
	mode := resolveMode(cfg, code)

	classify, err := buildOracle(appConfig, cfg, ai.TaskClassify)
	if err != nil {
		logger.Warn("semantic classification disabled: %v", err)
		classify = nil
	} else {
		defer classify.Close()
	}

	agent, err := audit.NewAgent(newCompiler(appConfig), tollgate.New(), classify, scoring.NewEngine(appConfig.Scoring))
	if err != nil {
		return err
	}

	auditReport, err := agent.Audit(ctx, audit.AuditRequest{
		Code:   code,
		Intent: cfg.Intent,
		Mode:   mode,
	})
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		return printJSON(auditReport)
	}

	name := strings.TrimSuffix(filepath.Base(cfg.File), filepath.Ext(cfg.File))
	reporter := report.NewReporter(report.NewMarkdownGenerator(), report.NewFileStorage(cfg.ReportDir))
	path, err := reporter.GenerateAndSave(report.NewReport(name, cfg.Intent, mode.String(), code, *auditReport))
	if err != nil {
		return err
	}

	printAuditSummary(name, auditReport)
	fmt.Printf("\n📄 Full report: %s\n", path)
	return nil
}

func printAuditSummary(name string, r *internal.AuditReport) {
	fmt.Println()
	fmt.Printf("Contract: %s\n", name)
	fmt.Printf("Score: %d/100 (deterministic %d/70, semantic %d/30)\n",
		r.DisplayScore, r.DeterministicScore, r.SemanticScore)
	fmt.Printf("Risk level: %s | Semantic category: %s\n", r.RiskLevel, r.SemanticCategory)
	if r.DeploymentAllowed {
		fmt.Println("Deployment: ✅ allowed")
	} else {
		fmt.Println("Deployment: ❌ blocked")
	}
	if len(r.Issues) == 0 {
		ui.LogSuccess("No issues found.")
		return
	}
	semantic := 0
	for _, issue := range r.Issues {
		if issue.RuleID == "semantic_logic_flaw" {
			semantic++
		}
	}
	ui.LogIssues(name, len(r.Issues)-semantic, semantic)
	for _, issue := range r.Issues {
		fmt.Printf("  - [%s] %s (%s)\n", issue.Severity, issue.Title, issue.RuleID)
	}
}

func ExecuteRepair(ctx context.Context, cfg *CLIConfig) error {
	if err := logger.InitLogger(); err != nil {
		fmt.Printf("⚠️  Warning: Failed to init logger: %v\n", err)
	}
	defer logger.Close()

	appConfig, err := config.LoadConfig()
	if err != nil {
		return err
	}

	code, err := prompts.LoadContractFile(cfg.File)
	if err != nil {
		return err
	}
	mode := resolveMode(cfg, code)

	// Deterministic audit locates the target issue; no classify oracle needed.
	agent, err := audit.NewAgent(newCompiler(appConfig), tollgate.New(), nil, scoring.NewEngine(appConfig.Scoring))
	if err != nil {
		return err
	}
	auditReport, err := agent.Audit(ctx, audit.AuditRequest{Code: code, Mode: mode})
	if err != nil {
		return err
	}

	var target *internal.AuditIssue
	for i := range auditReport.Issues {
		if auditReport.Issues[i].RuleID == cfg.RuleID {
			target = &auditReport.Issues[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("rule %q was not reported for %s; run -m audit first to list findings", cfg.RuleID, cfg.File)
	}
	if !target.CanFix {
		return fmt.Errorf("rule %q is not auto-fixable", cfg.RuleID)
	}

	fast, err := buildOracle(appConfig, cfg, ai.TaskRepair)
	if err != nil {
		return err
	}
	defer fast.Close()
	escalated, err := buildOracle(appConfig, cfg, ai.TaskRepairEscalated)
	if err != nil {
		return err
	}
	defer escalated.Close()

	repairer, err := repair.NewAgent(fast, escalated, tollgate.New(), knowledge.Load(appConfig.Knowledge.Path))
	if err != nil {
		return err
	}

	if !cfg.JSONOutput {
		ui.UpdateStatus("Repairing %s in %s...", cfg.RuleID, filepath.Base(cfg.File))
	}
	result := repairer.Repair(ctx, repair.RepairRequest{
		OriginalCode: code,
		Issue:        *target,
		Mode:         mode,
	})

	if cfg.JSONOutput {
		return printJSON(result)
	}

	if !result.Success {
		ui.LogError("Repair failed after %d attempts; original code left untouched.", result.Attempts)
		for _, rejection := range result.Rejections {
			fmt.Printf("   - %s\n", rejection)
		}
		return nil
	}

	outPath := strings.TrimSuffix(cfg.File, filepath.Ext(cfg.File)) + ".fixed.cash"
	if err := os.WriteFile(outPath, []byte(result.CorrectedCode), 0644); err != nil {
		return fmt.Errorf("failed to write repaired contract: %w", err)
	}
	ui.LogSuccess("Repaired %s in %d attempt(s): %s", cfg.RuleID, result.Attempts, outPath)
	return nil
}

func ExecuteLint(cfg *CLIConfig) error {
	code, err := prompts.LoadContractFile(cfg.File)
	if err != nil {
		return err
	}
	mode := resolveMode(cfg, code)

	gateResult := tollgate.New().Validate(code)
	lintResult := lint.Lint(code, mode)

	if cfg.JSONOutput {
		return printJSON(map[string]interface{}{
			"toll_gate": gateResult,
			"lint":      lintResult,
		})
	}

	fmt.Printf("Mode: %s | Structural score: %.2f\n\n", mode, gateResult.StructuralScore)

	if gateResult.Passed && lintResult.Passed {
		fmt.Println("✅ No deterministic findings.")
		return nil
	}

	for _, violation := range gateResult.Violations {
		fmt.Printf("  🔴 [%s] %s\n", violation.Rule, violation.Reason)
	}
	for _, violation := range lintResult.Violations {
		icon := "🟠"
		if violation.IsWarning() {
			icon = "🟡"
		}
		fmt.Printf("  %s [%s] line %d: %s\n", icon, violation.RuleID, violation.Line, violation.Message)
	}
	return nil
}

func ExecuteBenchmark(ctx context.Context, cfg *CLIConfig) error {
	return benchmark.Run(ctx, benchmark.Options{
		DatasetPath: cfg.Dataset,
		Concurrency: cfg.Concurrency,
	})
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
