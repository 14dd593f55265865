package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/CovenantBits/Covforge/src/internal/ui"
)

type CLIConfig struct {
	Mode         string
	Intent       string
	File         string
	SessionID    string
	ContractMode string
	RuleID       string
	SecurityLvl  string
	Concurrency  int
	Verbose      bool
	Timeout      time.Duration
	Proxy        string
	ReportDir    string
	Dataset      string
	JSONOutput   bool
}

var validModes = []string{"generate", "audit", "repair", "lint", "benchmark"}

func looksLikeContractFile(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasSuffix(strings.ToLower(s), ".cash") {
		return true
	}
	info, err := os.Stat(s)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func (c *CLIConfig) Validate() error {
	if c.Mode == "" {
		return errors.New("-m (mode) is required: generate|audit|repair|lint|benchmark")
	}
	valid := false
	for _, m := range validModes {
		if c.Mode == m {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("-m must be one of: %s", strings.Join(validModes, ", "))
	}

	switch c.Mode {
	case "generate":
		if strings.TrimSpace(c.Intent) == "" {
			return errors.New("-i (intent) is required for generate (e.g. -i \"2-of-3 multisig treasury\")")
		}
	case "audit", "lint":
		if c.File == "" {
			return errors.New("-f (contract file) is required for " + c.Mode)
		}
	case "repair":
		if c.File == "" {
			return errors.New("-f (contract file) is required for repair")
		}
		if c.RuleID == "" {
			return errors.New("-rule is required for repair (e.g. -rule LNC-003)")
		}
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return nil
}

func showHelp(topic string) {
	switch topic {
	case "m", "mode":
		showModeHelp()
	case "i", "intent":
		showIntentHelp()
	case "f", "file":
		showFileHelp()
	case "b", "benchmark":
		showBenchmarkHelp()
	case "rule", "repair":
		showRepairHelp()
	default:
		showGeneralHelp()
	}
}

func showGeneralHelp() {
	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  covforge -m <mode> [OPTIONS]")
	fmt.Println()

	fmt.Println(ui.Cyan + "CORE COMMANDS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-m generate -i <intent>", "Synthesize a guarded covenant from natural language")
	fmt.Printf("  %-25s %s\n", "-m audit -f <file>", "Full audit of an existing .cash contract")
	fmt.Printf("  %-25s %s\n", "-m repair -f <file> -rule <id>", "Guarded single-issue repair")
	fmt.Printf("  %-25s %s\n", "-m lint -f <file>", "Deterministic lint + toll gate only")
	fmt.Printf("  %-25s %s\n", "-m benchmark", "Replay the labeled dataset through the gates")
	fmt.Println()

	fmt.Println(ui.Cyan + "OPTIONS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-s <session>", "Session id for multi-turn generation")
	fmt.Printf("  %-25s %s\n", "-mode <contract-mode>", "Contract mode hint (escrow, vesting, multisig, ...)")
	fmt.Printf("  %-25s %s\n", "-level <security>", "Security level for generation (default: standard)")
	fmt.Printf("  %-25s %s\n", "-r <dir>", "Report output directory (default: reports)")
	fmt.Printf("  %-25s %s\n", "-proxy <url>", "Proxy URL (HTTP/SOCKS5) for AI providers")
	fmt.Printf("  %-25s %s\n", "-json", "Emit machine-readable JSON instead of text")
	fmt.Printf("  %-25s %s\n", "-concurrency <n>", "Benchmark worker count (default: 4)")
	fmt.Println()

	fmt.Println(ui.Cyan + "HELP:" + ui.Reset)
	fmt.Println("  covforge [COMMAND] --help   Show detailed help for a specific command")
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println(ui.Gray + "  # Guarded generation" + ui.Reset)
	fmt.Println("  covforge -m generate -i \"2-of-3 multisig treasury with 30 day recovery\"")
	fmt.Println()
	fmt.Println(ui.Gray + "  # Audit an existing contract" + ui.Reset)
	fmt.Println("  covforge -m audit -f vault.cash -mode vault")
	fmt.Println()
	fmt.Println(ui.Gray + "  # Repair one finding" + ui.Reset)
	fmt.Println("  covforge -m repair -f vault.cash -rule LNC-003")
}

func showModeHelp() {
	fmt.Println(ui.Cyan + "🎯 MODES (-m)" + ui.Reset)
	fmt.Println(ui.Gray + "Select the pipeline to run." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "AVAILABLE MODES:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "generate", "Intent -> guarded synthesis loop -> deployable covenant")
	fmt.Printf("  %-25s %s\n", "audit", "Compile + lint + toll gate + semantic classification + score")
	fmt.Printf("  %-25s %s\n", "repair", "Single-issue oracle repair behind deterministic gates")
	fmt.Printf("  %-25s %s\n", "lint", "Deterministic checks only, no oracle involved")
	fmt.Printf("  %-25s %s\n", "benchmark", "Detector/lint precision run over the labeled dataset")
}

func showIntentHelp() {
	fmt.Println(ui.Cyan + "💬 INTENT (-i)" + ui.Reset)
	fmt.Println(ui.Gray + "Natural-language description of the covenant to synthesize." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println("  covforge -m generate -i \"escrow between buyer and seller with arbiter\"")
	fmt.Println("  covforge -m generate -i \"linear vesting over 12 months\" -s mysession")
	fmt.Println()
	fmt.Println("  With -s the engine keeps per-session turn history, so follow-up")
	fmt.Println("  intents refine the previous contract instead of starting over.")
}

func showFileHelp() {
	fmt.Println(ui.Cyan + "📄 CONTRACT FILE (-f)" + ui.Reset)
	fmt.Println(ui.Gray + "Path to a .cash source file for audit, repair and lint." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "OPTIONS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-mode <contract-mode>", "Skip mode inference (escrow, vesting, multisig, token, ...)")
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println("  covforge -m audit -f contracts/vault.cash")
	fmt.Println("  covforge -m lint -f vesting.cash -mode vesting")
}

func showRepairHelp() {
	fmt.Println(ui.Cyan + "🔧 REPAIR (-m repair)" + ui.Reset)
	fmt.Println(ui.Gray + "Fix exactly one audited finding without weakening the contract." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  covforge -m repair -f <file.cash> -rule <rule-id>")
	fmt.Println()

	fmt.Println(ui.Cyan + "DETAILS:" + ui.Reset)
	fmt.Println("  The target rule id comes from a prior audit run. Candidates that")
	fmt.Println("  drop require() guards or introduce new lint findings are rejected;")
	fmt.Println("  after three failed attempts the original code is returned untouched.")
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println("  covforge -m repair -f vault.cash -rule LNC-003")
	fmt.Println("  covforge -m repair -f escrow.cash -rule unguarded_recipient")
}

func showBenchmarkHelp() {
	fmt.Println(ui.Cyan + "📊 BENCHMARK MODE (-m benchmark)" + ui.Reset)
	fmt.Println(ui.Gray + "Replay labeled contracts through the toll gate and linter." + ui.Reset)
	fmt.Println()

	fmt.Println(ui.Cyan + "USAGE:" + ui.Reset)
	fmt.Println("  covforge -m benchmark [OPTIONS]")
	fmt.Println()

	fmt.Println(ui.Cyan + "OPTIONS:" + ui.Reset)
	fmt.Printf("  %-25s %s\n", "-dataset <file>", "Dataset file (default: benchmark/dataset.json)")
	fmt.Printf("  %-25s %s\n", "-concurrency <n>", "Number of concurrent workers (default: 4)")
	fmt.Println()

	fmt.Println(ui.Cyan + "EXAMPLES:" + ui.Reset)
	fmt.Println("  covforge -m benchmark")
	fmt.Println("  covforge -m benchmark -dataset benchmark/custom.json -concurrency 8")
}

func ParseFlags() (*CLIConfig, error) {
	if len(os.Args) > 1 {
		for i := 1; i < len(os.Args)-1; i++ {
			if os.Args[i+1] == "--help" || os.Args[i+1] == "-h" {
				cmd := os.Args[i]
				if strings.HasPrefix(cmd, "--") {
					cmd = cmd[2:]
				} else if strings.HasPrefix(cmd, "-") {
					cmd = cmd[1:]
				}
				showHelp(cmd)
				os.Exit(0)
			}
		}

		for _, arg := range os.Args[1:] {
			if arg == "--help" || arg == "-h" {
				showGeneralHelp()
				os.Exit(0)
			}
		}
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.Usage = func() {
		showGeneralHelp()
	}

	mode := fs.String("m", "", "Mode: generate|audit|repair|lint|benchmark")
	intent := fs.String("i", "", "Natural-language intent (generate mode)")
	file := fs.String("f", "", "Contract file (.cash) for audit/repair/lint")
	sessionID := fs.String("s", "", "Session id for multi-turn generation")
	contractMode := fs.String("mode", "", "Contract mode hint (escrow, vesting, multisig, ...)")
	ruleID := fs.String("rule", "", "Target rule id for repair")
	level := fs.String("level", "standard", "Security level for generation")
	concurrency := fs.Int("concurrency", 4, "Benchmark worker concurrency")
	verbose := fs.Bool("v", false, "Verbose output")
	timeout := fs.Duration("timeout", 120*time.Second, "Per-oracle request timeout")
	proxy := fs.String("proxy", "", "Optional HTTP/SOCKS5 proxy for AI providers")
	reportDir := fs.String("r", "reports", "Markdown report output directory")
	dataset := fs.String("dataset", "benchmark/dataset.json", "Dataset file for benchmark")
	jsonOut := fs.Bool("json", false, "Emit machine-readable JSON")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	cfg := &CLIConfig{
		Mode:         strings.TrimSpace(*mode),
		Intent:       strings.TrimSpace(*intent),
		File:         strings.TrimSpace(*file),
		SessionID:    strings.TrimSpace(*sessionID),
		ContractMode: strings.TrimSpace(*contractMode),
		RuleID:       strings.TrimSpace(*ruleID),
		SecurityLvl:  strings.TrimSpace(*level),
		Concurrency:  *concurrency,
		Verbose:      *verbose,
		Timeout:      *timeout,
		Proxy:        strings.TrimSpace(*proxy),
		ReportDir:    strings.TrimSpace(*reportDir),
		Dataset:      strings.TrimSpace(*dataset),
		JSONOutput:   *jsonOut,
	}

	// Smart detection: a bare -f implies audit, a bare -i implies generate.
	if cfg.Mode == "" {
		if cfg.File != "" && looksLikeContractFile(cfg.File) {
			cfg.Mode = "audit"
		} else if cfg.Intent != "" {
			cfg.Mode = "generate"
		}
	}

	if cfg.File != "" && !filepath.IsAbs(cfg.File) {
		cwd, _ := os.Getwd()
		cfg.File = filepath.Join(cwd, cfg.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Run() error {
	cfg, err := ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()

	go func() {
		count := 0
		for range sigChan {
			count++
			if count == 1 {
				fmt.Fprintln(os.Stderr, "\nInterrupt received, stopping... (press Ctrl+C again to force exit)")
				cancel()
				continue
			}
			fmt.Fprintln(os.Stderr, "\nForce exiting...")
			os.Exit(130)
		}
	}()

	return Execute(ctx, cfg)
}

func Print() {
	ui.PrintBanner()
}

func PrintFatal(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
