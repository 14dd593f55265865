package compiler

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// Result is the outcome of one cashc invocation.
type Result struct {
	Success  bool
	Artifact string
	Err      *CompileError
}

// Compiler validates a contract draft syntactically.
type Compiler interface {
	Compile(ctx context.Context, code string) Result
}

const defaultCompileTimeout = 10 * time.Second

// Cashc shells out to the cashc binary with --hex. Binary name and timeout
// come from the compiler config block; zero values fall back to the
// defaults.
type Cashc struct {
	mu      sync.Mutex
	name    string
	binary  string
	timeout time.Duration
}

func NewCashc(binary string, timeout time.Duration) *Cashc {
	if binary == "" {
		binary = "cashc"
	}
	if timeout <= 0 {
		timeout = defaultCompileTimeout
	}
	return &Cashc{name: binary, timeout: timeout}
}

// resolveBinary locates the configured binary once and caches the path.
// On Windows npm installs cashc.cmd under %APPDATA%\npm, which LookPath
// misses.
func (c *Cashc) resolveBinary() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binary != "" {
		return c.binary, nil
	}

	if path, err := exec.LookPath(c.name); err == nil {
		c.binary = path
		return path, nil
	}
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			npmPath := filepath.Join(appdata, "npm", c.name+".cmd")
			if _, err := os.Stat(npmPath); err == nil {
				c.binary = npmPath
				return npmPath, nil
			}
		}
	}
	return "", errors.New(c.name + " not found")
}

func (c *Cashc) Compile(ctx context.Context, code string) Result {
	bin, err := c.resolveBinary()
	if err != nil {
		logger.Error(c.name + " compiler not installed or not in PATH")
		return Result{Err: &CompileError{
			Type: CompilerNotFoundError,
			Raw:  c.name + " compiler not installed or not in PATH",
			Hint: "npm install -g cashc",
		}}
	}

	tmp, err := os.CreateTemp("", "*.cash")
	if err != nil {
		return Result{Err: &CompileError{Type: InternalError, Raw: err.Error()}}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return Result{Err: &CompileError{Type: InternalError, Raw: err.Error()}}
	}
	tmp.Close()

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, bin, tmpPath, "--hex")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		return Result{Err: &CompileError{Type: TimeoutError, Raw: "compiler timeout"}}
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return Result{Err: Classify(msg)}
	}

	artifact := strings.TrimSpace(stdout.String())
	if err := validateArtifact(artifact); err != nil {
		return Result{Err: &CompileError{Type: InternalError, Raw: err.Error()}}
	}
	return Result{Success: true, Artifact: artifact}
}

// validateArtifact checks the emitted bytecode is well-formed hex.
func validateArtifact(artifact string) error {
	if artifact == "" {
		return errors.New("compiler produced empty artifact")
	}
	h := artifact
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	if _, err := hexutil.Decode(h); err != nil {
		return errors.New("compiler artifact is not valid hex: " + err.Error())
	}
	return nil
}
