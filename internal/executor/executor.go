package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pairslate/server/internal/logger"
)

// rate limiter for code execution dispatch (5 runs/second with burst capacity of 10)
var executionRateLimiter = rate.NewLimiter(5, 10)

// Executor runs untrusted snippets through the platform toolchains with a
// hard timeout and a cap on captured output. Each run gets its own temp
// workspace, removed when the run finishes.
type Executor struct {
	timeout       time.Duration
	maxOutputSize int
}

// outcome of one run, in the shape clients expect
type Result struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Error         string `json:"error,omitempty"`
	ExecutionTime int64  `json:"executionTime"` // milliseconds
}

func New(timeout time.Duration, maxOutputSize int) *Executor {
	return &Executor{
		timeout:       timeout,
		maxOutputSize: maxOutputSize,
	}
}

// runs a snippet in the requested language. Timeouts and toolchain errors
// surface as a failed Result, never as a returned error; the error return is
// reserved for dispatch problems (rate limit, workspace creation).
func (e *Executor) Execute(ctx context.Context, code, language, input string) (Result, error) {
	if !executionRateLimiter.Allow() {
		return Result{}, errors.New("execution rate limit exceeded")
	}

	tempDir, err := os.MkdirTemp("", "pairslate-exec-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create execution workspace: %w", err)
	}
	defer os.RemoveAll(tempDir) //nolint:errcheck,gosec // G104: best-effort cleanup

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	var result Result

	switch strings.ToLower(language) {
	case "javascript", "js":
		result = e.executeJavaScript(runCtx, code, input)
	case "python", "py":
		result = e.executePython(runCtx, tempDir, code, input)
	case "java":
		result = e.executeJava(runCtx, tempDir, code, input)
	case "cpp", "c++":
		result = e.executeCpp(runCtx, tempDir, code, input)
	default:
		result = Result{
			Success: false,
			Error:   fmt.Sprintf("Unsupported language: %s", language),
		}
	}

	result.ExecutionTime = time.Since(start).Milliseconds()
	result.Output = e.truncate(result.Output, "... (output truncated)")
	result.Error = e.truncate(result.Error, "... (error truncated)")

	logger.Debug("code execution finished",
		"language", language,
		"success", result.Success,
		"execution_time_ms", result.ExecutionTime,
	)

	return result, nil
}

// wraps the snippet so console output is captured and a readline-style
// input helper is available, then runs it with node -e
func (e *Executor) executeJavaScript(ctx context.Context, code, input string) Result {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	wrappedCode := fmt.Sprintf(`
      const input = %s;
      const inputLines = input.split('\n');
      let inputIndex = 0;

      const readline = {
        question: (query, callback) => {
          if (inputIndex < inputLines.length) {
            callback(inputLines[inputIndex++]);
          } else {
            callback('');
          }
        }
      };

      let output = '';
      const originalLog = console.log;
      console.log = (...args) => {
        output += args.join(' ') + '\n';
      };

      try {
        %s
        console.log = originalLog;
        process.stdout.write(JSON.stringify({ success: true, output: output.trim() }));
      } catch (error) {
        console.log = originalLog;
        process.stdout.write(JSON.stringify({ success: false, error: error.message, output: output.trim() }));
      }
    `, inputJSON, code)

	stdout, stderr, err := runCommand(ctx, "", "node", []string{"-e", wrappedCode})
	if err != nil && stdout == "" {
		return Result{Success: false, Error: commandError(err, stderr)}
	}

	// the wrapper reports its own verdict on stdout
	var wrapped struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
		Error   string `json:"error"`
	}
	if unmarshalErr := json.Unmarshal([]byte(stdout), &wrapped); unmarshalErr != nil {
		return Result{
			Success: false,
			Output:  stdout,
			Error:   fmt.Sprintf("Parse error: %s", unmarshalErr),
		}
	}

	return Result{Success: wrapped.Success, Output: wrapped.Output, Error: wrapped.Error}
}

// writes the snippet to a temp file with stdin wired to the provided input
// and runs it with the python interpreter
func (e *Executor) executePython(ctx context.Context, tempDir, code, input string) Result {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	var indented strings.Builder
	for _, line := range strings.Split(code, "\n") {
		indented.WriteString("    ")
		indented.WriteString(line)
		indented.WriteString("\n")
	}

	wrappedCode := fmt.Sprintf(`
import sys
import io

sys.stdin = io.StringIO(%s)

try:
%s
except Exception as e:
    print(f"Error: {e}", file=sys.stderr)
    sys.exit(1)
`, inputJSON, indented.String())

	filePath := filepath.Join(tempDir, "main.py")
	if err := os.WriteFile(filePath, []byte(wrappedCode), 0o600); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	stdout, stderr, err := runCommand(ctx, "", "python3", []string{filePath})
	return commandResult(stdout, stderr, err)
}

// compiles the snippet with javac and runs the resulting class. Snippets
// without a Main class are wrapped into one.
func (e *Executor) executeJava(ctx context.Context, tempDir, code, input string) Result {
	javaCode := code

	if !strings.Contains(code, "class Main") {
		var indented strings.Builder
		for _, line := range strings.Split(code, "\n") {
			indented.WriteString("        ")
			indented.WriteString(line)
			indented.WriteString("\n")
		}

		javaCode = fmt.Sprintf(`
public class Main {
    public static void main(String[] args) {
%s    }
}`, indented.String())
	}

	filePath := filepath.Join(tempDir, "Main.java")
	if err := os.WriteFile(filePath, []byte(javaCode), 0o600); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	_, stderr, err := runCommand(ctx, "", "javac", []string{filePath})
	if err != nil {
		return Result{
			Success: false,
			Error:   fmt.Sprintf("Compilation error: %s", commandError(err, stderr)),
		}
	}

	stdout, stderr, err := runCommand(ctx, input, "java", []string{"-cp", tempDir, "Main"})
	return commandResult(stdout, stderr, err)
}

// compiles the snippet with g++ and runs the resulting binary
func (e *Executor) executeCpp(ctx context.Context, tempDir, code, input string) Result {
	sourcePath := filepath.Join(tempDir, "main.cpp")
	binaryPath := filepath.Join(tempDir, "main")

	if err := os.WriteFile(sourcePath, []byte(code), 0o600); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	_, stderr, err := runCommand(ctx, "", "g++", []string{"-o", binaryPath, sourcePath})
	if err != nil {
		return Result{
			Success: false,
			Error:   fmt.Sprintf("Compilation error: %s", commandError(err, stderr)),
		}
	}

	stdout, stderr, err := runCommand(ctx, input, binaryPath, nil)
	return commandResult(stdout, stderr, err)
}

// caps a string at the configured output size, appending a marker when cut
func (e *Executor) truncate(s, marker string) string {
	if len(s) <= e.maxOutputSize {
		return s
	}
	return s[:e.maxOutputSize] + "\n" + marker
}

// runs a command under the execution context, feeding it the given stdin
func runCommand(ctx context.Context, input, name string, args []string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	err = cmd.Run()

	if ctx.Err() != nil {
		err = ctx.Err()
	}

	return strings.TrimSpace(outBuf.String()), strings.TrimSpace(errBuf.String()), err
}

// shapes a plain run into a Result
func commandResult(stdout, stderr string, err error) Result {
	if err != nil {
		return Result{
			Success: false,
			Output:  stdout,
			Error:   commandError(err, stderr),
		}
	}

	return Result{Success: true, Output: stdout, Error: stderr}
}

// prefers the process's own stderr over the exec error text
func commandError(err error, stderr string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Execution timed out"
	}
	if stderr != "" {
		return stderr
	}
	return err.Error()
}
