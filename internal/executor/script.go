package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const (
	defaultScriptTimeout = 30 * time.Second
	maxScriptTimeout     = 300 * time.Second
)

var interpreters = map[string]string{
	"node":   "node",
	"python": "python3",
	"bash":   "bash",
}

// ScriptExecutor is the "script" node kind (spec §4.2), adapted from the
// reference's BashTaskExecutor: the command is no longer a fixed bash
// string but a scratch file written per-run, the prior node's output is
// injected as a named input, and the interpreter is chosen by config.
type ScriptExecutor struct {
	workingDir string
}

// NewScriptExecutor creates a new script executor rooted at workingDir.
func NewScriptExecutor(workingDir string) *ScriptExecutor {
	return &ScriptExecutor{workingDir: workingDir}
}

func (e *ScriptExecutor) Kind() models.NodeKind { return models.NodeKindScript }

func (e *ScriptExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	body, _ := config["script"].(string)
	if body == "" {
		return nil, errs.New(errs.KindValidation, "script task requires a script body", nil)
	}
	interpreter, _ := config["interpreter"].(string)
	if interpreter == "" {
		interpreter = "bash"
	}
	bin, ok := interpreters[interpreter]
	if !ok {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("unsupported script interpreter %q", interpreter), nil)
	}

	timeout := defaultScriptTimeout
	if ms, ok := config["timeoutMs"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	if timeout > maxScriptTimeout {
		timeout = maxScriptTimeout
	}

	ext := map[string]string{"node": ".js", "python": ".py", "bash": ".sh"}[interpreter]
	scratchPath := filepath.Join(e.workingDir, fmt.Sprintf("%s-%s%s", rc.NodeID, uuid.NewString(), ext))
	if err := os.MkdirAll(e.workingDir, 0o755); err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to create script working dir: %v", err), err)
	}
	if err := os.WriteFile(scratchPath, []byte(body), 0o700); err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to write scratch script: %v", err), err)
	}
	defer os.Remove(scratchPath)

	inputJSON, err := json.Marshal(rc.PriorOutput)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to marshal prior output: %v", err), err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, scratchPath)
	cmd.Dir = e.workingDir
	cmd.Env = append(os.Environ(), "TASK_INPUT="+string(inputJSON))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	output := map[string]interface{}{
		"stdout": stdout.String(),
		"stderr": stderr.String(),
		"exitCode": func() int {
			if exitErr, ok := runErr.(*exec.ExitError); ok {
				return exitErr.ExitCode()
			}
			if runErr == nil {
				return 0
			}
			return -1
		}(),
	}

	if runCtx.Err() != nil {
		return nil, errs.New(errs.KindTimeout, fmt.Sprintf("script exceeded %s", timeout), runCtx.Err())
	}
	if runErr != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("script exited with error: %v", runErr), runErr)
	}

	return &TaskResult{Outcome: OutcomeSuccess, Output: output}, nil
}
