package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tessera-ai/tessera/internal/shellexec"
)

// DefaultExecTimeout bounds execute/execute_script calls that do not
// specify their own timeout.
const DefaultExecTimeout = 120 * time.Second

// ExecTool runs shell commands through the subprocess runtime.
type ExecTool struct {
	runner   *shellexec.Runner
	skillEnv func() map[string]string
}

// NewExecTool creates the execute tool. skillEnv, when non-nil, supplies
// the active skill's env injection for each call.
func NewExecTool(runner *shellexec.Runner, skillEnv func() map[string]string) *ExecTool {
	return &ExecTool{runner: runner, skillEnv: skillEnv}
}

type execArgs struct {
	Command string  `json:"command" jsonschema:"description=Shell command to execute"`
	Timeout float64 `json:"timeout,omitempty" jsonschema:"description=Timeout in seconds"`
	Cwd     string  `json:"cwd,omitempty" jsonschema:"description=Working directory"`
}

func (t *ExecTool) Name() string { return "execute" }

func (t *ExecTool) Description() string {
	return "Run a shell command and return its combined output."
}

func (t *ExecTool) Schema() json.RawMessage {
	return schemaFor(&execArgs{})
}

func (t *ExecTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var args execArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return Errorf("invalid parameters: %v", err), nil
	}
	if strings.TrimSpace(args.Command) == "" {
		return Errorf("command is required"), nil
	}

	req := t.request(ctx, args.Cwd, args.Timeout)
	req.Command = args.Command
	result := t.runner.Execute(ctx, req)
	return renderExecResult(result), nil
}

func (t *ExecTool) request(ctx context.Context, cwd string, timeoutSeconds float64) shellexec.Request {
	req := shellexec.Request{
		Cwd:     cwd,
		Timeout: DefaultExecTimeout,
	}
	if timeoutSeconds > 0 {
		req.Timeout = time.Duration(timeoutSeconds * float64(time.Second))
	}
	if t.skillEnv != nil {
		req.SkillEnv = t.skillEnv()
	}
	if sink := OutputSinkFromContext(ctx); sink != nil {
		req.OnOutput = func(chunk string) { sink(chunk) }
	}
	return req
}

// ScriptTool runs a multi-line script body via a temp file.
type ScriptTool struct {
	exec *ExecTool
}

// NewScriptTool creates the execute_script tool sharing the exec tool's
// runner and env wiring.
func NewScriptTool(exec *ExecTool) *ScriptTool {
	return &ScriptTool{exec: exec}
}

type scriptArgs struct {
	Script  string  `json:"script" jsonschema:"description=Script body to execute"`
	Timeout float64 `json:"timeout,omitempty" jsonschema:"description=Timeout in seconds"`
	Cwd     string  `json:"cwd,omitempty" jsonschema:"description=Working directory"`
}

func (t *ScriptTool) Name() string { return "execute_script" }

func (t *ScriptTool) Description() string {
	return "Run a multi-line shell script and return its combined output."
}

func (t *ScriptTool) Schema() json.RawMessage {
	return schemaFor(&scriptArgs{})
}

func (t *ScriptTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var args scriptArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return Errorf("invalid parameters: %v", err), nil
	}
	if args.Script == "" {
		return Errorf("script is required"), nil
	}

	result := t.exec.runner.ExecuteScript(ctx, args.Script, t.exec.request(ctx, args.Cwd, args.Timeout))
	return renderExecResult(result), nil
}

func renderExecResult(result shellexec.Result) *Result {
	if result.Success {
		return &Result{Content: result.Output}
	}
	content := result.Output
	if result.Err != "" {
		if content != "" {
			content += "\n"
		}
		content += "error: " + result.Err
	}
	return &Result{Content: content, IsError: true}
}
