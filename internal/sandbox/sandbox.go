// Package sandbox runs user Python code against one workspace. All
// failures come back as the string result of the call so the LLM sees
// them as tool output, never as Go errors.
package sandbox

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/workspace"
)

//go:embed preamble.py
var preambleSource string

//go:embed postamble.py
var postambleSource string

// Sandbox executes Python in one child interpreter per call, cwd pinned
// to the workspace root.
type Sandbox struct {
	ws        *workspace.Workspace
	pythonBin string
	timeout   time.Duration
	maxOutput int
}

func New(ws *workspace.Workspace, cfg config.SandboxConfig) *Sandbox {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxOutput := cfg.MaxOutput
	if maxOutput <= 0 {
		maxOutput = 256 << 10
	}
	bin := cfg.PythonBin
	if bin == "" {
		bin = "python3"
	}
	return &Sandbox{ws: ws, pythonBin: bin, timeout: timeout, maxOutput: maxOutput}
}

// ExecuteInline writes code to a temp script wrapped in the plotting
// preamble/postamble and runs it.
func (s *Sandbox) ExecuteInline(ctx context.Context, code string) string {
	ctx, span := otel.Tracer("paperforge/sandbox").Start(ctx, "sandbox.exec")
	defer span.End()
	span.SetAttributes(attribute.Int("code_bytes", len(code)))
	return s.run(ctx, code)
}

// SaveAndExecute persists the snippet under code/ and then executes it.
func (s *Sandbox) SaveAndExecute(ctx context.Context, code, filename string) string {
	name := sanitizePyName(filename)
	rel := filepath.Join("code", name)
	if err := s.ws.Write(rel, code); err != nil {
		return fmt.Sprintf("保存失败: %v", err)
	}
	out := s.ExecuteInline(ctx, code)
	return fmt.Sprintf("代码已保存到 %s\n%s", rel, out)
}

// ExecuteFile reads a script inside the workspace and executes it.
func (s *Sandbox) ExecuteFile(ctx context.Context, path string) string {
	fc, err := s.ws.Read(path)
	if err != nil {
		return fmt.Sprintf("读取文件失败: %v", err)
	}
	if fc.Kind != workspace.KindText {
		return fmt.Sprintf("无法执行非文本文件: %s", path)
	}
	return s.ExecuteInline(ctx, fc.Content)
}

// EditFile replaces an existing script under code/, keeping a timestamped
// backup beside it. Missing files fail.
func (s *Sandbox) EditFile(filename, newCode string) string {
	name := sanitizePyName(filename)
	rel := filepath.Join("code", name)
	abs, err := s.ws.Resolve(rel)
	if err != nil {
		return fmt.Sprintf("无效文件名: %v", err)
	}
	old, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("文件不存在，无法编辑: %s", rel)
	}

	backup := abs + "." + time.Now().Format("20060102_150405") + ".bak"
	if err := os.WriteFile(backup, old, 0644); err != nil {
		return fmt.Sprintf("备份失败: %v", err)
	}
	if err := os.WriteFile(abs, []byte(newCode), 0644); err != nil {
		return fmt.Sprintf("写入失败: %v", err)
	}
	return fmt.Sprintf("文件已更新: %s (备份: %s)", rel, filepath.Base(backup))
}

// ListFiles lists code/*.py with sizes.
func (s *Sandbox) ListFiles() string {
	entries, err := os.ReadDir(s.ws.CodeDir())
	if err != nil {
		return fmt.Sprintf("读取代码目录失败: %v", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "代码目录为空"
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("代码文件:\n")
	for _, n := range names {
		st, err := os.Stat(filepath.Join(s.ws.CodeDir(), n))
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s (%d bytes)\n", n, st.Size()))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (s *Sandbox) run(ctx context.Context, code string) string {
	tmpFile, err := os.CreateTemp("", "paperforge-exec-*.py")
	if err != nil {
		return fmt.Sprintf("创建临时脚本失败: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	script := preambleSource + "\n" + code + "\n" + postambleSource
	if _, err := tmpFile.WriteString(script); err != nil {
		tmpFile.Close()
		return fmt.Sprintf("写入临时脚本失败: %v", err)
	}
	tmpFile.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.pythonBin, tmpFile.Name())
	cmd.Dir = s.ws.Root()
	cmd.Env = s.buildEnv()

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &cappedWriter{w: &stdoutBuf, max: s.maxOutput}
	cmd.Stderr = &cappedWriter{w: &stderrBuf, max: s.maxOutput}

	err = cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("代码执行超时（%d秒）…", int(s.timeout.Seconds()))
	}
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return fmt.Sprintf("执行错误 (返回码: %d):\n%s", exitCode, stderrBuf.String())
	}

	out := stdoutBuf.String()
	if strings.TrimSpace(out) == "" {
		return "代码执行完成，无输出"
	}
	return out
}

func (s *Sandbox) buildEnv() []string {
	env := os.Environ()
	env = append(env,
		"WORKSPACE_DIR="+s.ws.Root(),
		"PYTHONIOENCODING=utf-8",
	)
	pythonPath := s.ws.CodeDir()
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		pythonPath += string(os.PathListSeparator) + existing
	}
	env = append(env, "PYTHONPATH="+pythonPath)
	return env
}

// sanitizePyName strips directories from a user-supplied script name and
// guarantees a .py suffix.
func sanitizePyName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." {
		name = "script"
	}
	if !strings.HasSuffix(name, ".py") {
		name += ".py"
	}
	return name
}

// cappedWriter keeps at most max bytes, dropping the rest.
type cappedWriter struct {
	w   *strings.Builder
	max int
}

func (cw *cappedWriter) Write(p []byte) (int, error) {
	if cw.w.Len() < cw.max {
		remaining := cw.max - cw.w.Len()
		if len(p) > remaining {
			p = p[:remaining]
		}
		cw.w.Write(p)
	}
	return len(p), nil
}
