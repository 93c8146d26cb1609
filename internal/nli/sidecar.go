package nli

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

//go:embed scripts/nli_server.py
var embeddedScript string

//go:embed scripts/requirements.txt
var embeddedRequirements string

const DefaultModel = "MoritzLaurer/DeBERTa-v3-base-mnli-fever-anli"

// SidecarConfig describes the Python worker hosting the NLI model.
type SidecarConfig struct {
	Python    string // interpreter, e.g. python3 or a venv binary
	ScriptDir string // where the embedded worker script is written
	ModelName string // hub id used when ModelPath does not exist
	ModelPath string // local model directory
	MaxLength int    // tokenizer truncation
}

type logger interface {
	Info(format string, v ...any)
	Debug(format string, v ...any)
}

type sidecarConfigMsg struct {
	ModelName string `json:"model_name"`
	ModelPath string `json:"model_path,omitempty"`
	MaxLength int    `json:"max_length"`
}

type readyMsg struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Error  string `json:"error,omitempty"`
}

type classifyReq struct {
	Premise    string   `json:"premise"`
	Hypotheses []string `json:"hypotheses"`
}

type classifyResp struct {
	Entailment []float64 `json:"entailment"`
	Error      string    `json:"error,omitempty"`
}

// session speaks the line-delimited JSON protocol. One request is in flight
// at a time.
type session struct {
	mu sync.Mutex
	w  io.Writer
	r  *bufio.Reader
}

func newSession(w io.Writer, r io.Reader) *session {
	return &session{w: w, r: bufio.NewReader(r)}
}

func (s *session) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	b = append(b, '\n')
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *session) recv(v any) error {
	line, err := s.r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("worker closed stdout")
		}
		return fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	return nil
}

// handshake sends the config line and waits for the ready line.
func (s *session) handshake(cfg sidecarConfigMsg) (readyMsg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send(cfg); err != nil {
		return readyMsg{}, err
	}
	var rm readyMsg
	if err := s.recv(&rm); err != nil {
		return readyMsg{}, err
	}
	if rm.Status != "ready" {
		if rm.Error != "" {
			return rm, fmt.Errorf("worker failed to load model: %s", rm.Error)
		}
		return rm, fmt.Errorf("unexpected startup status: %q", rm.Status)
	}
	return rm, nil
}

func (s *session) Classify(ctx context.Context, premise string, hypotheses []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(hypotheses) == 0 {
		return []float64{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send(classifyReq{Premise: premise, Hypotheses: hypotheses}); err != nil {
		return nil, err
	}
	var resp classifyResp
	if err := s.recv(&resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("worker error: %s", resp.Error)
	}
	if len(resp.Entailment) != len(hypotheses) {
		return nil, fmt.Errorf("worker returned %d probabilities for %d hypotheses", len(resp.Entailment), len(hypotheses))
	}
	out := make([]float64, len(resp.Entailment))
	for i, p := range resp.Entailment {
		switch {
		case p != p, p < 0:
			out[i] = 0
		case p > 1:
			out[i] = 1
		default:
			out[i] = p
		}
	}
	return out, nil
}

// Sidecar is a running Python NLI worker.
type Sidecar struct {
	*session
	cmd   *exec.Cmd
	stdin io.WriteCloser
	model string
}

// Model is the model source the worker reported as loaded.
func (s *Sidecar) Model() string { return s.model }

// StartSidecar writes the worker script, starts the interpreter and blocks
// until the model is loaded. Loading a DeBERTa checkpoint takes a while; ctx
// bounds the wait.
func StartSidecar(ctx context.Context, cfg SidecarConfig, log logger) (*Sidecar, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 512
	}
	script, err := extractScript(cfg.ScriptDir, log)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(cfg.Python, script)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start %s: %w", cfg.Python, err)
	}

	sc := &Sidecar{session: newSession(stdin, stdout), cmd: cmd, stdin: stdin}
	log.Info("waiting for NLI worker (pid %d) to load %s", cmd.Process.Pid, cfg.ModelName)

	type result struct {
		rm  readyMsg
		err error
	}
	done := make(chan result, 1)
	go func() {
		rm, err := sc.handshake(sidecarConfigMsg{ModelName: cfg.ModelName, ModelPath: cfg.ModelPath, MaxLength: cfg.MaxLength})
		done <- result{rm, err}
	}()

	select {
	case <-ctx.Done():
		sc.Close()
		return nil, fmt.Errorf("waiting for NLI worker: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			sc.Close()
			return nil, res.err
		}
		sc.model = res.rm.Model
	}
	log.Info("NLI worker ready (model=%s)", sc.model)
	return sc, nil
}

// Close stops the worker.
func (s *Sidecar) Close() error {
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	return nil
}

// SidecarLoader adapts StartSidecar to a Lazy loader.
func SidecarLoader(cfg SidecarConfig, log logger) Loader {
	return func(ctx context.Context) (Classifier, error) {
		return StartSidecar(ctx, cfg, log)
	}
}

func extractScript(dir string, log logger) (string, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "rubricscore-nli")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	script := filepath.Join(dir, "nli_server.py")
	if _, err := os.Stat(script); err == nil {
		log.Debug("NLI worker script already present at %s", script)
		return script, nil
	}
	if err := os.WriteFile(script, []byte(embeddedScript), 0o755); err != nil {
		return "", fmt.Errorf("write worker script: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(embeddedRequirements), 0o644); err != nil {
		return "", fmt.Errorf("write requirements: %w", err)
	}
	log.Info("extracted NLI worker script to %s", script)
	return script, nil
}
