// Package glreload swaps GPU pipelines built from generated scene source
// without ever leaving the renderer without a working program.
package glreload

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/glbuild"
)

// ErrShaderBuild matches every error returned by a failed pipeline build.
var ErrShaderBuild = errors.New("shader build failed")

// Compiler turns full shader source into a GPU program.
type Compiler interface {
	Compile(source string) (Program, error)
}

// Program is a compiled pipeline owned by a [Manager].
type Program interface {
	Release()
}

// Validator checks generated scene source before it is handed to the [Compiler].
type Validator interface {
	Validate(sceneSource string) error
}

// Stage is the build step an error originated in.
type Stage uint8

const (
	StageValidate Stage = iota
	StageCompile
)

func (s Stage) String() string {
	if s == StageValidate {
		return "validate"
	}
	return "compile"
}

// BuildError is returned by [Manager.Update] and [Manager.Rebuild] when the
// new pipeline could not be built. The previous pipeline stays active.
type BuildError struct {
	Stage Stage
	// Source is the full shader source that failed.
	Source string
	// Panicked is set when the backend panicked instead of returning an error.
	Panicked bool
	Err      error
}

func (e *BuildError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("%s (%s panicked): %v", ErrShaderBuild, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrShaderBuild, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func (e *BuildError) Is(target error) bool { return target == ErrShaderBuild }

// State is the build state of a [Manager].
type State uint8

const (
	StateIdle State = iota
	StateCompiling
	StateCompiled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateCompiled:
		return "compiled"
	case StateFailed:
		return "failed"
	}
	return "State(" + fmt.Sprint(uint8(s)) + ")"
}

// Outcome is the result of a call to [Manager.Update].
type Outcome uint8

const (
	// Unchanged means the scene source matched the last generated source and no build ran.
	Unchanged Outcome = iota
	// Swapped means a new pipeline was built and is now active.
	Swapped
	// Failed means the build failed and the previous pipeline is still active.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Swapped:
		return "swapped"
	case Failed:
		return "failed"
	}
	return "Outcome(" + fmt.Sprint(uint8(o)) + ")"
}

// Config configures a [Manager]. Compiler is required.
type Config struct {
	Compiler  Compiler
	Validator Validator
	// Template wraps scene source into a full shader. Zero value uses [DefaultTemplate].
	Template Template
	// InitialScene is the scene source of the first pipeline. Empty uses the
	// source generated for a scene with no shapes.
	InitialScene string
	Logger       *slog.Logger
}

type pipeline struct {
	prog   Program
	source string
}

// Manager owns the active pipeline and the programs it replaced. Update,
// Rebuild, Collect and Close must be called from the goroutine owning the
// GPU context. Active may be called from any goroutine.
type Manager struct {
	compiler  Compiler
	validator Validator
	tmpl      Template
	log       *slog.Logger

	active  atomic.Pointer[pipeline]
	retired []Program

	state         State
	lastGenerated string
	lastErr       error
	builds        int
}

// NewManager builds the initial pipeline. It fails if the initial scene does not build.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Compiler == nil {
		return nil, errors.New("nil Compiler")
	}
	m := &Manager{
		compiler:  cfg.Compiler,
		validator: cfg.Validator,
		tmpl:      cfg.Template,
		log:       cfg.Logger,
	}
	if m.tmpl.IsZero() {
		m.tmpl = DefaultTemplate()
	}
	if m.log == nil {
		m.log = slog.New(slog.DiscardHandler)
	}
	initial := cfg.InitialScene
	if initial == "" {
		res, err := glbuild.NewPasser().Pass(&sdfgraph.Union{
			Transform:   sdfgraph.IdentityTransform(),
			Combination: sdfgraph.UnionCombination(),
		})
		if err != nil {
			return nil, err
		}
		initial = res.Source
	}
	if _, err := m.build(initial); err != nil {
		return nil, err
	}
	return m, nil
}

// Update builds a pipeline from sceneSource if it differs from the last
// generated source. On failure the previous pipeline stays active and the
// returned error matches [ErrShaderBuild].
func (m *Manager) Update(sceneSource string) (Outcome, error) {
	if sceneSource == m.lastGenerated {
		return Unchanged, nil
	}
	return m.build(sceneSource)
}

// Rebuild builds the last generated source again regardless of change.
func (m *Manager) Rebuild() (Outcome, error) {
	return m.build(m.lastGenerated)
}

func (m *Manager) build(sceneSource string) (Outcome, error) {
	m.lastGenerated = sceneSource
	m.builds++
	m.setState(StateCompiling)
	prog, err := m.compile(sceneSource)
	if err != nil {
		m.lastErr = err
		m.setState(StateFailed)
		m.log.Warn("pipeline build failed, keeping previous", slog.Int("build", m.builds), slog.String("err", err.Error()))
		m.setState(StateIdle)
		return Failed, err
	}
	m.lastErr = nil
	m.setState(StateCompiled)
	old := m.active.Swap(&pipeline{prog: prog, source: sceneSource})
	if old != nil {
		m.retired = append(m.retired, old.prog)
	}
	m.log.Info("pipeline swapped", slog.Int("build", m.builds), slog.Int("retired", len(m.retired)))
	m.setState(StateIdle)
	return Swapped, nil
}

func (m *Manager) compile(sceneSource string) (prog Program, err error) {
	stage := StageValidate
	full := m.tmpl.Substitute(sceneSource)
	defer func() {
		if r := recover(); r != nil {
			prog = nil
			err = &BuildError{Stage: stage, Source: full, Panicked: true, Err: fmt.Errorf("%v", r)}
		}
	}()
	if m.validator != nil {
		if err = m.validator.Validate(sceneSource); err != nil {
			return nil, &BuildError{Stage: stage, Source: full, Err: err}
		}
	}
	stage = StageCompile
	prog, err = m.compiler.Compile(full)
	if err != nil {
		if prog != nil {
			prog.Release()
		}
		return nil, &BuildError{Stage: stage, Source: full, Err: err}
	} else if prog == nil {
		return nil, &BuildError{Stage: stage, Source: full, Err: errors.New("compiler returned nil program")}
	}
	return prog, nil
}

func (m *Manager) setState(s State) {
	if m.state != s {
		m.log.Debug("pipeline state", slog.String("from", m.state.String()), slog.String("to", s.String()))
	}
	m.state = s
}

// Active returns the program currently used for rendering. It is never nil
// for a Manager returned by [NewManager] until Close is called.
func (m *Manager) Active() Program {
	p := m.active.Load()
	if p == nil {
		return nil
	}
	return p.prog
}

// State returns the current build state.
func (m *Manager) State() State { return m.state }

// LastGood returns the scene source of the active pipeline.
func (m *Manager) LastGood() string {
	p := m.active.Load()
	if p == nil {
		return ""
	}
	return p.source
}

// LastGenerated returns the most recent scene source passed to a build,
// successful or not.
func (m *Manager) LastGenerated() string { return m.lastGenerated }

// LastError returns the error of the last build or nil if it succeeded.
func (m *Manager) LastError() error { return m.lastErr }

// Builds returns the number of builds attempted, including the initial one.
func (m *Manager) Builds() int { return m.builds }

// Source returns the full shader source for sceneSource.
func (m *Manager) Source(sceneSource string) string { return m.tmpl.Substitute(sceneSource) }

// Collect releases programs replaced by swaps. Call it once no in-flight
// frame references them.
func (m *Manager) Collect() int {
	n := len(m.retired)
	for i, p := range m.retired {
		p.Release()
		m.retired[i] = nil
	}
	m.retired = m.retired[:0]
	return n
}

// Close releases every program, including the active one.
func (m *Manager) Close() {
	m.Collect()
	if p := m.active.Swap(nil); p != nil {
		p.prog.Release()
	}
}
