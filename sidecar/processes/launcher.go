package processes

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	defaultRuntime = "bun"

	envLaunchID       = "SIDECAR_LAUNCH_ID"
	envInternalSecret = "SIDECAR_INTERNAL_SECRET"
)

var defaultRuntimeArgs = []string{"run"}

// EventRecorder receives backend lifecycle events. audit.Logger implements it.
type EventRecorder interface {
	LogLaunch(launchID string, pid, port int, entryPoint string) error
	LogLaunchFailed(reason string) error
	LogExited(launchID string, pid int, status string) error
	LogTerminated(launchID string, pid int) error
}

type nopRecorder struct{}

func (nopRecorder) LogLaunch(string, int, int, string) error { return nil }
func (nopRecorder) LogLaunchFailed(string) error             { return nil }
func (nopRecorder) LogExited(string, int, string) error      { return nil }
func (nopRecorder) LogTerminated(string, int) error          { return nil }

// TokenIssuer mints the per-launch token handed to the host. The backend gets
// the signing secret so it can verify that token. launchtoken.Issuer implements it.
type TokenIssuer interface {
	Issue(launchID string, port int) (string, error)
	SecretHex() string
}

// Config holds configuration options for the Supervisor.
type Config struct {
	PortManager *PortManager        // Optional, defaults to DefaultMinPort-DefaultMaxPort
	Resolver    *EntryPointResolver // Optional, defaults to DefaultEntryPoint at DefaultAscents
	DataDir     string              // App-private directory for the backend log
	LogFileName string              // Optional, defaults to backend.log
	Runtime     string              // Optional, defaults to bun
	RuntimeArgs []string            // Optional, defaults to ["run"]
	EnvFileName string              // Optional, defaults to .env
	EnvFileMode EnvFileMode         // Optional, defaults to EnvFileFlag
	Env         []string            // Extra KEY=VALUE pairs for the backend
	Recorder    EventRecorder       // Optional
	Tokens      TokenIssuer         // Optional; no token is minted when nil
	Logger      *slog.Logger        // Optional, defaults to slog.Default()
}

// Supervisor owns the single backend child for the lifetime of the host.
// Construct one at startup, route launch requests to StartBackend and call
// Shutdown exactly once when the host exits.
type Supervisor struct {
	slot     *ProcessSlot
	ports    *PortManager
	resolver *EntryPointResolver
	recorder EventRecorder
	tokens   TokenIssuer
	logger   *slog.Logger

	dataDir     string
	logFileName string
	runtime     string
	runtimeArgs []string
	envFileName string
	envFileMode EnvFileMode
	env         []string
}

// launchSpec is the transient state of one launch attempt.
type launchSpec struct {
	launchID   string
	port       int
	entryPoint string
	workDir    string
	envFile    string // Empty when no env file was found
	sink       *logSink
}

// NewSupervisor creates a Supervisor with an empty process slot.
func NewSupervisor(config Config) (*Supervisor, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ports := config.PortManager
	if ports == nil {
		pm, err := NewPortManager(DefaultMinPort, DefaultMaxPort)
		if err != nil {
			return nil, err
		}
		ports = pm
	}

	resolver := config.Resolver
	if resolver == nil {
		resolver = NewEntryPointResolver(DefaultEntryPoint, DefaultAscents)
	}

	mode := config.EnvFileMode
	if mode == "" {
		mode = EnvFileFlag
	}
	if _, err := ParseEnvFileMode(string(mode)); err != nil {
		return nil, err
	}

	recorder := config.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &Supervisor{
		slot:        NewProcessSlot(logger, recorder),
		ports:       ports,
		resolver:    resolver,
		recorder:    recorder,
		tokens:      config.Tokens,
		logger:      logger.With("component", "Supervisor"),
		dataDir:     config.DataDir,
		logFileName: orDefault(config.LogFileName, DefaultLogFileName),
		runtime:     orDefault(config.Runtime, defaultRuntime),
		runtimeArgs: config.RuntimeArgs,
		envFileName: orDefault(config.EnvFileName, DefaultEnvFileName),
		envFileMode: mode,
		env:         config.Env,
	}
	if s.runtimeArgs == nil {
		s.runtimeArgs = defaultRuntimeArgs
	}
	return s, nil
}

// StartBackend launches the backend on a free port and returns that port.
// It fails with ErrAlreadyRunning while a previously launched backend is still
// alive. Every failure leaves no backend tracked, so the next call is a fresh
// attempt.
func (s *Supervisor) StartBackend() (int, error) {
	port, err := s.launch()
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.logger.Info("Backend launch skipped", "reason", err)
		} else {
			s.logger.Error("Failed to start backend", "error", err)
		}
		if rerr := s.recorder.LogLaunchFailed(err.Error()); rerr != nil {
			s.logger.Warn("Failed to record launch failure", "error", rerr)
		}
		return 0, err
	}
	return port, nil
}

// Current returns the tracked launch, if any. It does not check the process.
func (s *Supervisor) Current() (LaunchInfo, bool) {
	info, _, ok := s.slot.Snapshot()
	return info, ok
}

// State returns the tracked lifecycle state without probing the process.
func (s *Supervisor) State() ProcessState {
	_, state, _ := s.slot.Snapshot()
	return state
}

// LogPath is where backend output is appended.
func (s *Supervisor) LogPath() string {
	return filepath.Join(s.dataDir, s.logFileName)
}

func (s *Supervisor) launch() (int, error) {
	if err := s.slot.AcquireIfAbsent(); err != nil {
		return 0, err
	}

	port, err := s.ports.FindAvailablePort()
	if err != nil {
		return 0, err
	}

	sink, err := openLogSink(s.dataDir, s.logFileName)
	if err != nil {
		return 0, err
	}
	// The child inherits its own descriptors; ours are not needed after Start.
	defer func() {
		if err := sink.Close(); err != nil {
			s.logger.Warn("Failed to close log handles", "error", err)
		}
	}()

	entryPoint, err := s.resolver.Resolve()
	if err != nil {
		return 0, err
	}

	spec := launchSpec{
		launchID:   uuid.New().String(),
		port:       port,
		entryPoint: entryPoint,
		workDir:    s.resolver.WorkspaceRoot(entryPoint),
		sink:       sink,
	}
	if s.envFileMode != EnvFileIgnore {
		if p, ok := findEnvFile(spec.workDir, s.envFileName); ok {
			spec.envFile = p
		}
	}

	cmd := s.buildCommand(spec)

	s.logger.Info("Starting backend", "port", port, "script", entryPoint, "log", sink.path, "launchID", spec.launchID)
	if err := cmd.Start(); err != nil {
		return 0, newLaunchError(ErrSpawnFailed,
			fmt.Sprintf("Failed to spawn %s backend", filepath.Base(s.runtime)), err)
	}

	info := LaunchInfo{
		LaunchID:   spec.launchID,
		Port:       port,
		EntryPoint: entryPoint,
		LogPath:    sink.path,
		StartedAt:  time.Now(),
	}
	if s.tokens != nil {
		token, err := s.tokens.Issue(spec.launchID, port)
		if err != nil {
			s.logger.Warn("Failed to issue launch token", "launchID", spec.launchID, "error", err)
		}
		info.Token = token
	}

	tc := newTrackedChild(newOSChild(cmd), info)
	s.slot.Install(tc)

	s.logger.Info("Backend started", "pid", tc.info.PID, "port", port)
	if err := s.recorder.LogLaunch(spec.launchID, tc.info.PID, port, entryPoint); err != nil {
		s.logger.Warn("Failed to record launch", "error", err)
	}
	return port, nil
}

// buildCommand assembles `<runtime> <runtime args> [--env-file=PATH] ENTRY --port PORT`.
func (s *Supervisor) buildCommand(spec launchSpec) *exec.Cmd {
	args := make([]string, 0, len(s.runtimeArgs)+4)
	args = append(args, s.runtimeArgs...)

	var injected []string
	if spec.envFile != "" {
		switch s.envFileMode {
		case EnvFileFlag:
			args = append(args, "--env-file="+spec.envFile)
		case EnvFileInject:
			vars, err := readEnvFile(spec.envFile)
			if err != nil {
				s.logger.Warn("Skipping env file", "path", spec.envFile, "error", err)
			}
			injected = vars
		}
	}
	args = append(args, spec.entryPoint, "--port", strconv.Itoa(spec.port))

	cmd := exec.Command(s.runtime, args...)
	cmd.Dir = spec.workDir
	cmd.Stdout = spec.sink.stdout
	cmd.Stderr = spec.sink.stderr

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, injected...)
	cmd.Env = append(cmd.Env, s.env...)
	cmd.Env = append(cmd.Env, envLaunchID+"="+spec.launchID)
	if s.tokens != nil {
		cmd.Env = append(cmd.Env, envInternalSecret+"="+s.tokens.SecretHex())
	}

	configureCommand(cmd)
	return cmd
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
