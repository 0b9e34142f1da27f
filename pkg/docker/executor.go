package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPidsLimit   = 64
	defaultOutputLimit = 1 << 20
	cleanupTimeout     = 5 * time.Second
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Wall time of sandboxed runs",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"image"})

	runOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "sandbox",
		Name:      "runs_total",
		Help:      "Sandboxed runs by outcome",
	}, []string{"image", "outcome"})
)

// Executor runs one command in a sandbox.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// ExecutionRequest describes one sandboxed command. Workspace is bind-mounted
// at WorkingDir; StdinFile, relative to it, is fed to Cmd as standard input.
type ExecutionRequest struct {
	Image           string
	Cmd             []string
	StdinFile       string
	Env             []string
	Timeout         time.Duration
	Workspace       string
	WorkingDir      string
	MemoryLimitMB   int64
	CPUShares       int64
	NetworkDisabled bool
	ReadOnlyFS      bool
}

// ExecutionResult is what the sandbox observed. Stdout and Stderr are capped
// at the configured output limit; Truncated is set when either was cut.
type ExecutionResult struct {
	Stdout           string
	Stderr           string
	ExitCode         int
	Duration         time.Duration
	TimedOut         bool
	OOMKilled        bool
	Truncated        bool
	MemoryUsageBytes int64
	CPUUsageNanosec  uint64
}

// Config groups executor defaults. Request values win when set.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	PidsLimit     int64
	OutputLimit   int
	WorkingDir    string
	Logger        zerolog.Logger
}

// DockerExecutor runs judge commands in throwaway containers.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a Docker backed executor.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}
	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = defaultPidsLimit
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/arena-go/pkg/docker"),
		logger: cfg.Logger.With().Str("component", "sandbox").Logger(),
	}, nil
}

// Run creates a container for req, waits for it to exit or time out, and
// collects its output. A timeout is reported through TimedOut together with
// an error; a non-zero exit code is not an error.
func (e *DockerExecutor) Run(parent context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if req.Image == "" {
		return ExecutionResult{}, errors.New("image is required")
	}

	ctx, span := e.tracer.Start(parent, "sandbox.run", trace.WithAttributes(
		attribute.String("sandbox.image", req.Image),
		attribute.Bool("sandbox.stdin", req.StdinFile != ""),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	created, err := e.client.ContainerCreate(ctx, e.containerConfig(req), e.hostConfig(req), &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return e.fail(span, req.Image, ExecutionResult{}, fmt.Errorf("container create: %w", err))
	}
	id := created.ID
	defer e.remove(id)

	start := time.Now()
	if err := e.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return e.fail(span, req.Image, ExecutionResult{}, fmt.Errorf("container start: %w", err))
	}

	result, waitErr := e.wait(ctx, id, timeout)
	result.Duration = time.Since(start)
	runDuration.WithLabelValues(req.Image).Observe(result.Duration.Seconds())

	if waitErr != nil && !result.TimedOut {
		return e.fail(span, req.Image, result, fmt.Errorf("container wait: %w", waitErr))
	}

	// Collection uses the parent context; the run deadline has usually passed by now.
	e.collect(parent, id, &result)

	switch {
	case result.TimedOut:
		runOutcomes.WithLabelValues(req.Image, "timeout").Inc()
		span.SetStatus(codes.Error, "timed out")
		return result, fmt.Errorf("execution timed out after %s", timeout)
	case result.OOMKilled:
		runOutcomes.WithLabelValues(req.Image, "oom").Inc()
	case result.ExitCode != 0:
		runOutcomes.WithLabelValues(req.Image, "nonzero").Inc()
	default:
		runOutcomes.WithLabelValues(req.Image, "ok").Inc()
	}
	span.SetAttributes(attribute.Int("sandbox.exit_code", result.ExitCode))
	return result, nil
}

func (e *DockerExecutor) containerConfig(req ExecutionRequest) *container.Config {
	cmd := req.Cmd
	if req.StdinFile != "" {
		cmd = WithStdinFile(req.Cmd, req.StdinFile)
	}

	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = e.cfg.WorkingDir
	}

	return &container.Config{
		Image:           req.Image,
		Cmd:             cmd,
		Env:             req.Env,
		WorkingDir:      workingDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: req.NetworkDisabled,
	}
}

func (e *DockerExecutor) hostConfig(req ExecutionRequest) *container.HostConfig {
	memoryMB := req.MemoryLimitMB
	if memoryMB <= 0 {
		memoryMB = e.cfg.MemoryLimitMB
	}
	cpuShares := req.CPUShares
	if cpuShares <= 0 {
		cpuShares = e.cfg.CPUShares
	}
	pids := e.cfg.PidsLimit

	host := &container.HostConfig{
		NetworkMode:    "bridge",
		ReadonlyRootfs: req.ReadOnlyFS,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Resources: container.Resources{
			CPUShares: cpuShares,
			PidsLimit: &pids,
		},
	}
	if req.NetworkDisabled {
		host.NetworkMode = "none"
	}
	if memoryMB > 0 {
		// Equal memory and swap limits disable swap, so a runaway program is OOM killed.
		host.Resources.Memory = memoryMB * 1024 * 1024
		host.Resources.MemorySwap = host.Resources.Memory
	}
	if req.Workspace != "" {
		target := req.WorkingDir
		if target == "" {
			target = e.cfg.WorkingDir
		}
		host.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: req.Workspace, Target: target}}
	}
	return host
}

func (e *DockerExecutor) wait(parent context.Context, id string, timeout time.Duration) (ExecutionResult, error) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	var result ExecutionResult
	statusCh, errCh := e.client.ContainerWait(ctx, id, container.WaitConditionNextExit)
	select {
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
		return result, nil
	case err := <-errCh:
		if ctx.Err() == context.DeadlineExceeded && parent.Err() == nil {
			return e.timedOut(id), err
		}
		return result, err
	case <-ctx.Done():
		if parent.Err() == nil {
			return e.timedOut(id), ctx.Err()
		}
		return result, parent.Err()
	}
}

func (e *DockerExecutor) timedOut(id string) ExecutionResult {
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.client.ContainerKill(killCtx, id, "KILL"); err != nil {
		e.logger.Warn().Err(err).Str("container_id", id).Msg("failed to kill timed out container")
	}
	return ExecutionResult{TimedOut: true, ExitCode: -1}
}

// collect fills output, OOM state and resource usage. Failures are logged
// and leave the corresponding fields empty.
func (e *DockerExecutor) collect(ctx context.Context, id string, result *ExecutionResult) {
	logs, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", id).Msg("failed to fetch container logs")
	} else {
		stdout, stderr, truncated, err := splitDockerLogs(logs, e.cfg.OutputLimit)
		_ = logs.Close()
		if err != nil {
			e.logger.Error().Err(err).Str("container_id", id).Msg("failed to read container logs")
		}
		result.Stdout, result.Stderr, result.Truncated = stdout, stderr, truncated
	}

	if inspect, err := e.client.ContainerInspect(ctx, id); err == nil && inspect.ContainerJSONBase != nil && inspect.State != nil {
		result.OOMKilled = inspect.State.OOMKilled
	}

	statsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stats, err := e.client.ContainerStatsOneShot(statsCtx, id)
	if err != nil {
		return
	}
	defer stats.Body.Close()
	var data types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&data); err == nil {
		result.MemoryUsageBytes = int64(data.MemoryStats.MaxUsage)
		if result.MemoryUsageBytes == 0 {
			result.MemoryUsageBytes = int64(data.MemoryStats.Usage)
		}
		result.CPUUsageNanosec = data.CPUStats.CPUUsage.TotalUsage
	}
}

func (e *DockerExecutor) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := e.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		e.logger.Error().Err(err).Str("container_id", id).Msg("failed to remove container")
	}
}

func (e *DockerExecutor) fail(span trace.Span, image string, result ExecutionResult, err error) (ExecutionResult, error) {
	runOutcomes.WithLabelValues(image, "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return result, err
}

// WithStdinFile wraps cmd in a shell that redirects file into its standard input.
func WithStdinFile(cmd []string, file string) []string {
	quoted := make([]string, 0, len(cmd))
	for _, part := range cmd {
		quoted = append(quoted, shellQuote(part))
	}
	return []string{"sh", "-c", fmt.Sprintf("exec %s < %s", strings.Join(quoted, " "), shellQuote(file))}
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// splitDockerLogs demultiplexes a container log stream, keeping at most limit
// bytes of each stream.
func splitDockerLogs(reader io.Reader, limit int) (string, string, bool, error) {
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	_, err := stdcopy.StdCopy(stdout, stderr, reader)
	return stdout.String(), stderr.String(), stdout.truncated || stderr.truncated, err
}

type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

// Write never fails so the demultiplexer keeps draining the stream.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.Buffer.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

// Close shuts down the executor's underlying client.
// Ping checks the docker daemon answers.
func (e *DockerExecutor) Ping(ctx context.Context) error {
	if _, err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
