package harness

import (
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/config"
	"github.com/sarchlab/framescope/datarecording"
	"github.com/sarchlab/framescope/instrumentation"
	"github.com/sarchlab/framescope/logging"
	"github.com/sarchlab/framescope/monitoring"
	"github.com/sarchlab/framescope/profiler"
	"github.com/sarchlab/framescope/timing"
	"github.com/sarchlab/framescope/tree"
	"github.com/sarchlab/framescope/tracing"
)

// Builder can be used to build a harness.
type Builder struct {
	host           tree.Host
	engine         timing.Engine
	quantum        time.Duration
	flushOnCreate  bool
	clock          instrumentation.Clock
	logger         zerolog.Logger
	monitorOn      bool
	monitorPort    int
	outputFileName string
	recorderConfig *datarecording.RecorderConfig
	jsonTrace      bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		quantum:       profiler.DefaultQuantum,
		flushOnCreate: true,
		logger:        zerolog.Nop(),
		monitorOn:     true,
	}
}

// WithHost sets the host to profile.
func (b Builder) WithHost(host tree.Host) Builder {
	b.host = host
	return b
}

// WithEngine sets the engine that drives the host. The monitor uses it to
// pause and continue.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithQuantum sets the flush quantum.
func (b Builder) WithQuantum(quantum time.Duration) Builder {
	b.quantum = quantum
	return b
}

// WithFlushOnCreate sets whether pending samples are flushed before a new
// node is announced.
func (b Builder) WithFlushOnCreate(enabled bool) Builder {
	b.flushOnCreate = enabled
	return b
}

// WithClock sets the clock the instrumentation measures with.
func (b Builder) WithClock(clock instrumentation.Clock) Builder {
	b.clock = clock
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

// WithoutMonitoring sets the harness to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOutputFileName sets the custom output file name for the sqlite
// recording.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithRecorderConfig selects the recording backend. It takes precedence
// over WithOutputFileName.
func (b Builder) WithRecorderConfig(cfg datarecording.RecorderConfig) Builder {
	b.recorderConfig = &cfg
	return b
}

// WithJSONTrace also writes the frames to a JSON file next to the recording.
func (b Builder) WithJSONTrace() Builder {
	b.jsonTrace = true
	return b
}

// FromConfig applies a loaded configuration.
func (b Builder) FromConfig(cfg *config.Config) Builder {
	b.quantum = cfg.Quantum
	b.flushOnCreate = cfg.FlushOnCreate
	b.monitorOn = cfg.Monitor.Enabled
	b.monitorPort = cfg.Monitor.Port
	b.outputFileName = cfg.Recording.Path
	b.jsonTrace = cfg.Recording.JSON

	return b
}

func (b Builder) parametersMustBeValid() {
	if b.host == nil {
		panic("host is not set")
	}

	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the harness. It creates the recording and starts the
// monitoring server, but recording only starts with Harness.Start.
func (b Builder) Build() (*Harness, error) {
	b.parametersMustBeValid()

	h := &Harness{
		id:     xid.New().String(),
		host:   b.host,
		engine: b.engine,
		log:    logging.Component(b.logger, "harness"),
	}

	recorderConfig := datarecording.RecorderConfig{Path: b.outputFileName}
	if b.recorderConfig != nil {
		recorderConfig = *b.recorderConfig
	}

	if recorderConfig.Type == "" || recorderConfig.Type == "sqlite" {
		if recorderConfig.Path == "" {
			recorderConfig.Path = "framescope_" + h.id
		}

		h.outputFile = datarecording.SQLiteFilename(recorderConfig.Path)
	}

	dataRecorder, err := datarecording.NewDataRecorderWithConfig(recorderConfig)
	if err != nil {
		return nil, err
	}

	h.recorder = datarecording.NewFrameRecorder(dataRecorder,
		logging.Component(b.logger, "recorder"))

	if b.jsonTrace {
		h.jsonFile = h.jsonFileName(recorderConfig.Path)
		h.jsonTracer, err = tracing.NewJSONFrameTracerToFile(h.jsonFile)
		if err != nil {
			_ = h.recorder.Close()
			return nil, err
		}
	}

	opts := []profiler.SessionOption{
		profiler.WithQuantum(b.quantum),
		profiler.WithFlushOnCreate(b.flushOnCreate),
		profiler.WithLogger(logging.Component(b.logger, "profiler")),
	}
	if b.clock != nil {
		opts = append(opts, profiler.WithClock(b.clock))
	}

	h.session = profiler.NewSession(b.host, opts...)
	h.latency = tracing.NewLatencyTracer(nil)
	h.totals = tracing.NewTotalTimeTracer(nil)
	h.counts = tracing.NewKindCountTracer(nil)

	tracing.CollectMeasurements(h.session, h.latency)
	tracing.CollectMeasurements(h.session, h.totals)
	tracing.CollectMeasurements(h.session, h.counts)
	tracing.CollectFrames(h.session, h.recorder)

	if h.jsonTracer != nil {
		tracing.CollectFrames(h.session, h.jsonTracer)
	}

	if b.monitorOn {
		if err := h.startMonitor(b); err != nil {
			_ = h.Terminate()
			return nil, err
		}
	}

	return h, nil
}

func (h *Harness) startMonitor(b Builder) error {
	h.monitor = monitoring.NewMonitor().
		WithLogger(logging.Component(b.logger, "monitor"))
	if b.monitorPort > 0 {
		h.monitor.WithPortNumber(b.monitorPort)
	}

	if b.engine != nil {
		h.monitor.RegisterEngine(b.engine)
	}

	tracing.CollectMeasurements(h.session, h.monitor)
	tracing.CollectMeasurements(h.session, h.monitor.Metrics())
	tracing.CollectFrames(h.session, h.monitor)
	tracing.CollectFrames(h.session, h.monitor.Metrics())

	return h.monitor.StartServer()
}

func (h *Harness) jsonFileName(path string) string {
	if path == "" {
		path = "framescope_" + h.id
	}

	return strings.TrimSuffix(path, ".sqlite3") + "_frames.json"
}
