package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"coach-event-generator/internal/config"
	"coach-event-generator/internal/core"
	"coach-event-generator/internal/link"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/lua"
	"coach-event-generator/internal/mqtt"
	"coach-event-generator/internal/protocol"
	"coach-event-generator/internal/scenario"
	"coach-event-generator/internal/scheduler"
	"coach-event-generator/internal/server"
	"coach-event-generator/internal/source"

	"golang.org/x/time/rate"
)

var (
	ErrStopped         = errors.New("agent stopped")
	ErrScenarioRunning = errors.New("a scenario is already running")
)

// Agent owns the link. Every producer submits commands to its orchestrator
// loop, which encodes and writes them one at a time.
type Agent struct {
	ctx      context.Context
	cancel   context.CancelFunc
	config   *config.Config
	log      *logger.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once

	state          *core.State
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	links   *link.Manager
	conn    *link.Conn // owned by the orchestrator loop once started
	limiter *rate.Limiter
	source  *source.Source

	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client
}

// Option configures an Agent.
type Option func(*Agent)

// WithLinkManager replaces the default serial link manager.
func WithLinkManager(m *link.Manager) Option {
	return func(a *Agent) { a.links = m }
}

// NewAgent wires every component. Nothing touches the link until Connect.
func NewAgent(cfg *config.Config, log *logger.Logger, opts ...Option) (*Agent, error) {
	src, err := source.New(cfg.Generator.Cabins, cfg.Generator.Seed)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		log:            log,
		state:          core.NewState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
		source:         src,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.links == nil {
		a.links = link.NewManager(log,
			link.WithSettleDelay(cfg.Link.SettleDelay),
			link.WithReadTimeout(cfg.Link.ReadTimeout),
		)
	}

	if cfg.Link.RateLimit > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.Link.RateLimit), cfg.Link.RateBurst)
	} else {
		a.limiter = rate.NewLimiter(rate.Inf, 1)
	}

	a.luaEngine = lua.NewEngine(a.SenderFor(core.OriginScript), cfg.Scenario.ScriptsDir, cfg.Generator.Cabins, a.eventBus, log)
	a.scheduler = scheduler.NewScheduler(a.commandChannel, cfg.SchedulesFile, cfg.Generator.Cabins, log)

	if cfg.Server.Port != "" {
		a.server = server.NewServer(server.Options{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			State:          a.state,
			Scripts:        a.luaEngine.GetScriptList,
			Schedules:      a.scheduler.GetAll,
		}, log)
		a.server.SetHandler(NewCommandHandler(a.commandChannel, a.scheduler, a.luaEngine, cfg.Generator.Cabins, log))
	}

	a.mqttClient = mqtt.NewClient(cfg, a.commandChannel, log)

	return a, nil
}

// Connect opens the configured device. It must be called before Start.
func (a *Agent) Connect(ctx context.Context) error {
	conn, err := a.links.Open(ctx, a.config.Link.Device, a.config.Link.BaudRate)
	if err != nil {
		return err
	}
	a.conn = conn
	a.setLink(true)
	return nil
}

// Start launches the orchestrator loop and the optional outer surfaces.
func (a *Agent) Start() {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.forwardEvents()
	}()
	go func() {
		defer a.wg.Done()
		a.run()
	}()

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				a.log.Warnw("[Agent] MQTT setup error", "err", err)
			}
		}()
	}

	if a.server != nil {
		a.log.Infow("[Agent] Monitor listening", "url", "http://localhost:"+a.config.Server.Port)
		go func() {
			if err := a.server.ListenAndServe(); err != nil {
				a.log.Infow("[Agent] Server stopped", "err", err)
			}
		}()
	}

	a.scheduler.Start()
}

func (a *Agent) run() {
	a.log.Debugw("[Agent] Orchestrator ready")
	for {
		select {
		case <-a.ctx.Done():
			a.log.Debugw("[Agent] Orchestrator shutting down")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(cmd)
		}
	}
}

func (a *Agent) handleCommand(cmd core.Command) {
	a.log.Debugw("[Agent] Handling command", "type", cmd.Type, "origin", cmd.Origin)

	switch cmd.Type {
	case core.CmdSend:
		if cmd.Intent == nil {
			reply(cmd, core.Result{Err: errors.New("send without intent")})
			return
		}
		reply(cmd, a.write(cmd.Intent, cmd.Origin))

	case core.CmdSendRandom:
		reply(cmd, a.write(a.source.Random(), cmd.Origin))

	case core.CmdRunDemo:
		go func() {
			if _, err := a.RunDemo(a.ctx, nil); err != nil {
				a.log.Warnw("[Agent] Demo did not complete", "origin", cmd.Origin, "err", err)
			}
		}()
		reply(cmd, core.Result{})

	case core.CmdRunScript:
		reply(cmd, core.Result{Err: a.luaEngine.RunScript(cmd.Name)})

	case core.CmdStopScript:
		a.luaEngine.StopCurrentScript()
		reply(cmd, core.Result{})

	case core.CmdReconnect:
		reply(cmd, core.Result{Err: a.reconnect()})

	default:
		a.log.Warnw("[Agent] Unknown command type", "type", cmd.Type)
	}
}

// write validates, encodes and transmits one intent. Demo intents are fixed and
// skip the boundary checks.
func (a *Agent) write(in core.Intent, origin core.Origin) core.Result {
	msg := protocol.Encode(in)
	res := core.Result{Intent: in, Line: msg.Line()}

	if origin != core.OriginDemo {
		res.Err = core.Validate(in, a.config.Generator.Cabins)
	}
	if res.Err == nil {
		res.Err = a.limiter.Wait(a.ctx)
	}
	if res.Err == nil {
		res.Err = a.conn.Send(msg)
	}

	payload := core.CommandPayload{Line: res.Line, Origin: origin}
	if res.Err != nil {
		a.state.RecordFailed()
		payload.Error = res.Err.Error()
		a.eventBus.Publish(core.Event{Type: core.CommandFailedEvent, Payload: payload})
		return res
	}

	a.state.RecordSent(res.Line)
	a.log.Infow("[Agent] Sent", "line", res.Line, "origin", origin)
	a.eventBus.Publish(core.Event{Type: core.CommandSentEvent, Payload: payload})
	return res
}

func (a *Agent) reconnect() error {
	if err := a.conn.Close(); err != nil {
		a.log.Warnw("[Agent] Close before reconnect failed", "err", err)
	}
	a.conn = nil
	a.setLink(false)

	conn, err := a.links.Open(a.ctx, a.config.Link.Device, a.config.Link.BaudRate)
	if err != nil {
		return err
	}
	a.conn = conn
	a.setLink(true)
	return nil
}

func (a *Agent) setLink(up bool) {
	a.state.SetLink(up, a.config.Link.Device)
	a.eventBus.Publish(core.Event{
		Type:    core.LinkChangedEvent,
		Payload: core.LinkPayload{Connected: up, Device: a.config.Link.Device},
	})
}

func reply(cmd core.Command, res core.Result) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- res:
	default:
	}
}

// Submit hands cmd to the orchestrator and waits for its result. Once queued, a
// command is carried out even if ctx is cancelled meanwhile.
func (a *Agent) Submit(ctx context.Context, cmd core.Command) core.Result {
	cmd.Reply = make(chan core.Result, 1)

	select {
	case a.commandChannel <- cmd:
	case <-ctx.Done():
		return core.Result{Err: ctx.Err()}
	case <-a.ctx.Done():
		return core.Result{Err: ErrStopped}
	}

	select {
	case res := <-cmd.Reply:
		return res
	case <-a.ctx.Done():
		return core.Result{Err: ErrStopped}
	}
}

// SendFrom submits one intent on behalf of origin.
func (a *Agent) SendFrom(ctx context.Context, origin core.Origin, in core.Intent) core.Result {
	return a.Submit(ctx, core.Command{Type: core.CmdSend, Intent: in, Origin: origin})
}

// SendRandomFrom samples and submits one random intent on behalf of origin.
func (a *Agent) SendRandomFrom(ctx context.Context, origin core.Origin) core.Result {
	return a.Submit(ctx, core.Command{Type: core.CmdSendRandom, Origin: origin})
}

// Reconnect closes the link and reopens the configured device.
func (a *Agent) Reconnect(ctx context.Context) error {
	return a.Submit(ctx, core.Command{Type: core.CmdReconnect, Origin: core.OriginConsole}).Err
}

// RunDemo runs the demonstration sequence. Only one scenario runs at a time.
func (a *Agent) RunDemo(ctx context.Context, progress func(scenario.Progress)) (scenario.Report, error) {
	if !a.state.TryStartScenario(scenario.DemoName) {
		return scenario.Report{}, ErrScenarioRunning
	}
	a.eventBus.Publish(core.Event{Type: core.ScenarioChangedEvent, Payload: core.RunPayload{Running: scenario.DemoName}})
	defer func() {
		a.state.FinishScenario()
		a.eventBus.Publish(core.Event{Type: core.ScenarioChangedEvent, Payload: core.RunPayload{}})
	}()

	seq := scenario.NewSequencer(
		scenario.Demo(a.config.Scenario.TimeUnit),
		a.SenderFor(core.OriginDemo),
		a.log,
		scenario.WithProgress(func(p scenario.Progress) {
			a.eventBus.Publish(core.Event{
				Type:    core.ScenarioChangedEvent,
				Payload: core.RunPayload{Running: scenario.DemoName, Step: p.Name},
			})
			if progress != nil {
				progress(p)
			}
		}),
	)
	return seq.Run(ctx)
}

// SenderFor returns a sender that tags every command with origin.
func (a *Agent) SenderFor(origin core.Origin) *Sender {
	return &Sender{agent: a, origin: origin}
}

// Cabins returns the configured coach size.
func (a *Agent) Cabins() int {
	return a.config.Generator.Cabins
}

// State returns a snapshot of the runtime state.
func (a *Agent) State() core.State {
	return a.state.Clone()
}

// Events exposes the event bus to observers.
func (a *Agent) Events() *core.EventBus {
	return a.eventBus
}

// Shutdown stops every component and closes the link exactly once.
func (a *Agent) Shutdown() {
	a.stopOnce.Do(func() {
		a.scheduler.Stop()
		a.cancel()
		a.wg.Wait()

		a.luaEngine.Stop()

		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = a.server.Shutdown(ctx)
			cancel()
		}
		if a.mqttClient != nil {
			a.mqttClient.Disconnect()
		}

		if err := a.conn.Close(); err != nil {
			a.log.Warnw("[Agent] Closing link failed", "err", err)
		}
		a.conn = nil
		a.state.SetLink(false, a.config.Link.Device)
	})
}

// Sender submits intents to an Agent under a fixed origin.
type Sender struct {
	agent  *Agent
	origin core.Origin
}

// Send satisfies scenario.Sender.
func (s *Sender) Send(ctx context.Context, in core.Intent) error {
	return s.agent.SendFrom(ctx, s.origin, in).Err
}

// SendRandom submits one random intent and returns what was sampled.
func (s *Sender) SendRandom(ctx context.Context) (core.Intent, error) {
	res := s.agent.SendRandomFrom(ctx, s.origin)
	return res.Intent, res.Err
}

var allEvents = []core.EventType{
	core.CommandSentEvent,
	core.CommandFailedEvent,
	core.LinkChangedEvent,
	core.ScenarioChangedEvent,
	core.ScriptChangedEvent,
}

// forwardEvents mirrors bus events to the monitor and the broker until shutdown.
func (a *Agent) forwardEvents() {
	sub := a.eventBus.Subscribe(allEvents...)
	defer a.eventBus.Unsubscribe(sub, allEvents...)

	for {
		select {
		case <-a.ctx.Done():
			return
		case ev := <-sub:
			if ev.Type == core.ScriptChangedEvent {
				if p, ok := ev.Payload.(core.RunPayload); ok {
					a.state.SetRunningScript(p.Running)
				}
			}
			if a.server != nil {
				if msg, ok := server.EventMessage(ev); ok {
					a.server.Hub.Broadcast(msg)
				}
			}
			a.mqttClient.PublishEvent(ev)
		}
	}
}
