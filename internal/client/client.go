// Package client is the agent's core: it registers with the control
// server, streams metric reports, and executes commands arriving over
// the WebSocket session. Every fallible operation returns *ClientError;
// this package decides what to log and when to reconnect, the error
// type never does.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/serverpulse/agent/internal/collect"
	"github.com/serverpulse/agent/internal/config"
	"github.com/serverpulse/agent/internal/observability/log"
	"github.com/serverpulse/agent/internal/store"
	"github.com/serverpulse/agent/internal/tasks"
	"github.com/serverpulse/agent/internal/webserver"
	"github.com/serverpulse/agent/internal/wsstream"
)

// Config holds the client's runtime settings.
type Config struct {
	AgentName string
	Labels    map[string]string

	ServerURL    string
	WebsocketURL string
	HTTPTimeout  time.Duration

	ReportInterval time.Duration
	SpoolPath      string
	DiskPath       string

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	Stream wsstream.Config
}

// DefaultConfig returns the settings the client runs with unless the
// caller overrides them.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:          30 * time.Second,
		ReportInterval:       30 * time.Second,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,
		Stream:               wsstream.DefaultConfig(),
	}
}

// FromFile maps the loaded configuration file onto a client Config.
func FromFile(cfg *config.Config) Config {
	c := DefaultConfig()
	c.AgentName = cfg.Agent.Name
	c.Labels = cfg.Agent.Labels
	c.ServerURL = cfg.Server.URL
	c.WebsocketURL = cfg.Server.WebsocketURL
	c.HTTPTimeout = cfg.Server.Timeout.Std()
	c.ReportInterval = cfg.Report.Interval.Std()
	c.SpoolPath = cfg.Report.SpoolPath
	return c
}

// Check is one monitoring check definition pushed by the control
// server.
type Check struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Target   string `yaml:"target,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// checkSpec is the YAML document carried by an update_checks command.
type checkSpec struct {
	Checks []Check `yaml:"checks"`
}

// Client is the agent's connection to the control server.
type Client struct {
	config  Config
	logger  log.Log
	api     *webserver.API
	store   *store.Store
	sampler *collect.Sampler
	spool   *collect.Spool

	agentID string

	mu      sync.RWMutex
	checks  []Check
	session *wsstream.Session

	connected int32
	closed    int32
}

// New wires the client's collaborators together.
func New(cfg Config, st *store.Store, logger log.Log) *Client {
	l := logger.With(log.String("component", "client"))
	return &Client{
		config:  cfg,
		logger:  l,
		api:     webserver.New(cfg.ServerURL, cfg.HTTPTimeout, logger),
		store:   st,
		sampler: collect.NewSampler(cfg.DiskPath, logger),
		spool:   collect.NewSpool(cfg.SpoolPath),
	}
}

// IsConnected reports whether a WebSocket session is live.
func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Checks returns the monitoring checks currently in effect.
func (c *Client) Checks() []Check {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Check, len(c.checks))
	copy(out, c.checks)
	return out
}

// Run registers the agent and keeps a session alive until ctx is
// cancelled or reconnection attempts are exhausted.
func (c *Client) Run(ctx context.Context) *ClientError {
	token, cerr := c.token()
	if cerr != nil {
		return cerr
	}

	if cerr := c.register(ctx, token); cerr != nil {
		return cerr
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		established, cerr := c.runSession(ctx, token)
		if cerr == nil {
			// Clean shutdown via ctx.
			return nil
		}

		if !cerr.Retryable() {
			return cerr
		}

		// A session that came up resets the budget; only consecutive
		// failures to establish one count against it.
		if established {
			attempt = 0
		}

		attempt++
		if attempt > c.config.MaxReconnectAttempts {
			c.logger.Error("reconnection attempts exhausted", log.Error(cerr))
			return cerr
		}

		c.logger.Warn("session lost, reconnecting",
			log.Int("attempt", attempt),
			log.String("kind", cerr.Kind().String()),
			log.Error(cerr))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.config.ReconnectInterval):
		}
	}
}

// Close tears down the live session, if any.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()

	if session != nil {
		return session.Close()
	}
	return nil
}

// token fetches the auth token from the store. Absence and storage
// failure surface as distinct kinds.
func (c *Client) token() (string, *ClientError) {
	token, err := c.store.Token()
	if err != nil {
		if err == store.ErrTokenNotFound {
			return "", NewTokenError()
		}
		return "", NewIOError(err)
	}
	return token, nil
}

// register announces the agent unless a previous run already did.
func (c *Client) register(ctx context.Context, token string) *ClientError {
	agentID, err := c.store.AgentID()
	if err != nil {
		return NewIOError(err)
	}
	if agentID != "" {
		c.agentID = agentID
		c.logger.Debug("already registered", log.String("agent_id", agentID))
		return nil
	}

	resp, err := c.api.Register(ctx, token, webserver.RegisterRequest{
		Name:   c.config.AgentName,
		Labels: c.config.Labels,
	})
	if err != nil {
		return NewWebserverError(err)
	}

	if err := c.store.SaveAgentID(resp.AgentID); err != nil {
		return NewIOError(err)
	}

	c.agentID = resp.AgentID
	c.logger.Info("registered", log.String("agent_id", resp.AgentID))
	return nil
}

// runSession dials one WebSocket session and runs the worker loops
// under a supervised group until one of them fails or ctx ends. The
// bool reports whether the session was established at all.
func (c *Client) runSession(ctx context.Context, token string) (bool, *ClientError) {
	session, err := wsstream.Dial(ctx, c.config.WebsocketURL, token, c.config.Stream, c.logger)
	if err != nil {
		return false, NewWebsocketError(err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	atomic.StoreInt32(&c.connected, 1)

	defer func() {
		atomic.StoreInt32(&c.connected, 0)
		_ = session.Close()
	}()

	group, _ := tasks.NewGroup(ctx, c.logger)
	group.Go("report", func(ctx context.Context) error {
		return c.reportLoop(ctx, token)
	})
	group.Go("commands", func(ctx context.Context) error {
		return c.commandLoop(ctx, session)
	})
	group.Go("keepalive", func(ctx context.Context) error {
		return c.keepaliveLoop(ctx, session)
	})
	// Unblock the command reader when the group is torn down.
	group.Go("session-closer", func(ctx context.Context) error {
		<-ctx.Done()
		return session.Close()
	})
	err = group.Wait()
	if err == nil || ctx.Err() != nil {
		return true, nil
	}
	return true, Wrap(err)
}

// reportLoop submits a metrics report every interval. Undeliverable
// reports are spooled and retried after the next success path opens.
func (c *Client) reportLoop(ctx context.Context, token string) error {
	ticker := time.NewTicker(c.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if cerr := c.flushSpool(ctx, token); cerr != nil {
			return cerr
		}

		sample := c.sampler.Collect(ctx)
		if cerr := c.submit(ctx, token, sample); cerr != nil {
			return cerr
		}
	}
}

// submit sends one sample, spooling it when the failure looks
// transient.
func (c *Client) submit(ctx context.Context, token string, sample collect.Sample) *ClientError {
	err := c.api.SubmitReport(ctx, token, c.report(sample))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	cerr := NewWebserverError(err)
	if !cerr.Retryable() {
		return cerr
	}

	c.logger.Warn("report undelivered, spooling", log.Error(err))
	if serr := c.spool.Put(sample); serr != nil {
		return NewIOError(serr)
	}
	return nil
}

// flushSpool retries the spooled sample, if any.
func (c *Client) flushSpool(ctx context.Context, token string) *ClientError {
	sample, ok, err := c.spool.Take()
	if err != nil {
		return NewIOError(err)
	}
	if !ok {
		return nil
	}

	if err := c.api.SubmitReport(ctx, token, c.report(sample)); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		cerr := NewWebserverError(err)
		if !cerr.Retryable() {
			return cerr
		}

		// Keep it for the next round.
		if serr := c.spool.Put(sample); serr != nil {
			return NewIOError(serr)
		}
		c.logger.Warn("spooled report still undelivered", log.Error(err))
	}
	return nil
}

func (c *Client) report(sample collect.Sample) webserver.Report {
	return webserver.Report{
		ReportID:  uuid.New().String(),
		AgentID:   c.agentID,
		Timestamp: sample.Timestamp,
		CPUUsage:  sample.CPUUsage,
		MemUsage:  sample.MemUsage,
		DiskUsage: sample.DiskUsage,
		UptimeSec: sample.UptimeSec,
	}
}

// commandLoop reads commands off the session and acknowledges each one.
func (c *Client) commandLoop(ctx context.Context, session *wsstream.Session) error {
	for {
		cmd, err := session.ReadCommand()
		if err != nil {
			if ctx.Err() != nil || session.IsClosed() {
				return nil
			}
			return NewWebsocketError(err)
		}

		ack := wsstream.Ack{CommandID: cmd.ID, OK: true}
		if cerr := c.applyCommand(cmd); cerr != nil {
			c.logger.Error("command failed",
				log.String("command_id", cmd.ID),
				log.String("type", cmd.Type),
				log.Error(cerr))
			ack.OK = false
			ack.Error = cerr.Error()
		}

		if err := session.Send(ack); err != nil {
			if ctx.Err() != nil || session.IsClosed() {
				return nil
			}
			return NewWebsocketError(err)
		}
	}
}

// applyCommand executes one server command. Malformed YAML in the
// command spec is reported back to the server, not fatal to the
// session.
func (c *Client) applyCommand(cmd *wsstream.Command) *ClientError {
	switch cmd.Type {
	case "ping":
		return nil

	case "update_checks":
		var spec checkSpec
		if err := yaml.Unmarshal([]byte(cmd.Spec), &spec); err != nil {
			return NewYamlError(err)
		}
		c.mu.Lock()
		c.checks = spec.Checks
		c.mu.Unlock()
		c.logger.Info("checks updated", log.Int("count", len(spec.Checks)))
		return nil

	default:
		c.logger.Warn("unrecognized command", log.String("type", cmd.Type))
		return NewUnknownError()
	}
}

// keepaliveLoop pings the session on the configured interval.
func (c *Client) keepaliveLoop(ctx context.Context, session *wsstream.Session) error {
	ticker := time.NewTicker(c.config.Stream.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := session.Ping(); err != nil {
				if ctx.Err() != nil || session.IsClosed() {
					return nil
				}
				return NewWebsocketError(err)
			}
		}
	}
}
