// Package daemon wires the host-side bridge route callback: the single
// place that decides what to do with a child's tool_call, ai_prompt_request,
// approval_request, question_request, and a CLI's command. Everything it
// dispatches to already exists elsewhere (internal/agentloop's Handle*
// helpers, internal/hostcmd's registry, internal/supervisor); this package
// only owns the routing decision and the approval/question collections.
package daemon

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/daemonctl/daemonctl/internal/agentloop"
	"github.com/daemonctl/daemonctl/internal/approval"
	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/hostcmd"
	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/internal/mcp"
	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/store"
	"github.com/daemonctl/daemonctl/internal/supervisor"
	"github.com/daemonctl/daemonctl/internal/tools"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/internal/webui"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// Daemon holds every collection and subsystem the host process needs and
// implements HostBridge's route callback.
type Daemon struct {
	core      *corectx.Core
	manager   *session.Manager
	providers *provider.Registry

	bridge     *bridge.HostBridge
	supervisor *supervisor.Supervisor

	templates *store.Collection[*types.Template]
	groups    *store.Collection[*types.Group]
	approvals *store.Collection[*types.Approval]
	questions *store.Collection[*types.Question]

	allowlist approval.Allowlist

	// modelCatalog is the tool set offered to the LLM/CLI for introspection
	// (tool__list): built once with zero-value tools.Dependencies, since
	// listing only reads Name/Help/Parameters and never invokes Handler.
	modelCatalog *toolcatalog.Registry

	cmdRegistry   *toolcatalog.Registry
	cmdDispatcher *toolcatalog.Dispatcher
}

// New builds a Daemon. core and manager must already be constructed
// (core.Paths resolved, manager.NewManager called so the session id counter
// is seeded); providers must already be initialized.
func New(core *corectx.Core, manager *session.Manager, providers *provider.Registry) (*Daemon, error) {
	d := &Daemon{
		core:      core,
		manager:   manager,
		providers: providers,
		templates: store.New[*types.Template](core.Paths.TemplatesDir()),
		groups:    store.New[*types.Group](core.Paths.GroupsDir()),
		approvals: store.New[*types.Approval](core.Paths.ApprovalsDir()),
		questions: store.New[*types.Question](core.Paths.QuestionsDir()),
	}

	allowlist, err := approval.LoadAllowlist(core.Config.AllowlistPath)
	if err != nil {
		return nil, err
	}
	d.allowlist = allowlist

	if err := d.seedIDCounters(); err != nil {
		return nil, err
	}

	d.bridge = bridge.NewHostBridge(core.Paths, d.route)
	d.supervisor = supervisor.New(core, manager, d.bridge, supervisor.DefaultChildCommand)

	d.modelCatalog = toolcatalog.NewRegistry()
	tools.Register(d.modelCatalog, &tools.Dependencies{})
	registerMCPCatalog(core.Config, d.modelCatalog)

	d.cmdRegistry = toolcatalog.NewRegistry()
	hostcmd.Register(d.cmdRegistry, &hostcmd.Dependencies{
		Manager:    manager,
		Supervisor: d.supervisor,
		Bridge:     d.bridge,
		Templates:  d.templates,
		Groups:     d.groups,
		Approvals:  d.approvals,
		Questions:  d.questions,
		Catalog:    d.modelCatalog,
	})
	d.cmdDispatcher = toolcatalog.NewDispatcher(d.cmdRegistry, nil)

	return d, nil
}

// seedIDCounters scans the approvals/questions directories for the highest
// id already on disk, mirroring session.NewManager's own seed so a restarted
// daemon never reissues an id already in use.
func (d *Daemon) seedIDCounters() error {
	approvalIDs, err := d.approvals.List()
	if err != nil {
		return err
	}
	d.core.SeedApprovalID(highestID(approvalIDs))

	questionIDs, err := d.questions.List()
	if err != nil {
		return err
	}
	d.core.SeedQuestionID(highestID(questionIDs))
	return nil
}

// registerMCPCatalog connects every configured, enabled MCP server once at
// daemon start so tool__list reflects them alongside the built-ins; actual
// execution still happens inside each session's own child process (see
// cmd/daemonctl-child's identical connectMCPServers), since credentials and
// subprocess transports are scoped per child, not shared across sessions.
func registerMCPCatalog(cfg *types.Config, catalog *toolcatalog.Registry) {
	if len(cfg.MCP) == 0 {
		return
	}
	client := mcp.NewClient()
	for name, serverCfg := range cfg.MCP {
		if !serverCfg.Enabled {
			continue
		}
		if err := client.AddServer(context.Background(), name, mcp.ConfigFromTypes(serverCfg)); err != nil {
			logging.Logger.Warn().Err(err).Str("server", name).Msg("daemon: connect MCP server")
			continue
		}
	}
	mcp.RegisterTools(catalog, client)
}

func highestID(ids []string) int64 {
	var highest int64
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Bridge returns the HostBridge so a caller can ServeControl/ServeChild/etc.
func (d *Daemon) Bridge() *bridge.HostBridge { return d.bridge }

// Supervisor returns the supervisor, used by the caller's recovery scan at
// start-up and graceful shutdown.
func (d *Daemon) Supervisor() *supervisor.Supervisor { return d.supervisor }

// WebUIDependencies exposes the read-only views internal/webui serves.
func (d *Daemon) WebUIDependencies() *webui.Dependencies {
	return &webui.Dependencies{
		Bus:       d.core.Bus,
		Manager:   d.manager,
		Templates: d.templates,
		Groups:    d.groups,
		Approvals: d.approvals,
		Questions: d.questions,
	}
}

// route is HostBridge's callback: it runs on the read loop of whichever
// connection delivered msg, so every branch either replies immediately or
// hands off without blocking on another round trip.
func (d *Daemon) route(ctx context.Context, from bridge.Source, msg bridge.Message) {
	switch msg.Type {
	case bridge.TypeToolCall:
		d.handleToolCall(ctx, from, msg)
	case bridge.TypeAIPromptRequest:
		reply := agentloop.HandleHostAIPromptRequest(ctx, d.providers, msg)
		if err := from.Endpoint.Send(reply); err != nil {
			logging.Logger.Warn().Err(err).Msg("daemon: reply to ai_prompt_request")
		}
	case bridge.TypeApprovalRequest:
		d.handleApprovalRequest(from, msg)
	case bridge.TypeQuestionRequest:
		d.handleQuestionRequest(from, msg)
	case bridge.TypeCommand:
		d.handleCommand(ctx, from, msg)
	default:
		logging.Logger.Debug().Str("type", string(msg.Type)).Msg("daemon: unhandled message type")
	}
}

// handleToolCall runs a tool a child forwarded to the host because its
// definition requires host execution (fs__directory__list, web__search).
// Dependencies are built fresh per call, scoped to the calling session's own
// workspace, since the host serves many sessions concurrently and a tool
// like fs__directory__list resolves relative paths against WorkDir.
func (d *Daemon) handleToolCall(ctx context.Context, from bridge.Source, msg bridge.Message) {
	workDir := d.core.Paths.WorkspaceDir(strconv.FormatInt(from.SessionID, 10))
	deps := &tools.Dependencies{
		WorkDir:      workDir,
		HTTPClient:   http.DefaultClient,
		GoogleAPIKey: d.core.Config.WebSearch.APIKey,
		GoogleCX:     d.core.Config.WebSearch.CX,
	}
	reg := toolcatalog.NewRegistry()
	tools.RegisterHostExecuted(reg, deps)
	dispatcher := toolcatalog.NewDispatcher(reg, nil)

	reply := agentloop.HandleHostToolCall(dispatcher, from.SessionID, msg)
	if err := from.Endpoint.Send(reply); err != nil {
		logging.Logger.Warn().Err(err).Int64("session", from.SessionID).Msg("daemon: reply to tool_call")
	}
}

// handleApprovalRequest persists a new Approval and acks the child's
// blocked Call with the new id, reusing msg's MessageID so the child's
// pendingCalls entry resolves; the human's actual decision arrives later,
// separately, through internal/hostcmd's approval__resolve.
func (d *Daemon) handleApprovalRequest(from bridge.Source, msg bridge.Message) {
	id := d.core.NextApprovalID()
	now := time.Now().Unix()
	rec := &types.Approval{
		ID:          id,
		SessionID:   from.SessionID,
		ToolCallID:  msg.ToolCallID,
		Type:        "shell__execute",
		Description: msg.Command,
		Status:      types.ApprovalPending,
		CreatedAt:   now,
	}
	d.approvals.Set(rec.RecordID(), rec)
	if err := d.approvals.Save(); err != nil {
		logging.Logger.Error().Err(err).Int64("session", from.SessionID).Msg("daemon: save approval")
	}
	d.core.Bus.Publish(corectx.Event{Type: corectx.ApprovalCreated, Data: rec})

	reply := msg
	reply.Type = bridge.TypeApprovalResponse
	reply.ApprovalID = id
	if err := from.Endpoint.Send(reply); err != nil {
		logging.Logger.Warn().Err(err).Int64("session", from.SessionID).Msg("daemon: ack approval_request")
	}
}

// handleQuestionRequest mirrors handleApprovalRequest for human__ask.
func (d *Daemon) handleQuestionRequest(from bridge.Source, msg bridge.Message) {
	id := d.core.NextQuestionID()
	now := time.Now().Unix()
	rec := &types.Question{
		ID:          id,
		SessionID:   from.SessionID,
		ToolCallID:  msg.ToolCallID,
		Description: msg.QuestionPrompt,
		Status:      types.QuestionPending,
		CreatedAt:   now,
	}
	d.questions.Set(rec.RecordID(), rec)
	if err := d.questions.Save(); err != nil {
		logging.Logger.Error().Err(err).Int64("session", from.SessionID).Msg("daemon: save question")
	}
	d.core.Bus.Publish(corectx.Event{Type: corectx.QuestionCreated, Data: rec})

	reply := msg
	reply.Type = bridge.TypeQuestionResponse
	reply.QuestionID = id
	if err := from.Endpoint.Send(reply); err != nil {
		logging.Logger.Warn().Err(err).Int64("session", from.SessionID).Msg("daemon: ack question_request")
	}
}

// handleCommand runs a CLI-issued host command (session/template/group CRUD,
// approval/question resolution, tool__list) against the hostcmd registry and
// replies on the same connection the command arrived on.
func (d *Daemon) handleCommand(ctx context.Context, from bridge.Source, msg bridge.Message) {
	args := map[string]any{}
	if m, ok := msg.Data.(map[string]any); ok {
		args = m
	}

	inv := toolcatalog.Invocation{Ctx: ctx, Args: args}
	outcome, err := d.cmdDispatcher.Invoke(ctx, toolcatalog.CallerHuman, inv, msg.Command)

	reply := msg
	reply.Type = bridge.TypeCommandResponse
	if err != nil {
		reply.Result = toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
	} else {
		reply.Result = outcome
	}
	if err := from.Endpoint.Send(reply); err != nil {
		logging.Logger.Warn().Err(err).Str("command", msg.Command).Msg("daemon: reply to command")
	}
}
