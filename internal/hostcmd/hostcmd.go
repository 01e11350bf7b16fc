// Package hostcmd declares the human-facing, host-only operations a CLI
// client invokes: session/template/group CRUD and lifecycle transitions,
// approval/question resolution, and tool introspection. Each operation is a
// toolcatalog.Definition exactly like a model-facing tool, just with
// HumanOnly and LocalCommand set — the CLI's command tree is generated from
// this registry the same way a model's tool list is generated from the
// child's (§2.1), rather than hand-written as cobra subcommands.
package hostcmd

import (
	"fmt"
	"time"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/store"
	"github.com/daemonctl/daemonctl/internal/supervisor"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// Dependencies collects everything a host command Handler needs.
type Dependencies struct {
	Manager    *session.Manager
	Supervisor *supervisor.Supervisor
	Bridge     *bridge.HostBridge

	Templates *store.Collection[*types.Template]
	Groups    *store.Collection[*types.Group]
	Approvals *store.Collection[*types.Approval]
	Questions *store.Collection[*types.Question]

	// Catalog is the set of tools the daemon offers to the model and the
	// CLI alike, snapshotted for tool__list's benefit; it is never invoked
	// through here.
	Catalog *toolcatalog.Registry
}

// Register declares every host command and adds it to reg.
func Register(reg *toolcatalog.Registry, deps *Dependencies) {
	reg.Register(sessionCreateDefinition(deps))
	reg.Register(sessionListDefinition(deps))
	reg.Register(sessionGetDefinition(deps))
	reg.Register(sessionPauseDefinition(deps))
	reg.Register(sessionResumeDefinition(deps))
	reg.Register(sessionStopDefinition(deps))
	reg.Register(sessionRetryDefinition(deps))
	reg.Register(sessionDeleteDefinition(deps))

	reg.Register(templatePutDefinition(deps))
	reg.Register(templateGetDefinition(deps))
	reg.Register(templateListDefinition(deps))

	reg.Register(groupAddDefinition(deps))
	reg.Register(groupRemoveDefinition(deps))
	reg.Register(groupListDefinition(deps))

	reg.Register(approvalResolveDefinition(deps))
	reg.Register(questionAnswerDefinition(deps))

	reg.Register(toolListDefinition(deps))
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt64(args map[string]any, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func argBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func failure(format string, a ...any) toolcatalog.Outcome {
	return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf(format, a...)}
}

func success(result any) toolcatalog.Outcome {
	return toolcatalog.Outcome{Status: toolcatalog.StatusSuccess, Result: result}
}

// sessionCreateDefinition allocates a new session, optionally seeded from a
// template, and spawns its child.
func sessionCreateDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__create",
		HumanOnly: true,
		LocalCommand: true,
		Help: "Creates a new session, optionally from a named template, and spawns its child process.",
		Parameters: []byte(`{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"template": {"type": "string", "description": "Template name to seed model/systemPrompt/allowlist from"},
				"model": {"type": "string", "description": "Overrides the template's model, or is required without one"},
				"systemPrompt": {"type": "string", "description": "Overrides the template's systemPrompt"}
			},
			"required": ["name"]
		}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			name := argString(inv.Args, "name")
			if name == "" {
				return failure("hostcmd: name is required")
			}

			model := argString(inv.Args, "model")
			systemPrompt := argString(inv.Args, "systemPrompt")
			var allowlist []types.ToolAllowlistEntry

			if templateName := argString(inv.Args, "template"); templateName != "" {
				tmpl, err := deps.Templates.Get(templateName)
				if err != nil {
					return failure("hostcmd: template %q: %v", templateName, err)
				}
				if model == "" {
					model = tmpl.Model
				}
				if systemPrompt == "" {
					systemPrompt = tmpl.SystemPrompt
				}
				allowlist = tmpl.ToolAllowlist
			}
			if model == "" {
				return failure("hostcmd: model is required without a template")
			}

			sess, err := deps.Manager.Create(name, model, allowlist)
			if err != nil {
				return failure("hostcmd: create session: %v", err)
			}
			if systemPrompt != "" {
				if sess, err = deps.Manager.SetSystemPrompt(sess.ID, systemPrompt); err != nil {
					return failure("hostcmd: set system prompt: %v", err)
				}
			}

			if err := deps.Supervisor.Spawn(inv.Ctx, sess); err != nil {
				return failure("hostcmd: spawn session %d: %v", sess.ID, err)
			}
			return success(sess)
		},
	}
}

func sessionListDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__list",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Lists sessions, excluding soft-deleted ones unless includeDeleted is set.",
		Parameters: []byte(`{
			"type": "object",
			"properties": {"includeDeleted": {"type": "boolean"}}
		}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			sessions, err := deps.Manager.List(argBool(inv.Args, "includeDeleted"))
			if err != nil {
				return failure("hostcmd: list sessions: %v", err)
			}
			return success(sessions)
		},
	}
}

func sessionGetDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__get",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Returns one session by id.",
		Parameters: []byte(`{"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			sess, err := deps.Manager.Get(argInt64(inv.Args, "id"))
			if err != nil {
				return failure("hostcmd: get session: %v", err)
			}
			return success(sess)
		},
	}
}

// sessionPauseDefinition signals the child to pause; the child's own signal
// handler (§4.4) applies the FSM pause transition on its side.
func sessionPauseDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__pause",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Pauses a running session's child.",
		Parameters: []byte(`{"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			if err := deps.Supervisor.Pause(id); err != nil {
				return failure("hostcmd: pause session %d: %v", id, err)
			}
			return success(nil)
		},
	}
}

// sessionResumeDefinition moves a PAUSED session back to PENDING; no signal
// is needed since the child's own tick loop keeps running and picks PENDING
// back up on its next tick (§4.4).
func sessionResumeDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__resume",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Resumes a paused session.",
		Parameters: []byte(`{"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			sess, err := deps.Manager.Transition(id, session.ActionResume)
			if err != nil {
				return failure("hostcmd: resume session %d: %v", id, err)
			}
			return success(sess)
		},
	}
}

func sessionStopDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__stop",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Stops a session's child.",
		Parameters: []byte(`{"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			if err := deps.Supervisor.Stop(id); err != nil {
				return failure("hostcmd: stop session %d: %v", id, err)
			}
			return success(nil)
		},
	}
}

// sessionRetryDefinition moves a terminal (SUCCESS/ERROR) session back to
// PENDING and spawns a fresh child for it, since the old one has already
// exited by the time a session reaches either terminal status.
func sessionRetryDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__retry",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Retries a terminal session: transitions it back to PENDING and spawns a new child.",
		Parameters: []byte(`{"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			sess, err := deps.Manager.Transition(id, session.ActionRetry)
			if err != nil {
				return failure("hostcmd: retry session %d: %v", id, err)
			}
			if err := deps.Supervisor.Spawn(inv.Ctx, sess); err != nil {
				return failure("hostcmd: respawn session %d: %v", id, err)
			}
			return success(sess)
		},
	}
}

func sessionDeleteDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "session__delete",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Soft-deletes a session, stopping its child first if still tracked.",
		Parameters: []byte(`{"type": "object", "properties": {"id": {"type": "integer"}}, "required": ["id"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			deps.Supervisor.ForceRemoveStale(id)
			if err := deps.Manager.SoftDelete(id); err != nil {
				return failure("hostcmd: delete session %d: %v", id, err)
			}
			return success(nil)
		},
	}
}

func templatePutDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "template__put",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Creates or replaces a named template.",
		Parameters: []byte(`{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"description": {"type": "string"},
				"model": {"type": "string"},
				"systemPrompt": {"type": "string"}
			},
			"required": ["name", "model", "systemPrompt"]
		}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			name := argString(inv.Args, "name")
			if name == "" {
				return failure("hostcmd: name is required")
			}
			tmpl := &types.Template{
				Name:         name,
				Description:  argString(inv.Args, "description"),
				Model:        argString(inv.Args, "model"),
				SystemPrompt: argString(inv.Args, "systemPrompt"),
			}
			deps.Templates.Set(tmpl.RecordID(), tmpl)
			if err := deps.Templates.Save(); err != nil {
				return failure("hostcmd: save template %q: %v", name, err)
			}
			return success(tmpl)
		},
	}
}

func templateGetDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "template__get",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Returns one template by name.",
		Parameters: []byte(`{"type": "object", "properties": {"name": {"type": "string"}}, "required": ["name"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			tmpl, err := deps.Templates.Get(argString(inv.Args, "name"))
			if err != nil {
				return failure("hostcmd: get template: %v", err)
			}
			return success(tmpl)
		},
	}
}

func templateListDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "template__list",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Lists every template.",
		Parameters: []byte(`{"type": "object", "properties": {}}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			all, err := deps.Templates.GetAll()
			if err != nil {
				return failure("hostcmd: list templates: %v", err)
			}
			return success(all)
		},
	}
}

func groupAddDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "group__add",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Adds a session to a group, creating the group if it doesn't exist.",
		Parameters: []byte(`{"type": "object", "properties": {"name": {"type": "string"}, "sessionID": {"type": "integer"}}, "required": ["name", "sessionID"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			name := argString(inv.Args, "name")
			id := argInt64(inv.Args, "sessionID")
			grp, err := deps.Groups.Get(name)
			if err != nil {
				grp = &types.Group{Name: name}
			}
			if !grp.Contains(id) {
				grp.SessionIDs = append(grp.SessionIDs, id)
			}
			deps.Groups.Set(grp.RecordID(), grp)
			if err := deps.Groups.Save(); err != nil {
				return failure("hostcmd: save group %q: %v", name, err)
			}
			return success(grp)
		},
	}
}

func groupRemoveDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "group__remove",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Removes a session from a group.",
		Parameters: []byte(`{"type": "object", "properties": {"name": {"type": "string"}, "sessionID": {"type": "integer"}}, "required": ["name", "sessionID"]}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			name := argString(inv.Args, "name")
			id := argInt64(inv.Args, "sessionID")
			grp, err := deps.Groups.Get(name)
			if err != nil {
				return failure("hostcmd: get group %q: %v", name, err)
			}
			filtered := grp.SessionIDs[:0]
			for _, sid := range grp.SessionIDs {
				if sid != id {
					filtered = append(filtered, sid)
				}
			}
			grp.SessionIDs = filtered
			deps.Groups.Set(grp.RecordID(), grp)
			if err := deps.Groups.Save(); err != nil {
				return failure("hostcmd: save group %q: %v", name, err)
			}
			return success(grp)
		},
	}
}

func groupListDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "group__list",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Lists every group.",
		Parameters: []byte(`{"type": "object", "properties": {}}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			all, err := deps.Groups.GetAll()
			if err != nil {
				return failure("hostcmd: list groups: %v", err)
			}
			return success(all)
		},
	}
}

// approvalResolveDefinition records a human's decision on a pending
// approval and, if the approval's session still has a live child, forwards
// the decision to it as a fresh (unsolicited, no MessageID) approval_response
// — routed by the child's own bridge handler into HandleUnsolicited rather
// than matched against a blocked Call, which is why this is a new Send, not
// a reply to the original approval_request.
func approvalResolveDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "approval__resolve",
		HumanOnly: true,
		LocalCommand: true,
		Help: "Resolves a pending approval with choice (approve|reject|modify) and an optional comment.",
		Parameters: []byte(`{
			"type": "object",
			"properties": {
				"id": {"type": "integer"},
				"choice": {"type": "string", "enum": ["approve", "reject", "modify"]},
				"comment": {"type": "string"}
			},
			"required": ["id", "choice"]
		}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			choice := argString(inv.Args, "choice")
			comment := argString(inv.Args, "comment")

			rec, err := deps.Approvals.Get(fmt.Sprint(id))
			if err != nil {
				return failure("hostcmd: get approval %d: %v", id, err)
			}
			if rec.Terminal() {
				return failure("hostcmd: approval %d already resolved", id)
			}

			rec.Status = types.ApprovalStatus(choice)
			rec.Response = comment
			now := time.Now().Unix()
			rec.ResolvedAt = &now
			deps.Approvals.Set(rec.RecordID(), rec)
			if err := deps.Approvals.Save(); err != nil {
				return failure("hostcmd: save approval %d: %v", id, err)
			}

			err = deps.Bridge.NotifyContainer(rec.SessionID, bridge.Message{
				Type:            bridge.TypeApprovalResponse,
				SessionID:       rec.SessionID,
				ToolCallID:      rec.ToolCallID,
				ApprovalID:      rec.ID,
				ApprovalChoice:  choice,
				ApprovalComment: comment,
			})
			if err != nil {
				// The decision is already persisted; a disconnected child
				// (crashed, respawning) will need its own recovery path to
				// notice the resolved record, not this call to fail.
				logging.Logger.Warn().Err(err).Int64("session", rec.SessionID).Int64("approval", id).Msg("hostcmd: deliver approval resolution")
			}
			return success(rec)
		},
	}
}

func questionAnswerDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "question__answer",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Answers a pending human__ask question.",
		Parameters: []byte(`{
			"type": "object",
			"properties": {
				"id": {"type": "integer"},
				"answer": {"type": "string"}
			},
			"required": ["id", "answer"]
		}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			id := argInt64(inv.Args, "id")
			answer := argString(inv.Args, "answer")

			rec, err := deps.Questions.Get(fmt.Sprint(id))
			if err != nil {
				return failure("hostcmd: get question %d: %v", id, err)
			}
			if rec.Terminal() {
				return failure("hostcmd: question %d already answered", id)
			}

			rec.Status = types.QuestionAnswered
			rec.Answer = answer
			now := time.Now().Unix()
			rec.ResolvedAt = &now
			deps.Questions.Set(rec.RecordID(), rec)
			if err := deps.Questions.Save(); err != nil {
				return failure("hostcmd: save question %d: %v", id, err)
			}

			err = deps.Bridge.NotifyContainer(rec.SessionID, bridge.Message{
				Type:       bridge.TypeQuestionResponse,
				SessionID:  rec.SessionID,
				ToolCallID: rec.ToolCallID,
				QuestionID: rec.ID,
				Answer:     answer,
			})
			if err != nil {
				logging.Logger.Warn().Err(err).Int64("session", rec.SessionID).Int64("question", id).Msg("hostcmd: deliver question resolution")
			}
			return success(rec)
		},
	}
}

// toolDescriptor is tool__list's JSON-friendly view of a toolcatalog.Definition:
// Parameters is re-exposed as a raw JSON value instead of bytes, and Handler
// is dropped since it isn't serializable and never invoked through listing.
type toolDescriptor struct {
	Name                   string `json:"name"`
	Help                   string `json:"help"`
	Parameters             []byte `json:"parameters"`
	RequiresHostExecution  bool   `json:"requiresHostExecution"`
	HumanOnly              bool   `json:"humanOnly"`
	LocalCommand           bool   `json:"localCommand"`
}

func toolListDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:      "tool__list",
		HumanOnly: true,
		LocalCommand: true,
		Help:      "Lists every tool the daemon knows about, model-facing and host-only alike.",
		Parameters: []byte(`{"type": "object", "properties": {}}`),
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			defs := deps.Catalog.List()
			out := make([]toolDescriptor, 0, len(defs))
			for _, d := range defs {
				out = append(out, toolDescriptor{
					Name:                  d.Name,
					Help:                  d.Help,
					Parameters:            d.Parameters,
					RequiresHostExecution: d.RequiresHostExecution,
					HumanOnly:             d.HumanOnly,
					LocalCommand:          d.LocalCommand,
				})
			}
			return success(out)
		},
	}
}
