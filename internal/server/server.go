package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/engine"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// MCPServer exposes the suggestion engine as MCP tools
type MCPServer struct {
	server *mcp.Server
	engine *engine.Engine
	logger *zap.Logger
}

// NewMCPServer creates a new MCP server
func NewMCPServer(eng *engine.Engine, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    buildinfo.Name,
		Version: buildinfo.Version,
	}, nil)

	s := &MCPServer{
		server: server,
		engine: eng,
		logger: logger,
	}
	s.setupToolHandlers()
	return s
}

func mustSchema[T any](name string) *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", name, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	// Only tools returning structured content declare an OutputSchema.
	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Register Entities"},
		Name:        "register_entities",
		Title:       "Register Entities",
		Description: "Add or replace entities (users, teams, projects, goals, departments, knowledge assets) with tags and typed properties.",
		InputSchema: mustSchema[apptype.RegisterEntitiesArgs]("RegisterEntitiesArgs"),
	}, s.handleRegisterEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "link_entities",
		Title:       "Link Entities",
		Description: "Create undirected relationships between registered entities.",
		InputSchema: mustSchema[apptype.LinkEntitiesArgs]("LinkEntitiesArgs"),
	}, s.handleLinkEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &mcp.ToolAnnotations{Title: "Generate Suggestions", ReadOnlyHint: true},
		Name:         "generate_suggestions",
		Title:        "Generate Suggestions",
		Description:  "Rank entities the given entity should connect with, using direct links, second-degree links and shared tags.",
		InputSchema:  mustSchema[apptype.GenerateSuggestionsArgs]("GenerateSuggestionsArgs"),
		OutputSchema: mustSchema[apptype.SuggestionsResult]("SuggestionsResult"),
	}, s.handleGenerateSuggestions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_feedback",
		Title:       "Submit Feedback",
		Description: "Record whether a suggestion was helpful. Feedback shifts future confidence for that target.",
		InputSchema: mustSchema[apptype.SubmitFeedbackArgs]("SubmitFeedbackArgs"),
	}, s.handleSubmitFeedback)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_interaction",
		Title:       "Record Interaction",
		Description: "Note that an entity opened or acted on a suggested entity.",
		InputSchema: mustSchema[apptype.RecordInteractionArgs]("RecordInteractionArgs"),
	}, s.handleRecordInteraction)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &mcp.ToolAnnotations{Title: "Health Check", ReadOnlyHint: true},
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Report build info and engine counters.",
		InputSchema:  mustSchema[apptype.HealthArgs]("HealthArgs"),
		OutputSchema: mustSchema[apptype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

func textResult(format string, args ...any) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// handleRegisterEntities handles the register_entities tool call
func (s *MCPServer) handleRegisterEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.RegisterEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("register_entities")
	var success bool
	defer func() { done(success) }()

	inputs := params.Arguments.Entities
	entities := make([]apptype.Entity, 0, len(inputs))
	for _, in := range inputs {
		ent, err := in.ToEntity()
		if err != nil {
			return nil, fmt.Errorf("invalid entity %q: %w", in.ID, err)
		}
		entities = append(entities, ent)
	}
	if err := s.engine.RegisterEntities(ctx, entities); err != nil {
		return nil, fmt.Errorf("failed to register entities: %w", err)
	}
	success = true
	return textResult("Registered %d entities", len(entities)), nil
}

// handleLinkEntities handles the link_entities tool call
func (s *MCPServer) handleLinkEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.LinkEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("link_entities")
	var success bool
	defer func() { done(success) }()

	rels := params.Arguments.Relations
	if err := s.engine.Link(ctx, rels); err != nil {
		return nil, fmt.Errorf("failed to link entities: %w", err)
	}
	success = true
	return textResult("Linked %d entity pairs", len(rels)), nil
}

// handleGenerateSuggestions handles the generate_suggestions tool call
func (s *MCPServer) handleGenerateSuggestions(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GenerateSuggestionsArgs],
) (*mcp.CallToolResultFor[apptype.SuggestionsResult], error) {
	done := metrics.TimeTool("generate_suggestions")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	list, err := s.engine.GenerateSuggestions(ctx, args.EntityID, args.Options())
	if err != nil {
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.SuggestionsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: summarize(args.EntityID, list)}},
		StructuredContent: apptype.SuggestionsResult{EntityID: args.EntityID, Suggestions: list},
	}, nil
}

func summarize(entityID string, list []apptype.Suggestion) string {
	if len(list) == 0 {
		return fmt.Sprintf("No suggestions for %s", entityID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d suggestions for %s:", len(list), entityID)
	for _, sg := range list {
		fmt.Fprintf(&b, "\n- %s (%s) %.2f %s", sg.Label, sg.Type, sg.Confidence, sg.Priority)
		if sg.Reason != "" {
			fmt.Fprintf(&b, ": %s", sg.Reason)
		}
	}
	return b.String()
}

// handleSubmitFeedback handles the submit_feedback tool call
func (s *MCPServer) handleSubmitFeedback(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SubmitFeedbackArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("submit_feedback")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	if err := s.engine.SubmitFeedback(args.EntityID, args.SuggestionID, args.IsHelpful); err != nil {
		return nil, fmt.Errorf("failed to submit feedback: %w", err)
	}
	success = true
	c := s.engine.FeedbackCounts(args.SuggestionID)
	return textResult("Feedback recorded for %s (%d helpful, %d not helpful)", args.SuggestionID, c.Helpful, c.NotHelpful), nil
}

// handleRecordInteraction handles the record_interaction tool call
func (s *MCPServer) handleRecordInteraction(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.RecordInteractionArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("record_interaction")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	if err := s.engine.RecordInteraction(args.SourceID, args.TargetID); err != nil {
		return nil, fmt.Errorf("failed to record interaction: %w", err)
	}
	success = true
	return textResult("Interaction recorded: %s -> %s", args.SourceID, args.TargetID), nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()

	st := s.engine.Stats()
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content: []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: apptype.HealthResult{
			Name:         buildinfo.Name,
			Version:      buildinfo.Version,
			Revision:     buildinfo.Revision,
			BuildDate:    buildinfo.BuildDate,
			Entities:     st.Entities,
			Edges:        st.Edges,
			CachedKeys:   st.CachedKeys,
			RemoteState:  st.RemoteState,
			ScoringModel: st.ScoringModel,
		},
	}, nil
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio")
	return s.server.Run(ctx, mcp.NewStdioTransport())
}

// Handler returns the SSE handler so it can be mounted on another mux.
func (s *MCPServer) Handler() http.Handler {
	return mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	mux := http.NewServeMux()
	mux.Handle(endpoint, s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("SSE MCP server listening", zap.String("addr", addr), zap.String("endpoint", endpoint))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
