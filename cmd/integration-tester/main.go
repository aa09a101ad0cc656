package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	prefix := flag.String("prefix", "it", "Id prefix for seeded entities")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 8)

	tConn := time.Now()
	session, err := client.Connect(ctx, transport)
	if err != nil {
		report.Steps = append(steps, StepResult{Name: "connect", Error: err.Error(), ElapsedMs: elapsedMsSince(tConn)})
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	steps = append(steps, StepResult{Name: "connect", Success: true, ElapsedMs: elapsedMsSince(tConn)})

	id := func(s string) string { return *prefix + "-" + s }
	a, b, c, d, e := id("a"), id("b"), id("c"), id("d"), id("e")

	steps = append(steps, step("list_tools", func() error {
		res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
		if err != nil {
			return err
		}
		if len(res.Tools) == 0 {
			return fmt.Errorf("no tools registered")
		}
		return nil
	}))
	steps = append(steps, step("register_entities", func() error {
		_, err := callTool(ctx, session, "register_entities", apptype.RegisterEntitiesArgs{Entities: []apptype.EntityInput{
			{ID: a, Type: "user", Label: "A", Tags: []string{"x"}},
			{ID: b, Type: "user", Label: "B"},
			{ID: c, Type: "team", Label: "C"},
			{ID: d, Type: "project", Label: "D"},
			{ID: e, Type: "user", Label: "E", Tags: []string{"x"}},
		}})
		return err
	}))
	steps = append(steps, step("link_entities", func() error {
		_, err := callTool(ctx, session, "link_entities", apptype.LinkEntitiesArgs{Relations: []apptype.Relation{
			{A: a, B: b}, {A: a, B: c}, {A: b, B: d},
		}})
		return err
	}))

	var before apptype.SuggestionsResult
	steps = append(steps, step("generate_suggestions", func() error {
		res, err := callTool(ctx, session, "generate_suggestions", apptype.GenerateSuggestionsArgs{EntityID: a, MaxResults: 10, IncludeReason: true})
		if err != nil {
			return err
		}
		if err := structured(res, &before); err != nil {
			return err
		}
		if len(before.Suggestions) == 0 {
			return fmt.Errorf("expected suggestions for %s", a)
		}
		return nil
	}))
	steps = append(steps, step("submit_feedback", func() error {
		for i := 0; i < 5; i++ {
			if _, err := callTool(ctx, session, "submit_feedback", apptype.SubmitFeedbackArgs{EntityID: a, SuggestionID: d, IsHelpful: true}); err != nil {
				return err
			}
		}
		return nil
	}))
	steps = append(steps, step("record_interaction", func() error {
		_, err := callTool(ctx, session, "record_interaction", apptype.RecordInteractionArgs{SourceID: a, TargetID: e})
		return err
	}))
	steps = append(steps, step("feedback_reranks", func() error {
		res, err := callTool(ctx, session, "generate_suggestions", apptype.GenerateSuggestionsArgs{EntityID: a, MaxResults: 10})
		if err != nil {
			return err
		}
		var after apptype.SuggestionsResult
		if err := structured(res, &after); err != nil {
			return err
		}
		if confidence(after, d) <= confidence(before, d) {
			return fmt.Errorf("confidence for %s did not increase: %.3f -> %.3f", d, confidence(before, d), confidence(after, d))
		}
		return nil
	}))
	steps = append(steps, step("health_check", func() error {
		_, err := callTool(ctx, session, "health_check", apptype.HealthArgs{})
		return err
	}))

	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)
	if !report.Passed {
		os.Exit(1)
	}
}

func step(name string, fn func() error) StepResult {
	t0 := time.Now()
	res := StepResult{Name: name}
	if err := fn(); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func callTool(ctx context.Context, session *mcp.ClientSession, name string, args any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(raw)})
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, fmt.Errorf("%s returned a tool error", name)
	}
	return res, nil
}

func structured(res *mcp.CallToolResult, dst any) error {
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func confidence(r apptype.SuggestionsResult, id string) float64 {
	for _, s := range r.Suggestions {
		if s.ID == id {
			return s.Confidence
		}
	}
	return 0
}

func writeReport(r Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)
}

// elapsedMsSince returns max(1ms, elapsed) to avoid zero durations on fast steps
func elapsedMsSince(t0 time.Time) int64 {
	d := time.Since(t0) / time.Millisecond
	if d <= 0 {
		return 1
	}
	return int64(d)
}
