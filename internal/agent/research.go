package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neurosurf/neurosurf/internal/memory"
	"github.com/neurosurf/neurosurf/internal/tools"
)

const researchSourceCount = 3

// Researcher runs the deep-research pipeline: search, scrape the top hits,
// summarize each, and export a combined report.
type Researcher struct {
	llm  LLM
	web  *tools.WebClient
	docs *tools.DocumentWriter
	mem  memory.Repository
	emit Emitter
}

// NewResearcher wires the research pipeline. mem may be nil.
func NewResearcher(llm LLM, web *tools.WebClient, docs *tools.DocumentWriter, mem memory.Repository, emit Emitter) *Researcher {
	return &Researcher{llm: llm, web: web, docs: docs, mem: mem, emit: emit}
}

// Run executes one research task end to end, streaming progress thoughts.
func (r *Researcher) Run(ctx context.Context, threadID, topic string) error {
	r.emit.State("acting")
	defer r.emit.State("idle")

	r.emit.Thought(responseID(), "Researching: "+topic, "system", threadID)

	results, err := r.web.Search(ctx, topic)
	if err != nil {
		r.emit.Thought(responseID(), "Search failed: "+err.Error(), "error", threadID)
		return err
	}
	if len(results) == 0 {
		r.emit.Thought(responseID(), "No results found for "+topic, "error", threadID)
		return fmt.Errorf("no search results for %q", topic)
	}
	if len(results) > researchSourceCount {
		results = results[:researchSourceCount]
	}

	type source struct {
		title   string
		url     string
		summary string
	}
	var sources []source

	for i, hit := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.emit.Thought(responseID(),
			fmt.Sprintf("Reading source %d/%d: %s", i+1, len(results), hit.URL),
			"action", threadID)

		title, text, err := r.web.Scrape(ctx, hit.URL)
		if err != nil {
			slog.Debug("scrape failed", "url", hit.URL, "error", err)
			continue
		}
		if title == "" {
			title = hit.Title
		}

		summary, err := r.llm.Generate(ctx,
			"Summarize the key facts from this page relevant to the topic: "+topic,
			text)
		if err != nil {
			slog.Debug("summary failed", "url", hit.URL, "error", err)
			continue
		}
		sources = append(sources, source{title: title, url: hit.URL, summary: summary})

		if r.mem != nil {
			if err := r.mem.AddPage(ctx, &memory.Page{URL: hit.URL, Title: title, Summary: summary}); err != nil {
				slog.Debug("page persist failed", "url", hit.URL, "error", err)
			}
		}
	}

	if len(sources) == 0 {
		r.emit.Thought(responseID(), "All sources failed to load", "error", threadID)
		return fmt.Errorf("no readable sources for %q", topic)
	}

	var notes strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&notes, "## %s\n%s\n\nSource: %s\n\n", s.title, s.summary, s.url)
	}

	report, err := r.llm.Generate(ctx,
		"Write a structured markdown research report on the topic: "+topic+
			". Use the notes below and cite the sources at the end.",
		notes.String())
	if err != nil {
		// Fall back to the raw notes rather than losing the work.
		slog.Warn("report synthesis failed, exporting notes", "error", err)
		report = notes.String()
	}

	path, err := r.docs.Save(topic, report)
	if err != nil {
		r.emit.Thought(responseID(), "Could not save report: "+err.Error(), "error", threadID)
		return err
	}

	r.emit.Thought(responseID(), "Research complete. Report saved to "+path, "system", threadID)
	if r.mem != nil {
		if err := r.mem.SaveTaskResult(ctx, &memory.TaskResult{
			Task: "research: " + topic, Result: path, Success: true,
		}); err != nil {
			slog.Debug("task result persist failed", "error", err)
		}
	}
	return nil
}
