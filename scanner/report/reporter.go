// Package report collects the findings read back from the store and prints
// a summary of the scan
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"gitlab.com/trawler/trawl"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	levelStyles = map[int]lipgloss.Style{
		trawl.LevelCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		trawl.LevelHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		trawl.LevelMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D")),
		trawl.LevelLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77")),
		trawl.LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#4D96FF")),
	}
)

// Reporter keeps one copy of every finding, grouped by category
type Reporter struct {
	lock      sync.Mutex
	target    string
	payloads  map[string]map[string]*trawl.Payload
	summaries []*trawl.ModuleSummary
}

// New reporter for the scanned target
func New(target string) *Reporter {
	return &Reporter{target: target, payloads: make(map[string]map[string]*trawl.Payload)}
}

// Add a finding, the same finding reported twice is kept once
func (r *Reporter) Add(payload *trawl.Payload) {
	key := strings.Join([]string{payload.Module, payload.PathID, payload.Parameter, payload.Info}, "\x00")

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exist := r.payloads[payload.Category]; !exist {
		r.payloads[payload.Category] = make(map[string]*trawl.Payload)
	}
	r.payloads[payload.Category][key] = payload
}

// AddSummary of a module run
func (r *Reporter) AddSummary(summary *trawl.ModuleSummary) {
	r.lock.Lock()
	r.summaries = append(r.summaries, summary)
	r.lock.Unlock()
}

// Counts of findings per type
func (r *Reporter) Counts() map[trawl.PayloadType]int {
	r.lock.Lock()
	defer r.lock.Unlock()
	counts := make(map[trawl.PayloadType]int)
	for _, findings := range r.payloads {
		for _, p := range findings {
			counts[p.Type]++
		}
	}
	return counts
}

// Categories with at least one finding, sorted
func (r *Reporter) Categories() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	categories := make([]string, 0, len(r.payloads))
	for c := range r.payloads {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// Findings of a category, most severe first
func (r *Reporter) Findings(category string) []*trawl.Payload {
	r.lock.Lock()
	defer r.lock.Unlock()
	findings := make([]*trawl.Payload, 0, len(r.payloads[category]))
	for _, p := range r.payloads[category] {
		findings = append(findings, p)
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Level != findings[j].Level {
			return findings[i].Level > findings[j].Level
		}
		if findings[i].Request.URL != findings[j].Request.URL {
			return findings[i].Request.URL < findings[j].Request.URL
		}
		return findings[i].Parameter < findings[j].Parameter
	})
	return findings
}

// Print the summary
func (r *Reporter) Print(writer io.Writer) error {
	b := &strings.Builder{}
	counts := r.Counts()

	fmt.Fprintln(b, titleStyle.Render("Report for "+r.target))
	fmt.Fprintf(b, "%d vulnerabilities, %d anomalies, %d additional\n",
		counts[trawl.PayloadVulnerability], counts[trawl.PayloadAnomaly], counts[trawl.PayloadAdditional])

	for _, category := range r.Categories() {
		findings := r.Findings(category)
		fmt.Fprintf(b, "\n%s %s\n", sectionStyle.Render(category), mutedStyle.Render(fmt.Sprintf("(%d)", len(findings))))
		for _, p := range findings {
			level := levelStyles[p.Level].Render(trawl.LevelMap[p.Level])
			line := padRight(level, 9) + " " + p.Request.String()
			if p.Parameter != "" {
				line += " [" + p.Parameter + "]"
			}
			fmt.Fprintf(b, "  %s\n", line)
			if p.Info != "" {
				fmt.Fprintf(b, "            %s\n", mutedStyle.Render(p.Info))
			}
		}
	}

	r.lock.Lock()
	summaries := append([]*trawl.ModuleSummary(nil), r.summaries...)
	r.lock.Unlock()
	if len(summaries) > 0 {
		fmt.Fprintf(b, "\n%s\n", sectionStyle.Render("Modules"))
		fmt.Fprintf(b, "  %s %s %s %s %s\n", padRight("module", 14), padRight("attacked", 9), padRight("net errors", 11), padRight("crashes", 8), "status")
		for _, s := range summaries {
			status := "done"
			if s.Skipped != "" {
				status = "skipped: " + s.Skipped
			}
			fmt.Fprintf(b, "  %s %s %s %s %s\n",
				padRight(s.Name, 14),
				padRight(fmt.Sprintf("%d", s.Attacked), 9),
				padRight(fmt.Sprintf("%d", s.NetworkErrors), 11),
				padRight(fmt.Sprintf("%d", s.Crashes), 8),
				status)
		}
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

// padRight on visible width, styled strings carry escape codes
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
