package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/digestflow/pkg/models"
)

const (
	iconCached  = "[=]"
	iconPending = "[ ]"
)

// PlanView renders a task graph as an indented list, one task per line,
// each task indented by the length of its longest dependency chain.
type PlanView struct {
	tasks  []*models.Task
	cached map[string]bool

	headerStyle  lipgloss.Style
	nodeStyle    lipgloss.Style
	arrowStyle   lipgloss.Style
	cachedStyle  lipgloss.Style
	pendingStyle lipgloss.Style
}

// NewPlanView creates a view over tasks. cached marks the tasks that would
// be served from the cache.
func NewPlanView(tasks []*models.Task, cached map[string]bool) *PlanView {
	return &PlanView{
		tasks:  tasks,
		cached: cached,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		nodeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		arrowStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		cachedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")), // Light blue
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
	}
}

// View renders the plan.
func (v *PlanView) View() string {
	var b strings.Builder

	toRun := 0
	for _, t := range v.tasks {
		if !v.cached[t.ID] {
			toRun++
		}
	}
	b.WriteString(v.headerStyle.Render(fmt.Sprintf("Plan: %d tasks, %d to run, %d cached",
		len(v.tasks), toRun, len(v.tasks)-toRun)))
	b.WriteString("\n\n")

	depth := v.depths()
	for _, t := range v.tasks {
		indent := strings.Repeat("  ", depth[t.ID])
		prefix := ""
		if depth[t.ID] > 0 {
			prefix = v.arrowStyle.Render("|-- ")
		}
		line := fmt.Sprintf("%s%s%s %s", indent, prefix, v.icon(t.ID), v.nodeStyle.Render(t.ID))
		if len(t.DependsOn) > 0 {
			line += " " + v.arrowStyle.Render("<-- "+strings.Join(t.DependsOn, ", "))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (v *PlanView) icon(id string) string {
	if v.cached[id] {
		return v.cachedStyle.Render(iconCached)
	}
	return v.pendingStyle.Render(iconPending)
}

// depths returns the longest dependency chain below each task. Unknown
// dependencies count as roots; cycles are cut where they are found.
func (v *PlanView) depths() map[string]int {
	byID := make(map[string]*models.Task, len(v.tasks))
	for _, t := range v.tasks {
		byID[t.ID] = t
	}

	depth := make(map[string]int, len(v.tasks))
	visiting := make(map[string]bool)
	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		t, ok := byID[id]
		if !ok || visiting[id] {
			return -1
		}
		visiting[id] = true
		d := 0
		for _, dep := range t.DependsOn {
			if dd := visit(dep) + 1; dd > d {
				d = dd
			}
		}
		visiting[id] = false
		depth[id] = d
		return d
	}
	for _, t := range v.tasks {
		visit(t.ID)
	}
	return depth
}
