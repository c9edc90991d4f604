package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"rendercue/internal/model"
	"rendercue/internal/workspace"
)

var (
	listTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	listMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	listIndexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	listWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	listSceneStyle  = lipgloss.NewStyle().Bold(true)
	listActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type listResult struct {
	ConfigPath       string               `json:"config_path"`
	OutputLocation   model.OutputLocation `json:"output_location"`
	GlobalOutputPath string               `json:"global_output_path"`
	Jobs             []listRow            `json:"jobs"`
}

type listRow struct {
	Index     int               `json:"index"`
	ID        string            `json:"id"`
	Scene     string            `json:"scene"`
	Known     *bool             `json:"known,omitempty"`
	Overrides map[string]string `json:"overrides"`
}

func runList(args []string) error {
	fs := newFlagSet("list")
	config := fs.String("config", "", "workspace config path")
	document := fs.String("document", "", "scene table JSON used to flag unknown scenes")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := workspace.ResolvePath(*config)
	cfg, err := workspace.Read(configPath)
	if err != nil {
		return err
	}
	catalog, err := optionalCatalog(*document, cfg.Settings)
	if err != nil {
		return err
	}
	res := buildListResult(configPath, cfg.Queue, catalog)
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Print(renderList(res))
	return nil
}

func buildListResult(configPath string, q model.Queue, catalog model.SceneCatalog) listResult {
	res := listResult{
		ConfigPath:       configPath,
		OutputLocation:   q.OutputLocation,
		GlobalOutputPath: q.GlobalOutputPath,
		Jobs:             make([]listRow, 0, len(q.Jobs)),
	}
	for i, job := range q.Jobs {
		row := listRow{
			Index:     i + 1,
			ID:        job.ID,
			Scene:     job.Scene,
			Overrides: map[string]string{},
		}
		if catalog != nil {
			_, ok := catalog.Scene(job.Scene)
			row.Known = &ok
		}
		for _, key := range job.Overrides.ActiveOverrides() {
			row.Overrides[key.String()] = job.Overrides.ValueString(key)
		}
		res.Jobs = append(res.Jobs, row)
	}
	return res
}

func renderList(res listResult) string {
	var b strings.Builder
	b.WriteString(listTitleStyle.Render("rendercue queue") + "\n")
	out := string(res.OutputLocation)
	if res.OutputLocation == model.OutputCustom {
		out += " " + res.GlobalOutputPath
	}
	b.WriteString(listMutedStyle.Render(fmt.Sprintf("config: %s | output: %s", res.ConfigPath, out)) + "\n")
	if len(res.Jobs) == 0 {
		b.WriteString("queue is empty\n")
		b.WriteString("next: rendercue populate  (or rendercue add <scene>)\n")
		return b.String()
	}

	for _, row := range res.Jobs {
		line := listIndexStyle.Render(fmt.Sprintf("%2d.", row.Index)) + " " + listSceneStyle.Render(row.Scene)
		if row.Known != nil && !*row.Known {
			line += " " + listWarnStyle.Render("(not in document)")
		}
		b.WriteString(line + "\n")
		if len(row.Overrides) == 0 {
			b.WriteString("    " + listMutedStyle.Render("scene settings") + "\n")
			continue
		}
		for _, key := range model.OverrideKeys() {
			v, ok := row.Overrides[key.String()]
			if !ok {
				continue
			}
			b.WriteString("    " + listActiveStyle.Render(key.Label()) + ": " + v + "\n")
		}
	}
	return b.String()
}
