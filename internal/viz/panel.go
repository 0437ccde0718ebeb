package viz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/san-kum/crnsim/internal/config"
	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/dynamo"
	"github.com/san-kum/crnsim/internal/experiment"
)

type resultMsg struct {
	gen    int
	result *dynamo.Result
	err    error
}

type reloadMsg struct {
	model *crn.Model
	err   error
}

// Panel is the interactive view of one network: a slider per rate, a field
// per species' initial concentration, and the integrated trajectories. Every
// change builds a new model and re-integrates it in the background; results
// of superseded integrations are dropped.
type Panel struct {
	cfg      *config.Config
	reg      *experiment.Registry
	logger   *zap.Logger
	specPath string

	initial  *crn.Model
	model    *crn.Model
	controls []control
	cursor   int

	editing bool
	editBuf string

	gen     int
	cancel  context.CancelFunc
	running bool
	result  *dynamo.Result
	err     error

	theme     int
	showPhase bool
	width     int
	watcher   *fsnotify.Watcher
}

func NewPanel(model *crn.Model, specPath string, cfg *config.Config, reg *experiment.Registry, logger *zap.Logger) *Panel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{
		cfg:      cfg,
		reg:      reg,
		logger:   logger.Named("panel"),
		specPath: specPath,
		initial:  model,
		model:    model,
		controls: controlsFor(model, cfg),
		width:    120,
	}
}

// Watch reloads the network whenever the spec file changes.
func (p *Panel) Watch() error {
	if p.specPath == "" {
		return nil
	}
	w, err := newSpecWatcher(p.specPath)
	if err != nil {
		return fmt.Errorf("watch %s: %w", p.specPath, err)
	}
	p.watcher = w
	return nil
}

func (p *Panel) Init() tea.Cmd {
	cmds := []tea.Cmd{p.integrate()}
	if p.watcher != nil {
		cmds = append(cmds, waitForChange(p.watcher, p.specPath))
	}
	return tea.Batch(cmds...)
}

// integrate starts a new background run of the current model, canceling the
// previous one.
func (p *Panel) integrate() tea.Cmd {
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	gen, model, reg, cfg := p.gen, p.model, p.reg, p.cfg.Experiment()
	return func() tea.Msg {
		res, err := experiment.Integrate(ctx, reg, model, cfg)
		return resultMsg{gen: gen, result: res, err: err}
	}
}

// rebuild applies the controls to a new model. An invalid combination, such
// as an x0 that no longer sums to 1, is reported and the last plot stays.
func (p *Panel) rebuild() tea.Cmd {
	rates, x0 := apply(p.model, p.controls)
	m, err := p.model.With(rates, x0)
	if err != nil {
		p.err = err
		p.logger.Debug("rebuild rejected", zap.Error(err))
		return nil
	}
	p.model = m
	p.err = nil
	return p.integrate()
}

func (p *Panel) reload() tea.Cmd {
	path, logger := p.specPath, p.logger
	return func() tea.Msg {
		m, err := crn.FromJSON(path, crn.WithLogger(logger))
		return reloadMsg{model: m, err: err}
	}
}

func (p *Panel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p, p.handleKey(msg)
	case tea.WindowSizeMsg:
		p.width = msg.Width
		return p, nil
	case resultMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		p.running = false
		if msg.result != nil {
			p.result = msg.result
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			p.err = msg.err
		}
		return p, nil
	case specChangedMsg:
		p.logger.Info("spec changed, reloading", zap.String("path", p.specPath))
		return p, tea.Batch(p.reload(), waitForChange(p.watcher, p.specPath))
	case reloadMsg:
		if msg.err != nil {
			p.err = fmt.Errorf("reload: %w", msg.err)
			return p, nil
		}
		p.initial, p.model = msg.model, msg.model
		p.controls = controlsFor(msg.model, p.cfg)
		p.cursor = min(p.cursor, len(p.controls)-1)
		p.err = nil
		return p, p.integrate()
	case watchErrMsg:
		p.logger.Warn("spec watcher failed", zap.Error(msg.err))
		return p, waitForChange(p.watcher, p.specPath)
	}
	return p, nil
}

func (p *Panel) quit() tea.Cmd {
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		p.watcher.Close()
	}
	return tea.Quit
}

func (p *Panel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if p.editing {
		return p.editKey(msg)
	}

	c := &p.controls[p.cursor]
	switch msg.String() {
	case "q", "ctrl+c":
		return p.quit()
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.controls)-1 {
			p.cursor++
		}
	case "left", "h":
		c.nudge(-c.coarse())
		return p.rebuild()
	case "right", "l":
		c.nudge(c.coarse())
		return p.rebuild()
	case "H", "shift+left":
		c.nudge(-c.fine())
		return p.rebuild()
	case "L", "shift+right":
		c.nudge(c.fine())
		return p.rebuild()
	case "enter":
		p.editing, p.editBuf = true, strconv.FormatFloat(c.value, 'g', -1, 64)
	case "r":
		p.model = p.initial
		p.controls = controlsFor(p.initial, p.cfg)
		p.err = nil
		return p.integrate()
	case "t":
		p.theme = (p.theme + 1) % len(Themes)
	case "p":
		p.showPhase = !p.showPhase
	}
	return nil
}

func (p *Panel) editKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		p.editing = false
		v, err := strconv.ParseFloat(p.editBuf, 64)
		p.editBuf = ""
		if err != nil {
			p.err = fmt.Errorf("not a number: %w", err)
			return nil
		}
		p.controls[p.cursor].set(v)
		return p.rebuild()
	case "esc":
		p.editing, p.editBuf = false, ""
	case "backspace":
		if len(p.editBuf) > 0 {
			p.editBuf = p.editBuf[:len(p.editBuf)-1]
		}
	case "ctrl+c":
		return p.quit()
	default:
		s := msg.String()
		if len(s) == 1 && strings.ContainsAny(s, "0123456789.-+eE") {
			p.editBuf += s
		}
	}
	return nil
}

func (p *Panel) View() string {
	theme := Themes[p.theme]
	st := newStyles(theme)

	status := "ready"
	if p.running {
		status = "integrating..."
	}

	var controls strings.Builder
	controls.WriteString(st.header.Render(strings.ToUpper(p.model.Name())) + "\n")
	for i, c := range p.controls {
		val := c.readout()
		if p.editing && i == p.cursor {
			val = p.editBuf + "_"
		}
		line := fmt.Sprintf("%-14s %s %s", c.label(), c.bar(10), val)
		if i == p.cursor {
			controls.WriteString(st.selected.Render("> "+line) + "\n")
		} else {
			controls.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	controls.WriteString("\n" + st.label.Render("status") + st.value.Render(status) + "\n")
	controls.WriteString(st.label.Render("theme") + st.value.Render(ThemeNames()[p.theme]) + "\n")
	if p.result != nil {
		controls.WriteString(st.label.Render("samples") + st.value.Render(strconv.Itoa(len(p.result.States))) + "\n")
		controls.WriteString(st.label.Render("steps") + st.value.Render(fmt.Sprintf("%d (%d rejected)", p.result.StepsTaken, p.result.Rejected)) + "\n")
		for i, name := range p.model.Species() {
			spark := lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(int(theme.SeriesColor(i)))))
			controls.WriteString(st.label.Render(name) + spark.Render(Sparkline(p.result.Series(i), 24)) + "\n")
		}
	}
	if p.err != nil {
		controls.WriteString("\n" + st.errText.Render(p.err.Error()) + "\n")
	}
	controls.WriteString(st.hint.Render("j/k select  h/l adjust  H/L fine  enter type\nr reset  p phase  t theme  q quit"))

	plot := p.viewPlot(theme)
	summary := st.summary.Render(p.model.String())

	var body string
	if p.cfg.Panel.Horizontal {
		body = lipgloss.JoinHorizontal(lipgloss.Top, st.panel.Render(plot), st.panel.Render(controls.String()))
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, st.panel.Render(plot), st.panel.Render(controls.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, summary)
}

func (p *Panel) viewPlot(theme Theme) string {
	if p.result == nil || len(p.result.States) < 2 {
		return "waiting for first integration"
	}

	species := p.model.Species()
	w, h := p.cfg.Panel.PlotWidth, p.cfg.Panel.PlotHeight

	if p.showPhase && len(species) >= 2 {
		c := NewCanvas(w/2, h/2)
		c.PlotPath(p.result.Series(0), p.result.Series(1))
		return fmt.Sprintf("%s vs %s\n%s", species[1], species[0], c.String())
	}

	graph := PlotSpecies(species, p.result.States, w, h, theme, fmt.Sprintf("t = 0..%g", p.result.Times[len(p.result.Times)-1]))
	return graph + "\n" + Legend(species, theme)
}

// Run starts the panel on the terminal's alternate screen.
func Run(p *Panel) error {
	_, err := tea.NewProgram(p, tea.WithAltScreen()).Run()
	return err
}
