package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mediaconv/internal/config"
	"mediaconv/internal/discovery"
	"mediaconv/internal/dispatch"
	"mediaconv/internal/model"
)

type wizardStep int

const (
	wizardStepPaths wizardStep = iota
	wizardStepOptions
	wizardStepConfirm
)

type wizardFieldKind int

const (
	wizardFieldInt wizardFieldKind = iota
	wizardFieldBool
	wizardFieldSelect
)

type wizardField struct {
	Key     string
	Label   string
	Help    string
	Kind    wizardFieldKind
	Value   string
	Options []string
}

type wizardForm struct {
	Fields []wizardField
	Index  int
	Input  textinput.Model
	Error  string
}

type wizardDefaults struct {
	Workers       int
	Recommended   int
	Units         int
	Format        model.TargetFormat
	HardwareAccel bool
	OutputDirName string
}

type wizardChoice struct {
	Paths         []string
	Workers       int
	Format        model.TargetFormat
	HardwareAccel bool
}

type wizardModel struct {
	step     wizardStep
	width    int
	height   int
	defaults wizardDefaults

	paths     []string
	pathInput textinput.Model
	pathError string

	form   *wizardForm
	choice wizardChoice

	confirmed bool
	cancelled bool
}

var (
	wizardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	wizardMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	wizardErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	wizardPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func runInteractive(args []string) error {
	fs := flag.NewFlagSet("interactive", flag.ContinueOnError)
	cf := registerConvertFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	prefilled, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("interactive mode requires a terminal (TTY); use 'mediaconv convert'")
	}

	req, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	units := dispatch.AvailableUnits()
	workers, _ := config.ResolveWorkers(req.WorkersFlag, req.Settings, units)

	m := newWizardModel(wizardDefaults{
		Workers:       workers,
		Recommended:   dispatch.RecommendedWorkers(units),
		Units:         units,
		Format:        req.Format,
		HardwareAccel: req.HardwareAccel,
		OutputDirName: req.Settings.OutputDirName,
	}, 80)
	for _, p := range prefilled {
		_ = m.addPath(p)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("interactive mode requires a terminal (TTY); use 'mediaconv convert'")
		}
		return err
	}
	fm, ok := finalModel.(wizardModel)
	if !ok || !fm.confirmed {
		fmt.Println("conversion cancelled")
		return nil
	}

	req.Inputs = fm.choice.Paths
	req.WorkersFlag = fm.choice.Workers
	req.Format = fm.choice.Format
	req.HardwareAccel = fm.choice.HardwareAccel
	req.AssumeYes = true
	req.Progress = true

	ctx, stop := interruptContext(req.Logger)
	defer stop()
	_, err = runSession(ctx, req)
	return err
}

func newWizardModel(def wizardDefaults, width int) wizardModel {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "drag a file or folder here, or type a path"
	input.CharLimit = 4096
	input.Width = clampInt(width-8, 20, 120)
	input.Focus()
	if def.Format == "" {
		def.Format = model.FormatVideo
	}
	return wizardModel{
		step:      wizardStepPaths,
		width:     width,
		defaults:  def,
		pathInput: input,
	}
}

func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pathInput.Width = clampInt(m.width-8, 20, 120)
		if m.form != nil {
			m.form.Input.Width = clampInt(m.width-8, 20, 120)
		}
		return m, nil
	case tea.KeyMsg:
		switch m.step {
		case wizardStepPaths:
			return m.updatePaths(msg)
		case wizardStepOptions:
			return m.updateOptions(msg)
		case wizardStepConfirm:
			return m.updateConfirm(msg)
		}
	}
	return m, nil
}

// addPath validates and appends one user-entered path.
func (m *wizardModel) addPath(raw string) error {
	p := discovery.CleanInputPath(raw)
	if p == "" {
		return nil
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("not found: %s", p)
	}
	for _, existing := range m.paths {
		if existing == p {
			return fmt.Errorf("already added: %s", p)
		}
	}
	m.paths = append(m.paths, p)
	return nil
}

func (m wizardModel) updatePaths(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "ctrl+r":
		if len(m.paths) > 0 {
			m.paths = m.paths[:len(m.paths)-1]
		}
		m.pathError = ""
		return m, nil
	case "enter":
		v := discovery.CleanInputPath(m.pathInput.Value())
		if v == "" || strings.EqualFold(v, "done") {
			if len(m.paths) == 0 {
				m.pathError = "add at least one file or folder"
				m.pathInput.SetValue("")
				return m, nil
			}
			m.pathError = ""
			m.step = wizardStepOptions
			m.form = newWizardForm(m.defaults, m.width)
			return m, nil
		}
		if err := m.addPath(v); err != nil {
			m.pathError = err.Error()
		} else {
			m.pathError = ""
		}
		m.pathInput.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m wizardModel) updateOptions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.step = wizardStepPaths
		return m, nil
	}
	key := strings.ToLower(msg.String())
	switch key {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	case "esc":
		m.step = wizardStepPaths
		m.form = nil
		return m, nil
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case " ", "space", "right", "l":
		switch m.form.currentField().Kind {
		case wizardFieldBool:
			m.form.toggleBoolField()
			return m, nil
		case wizardFieldSelect:
			m.form.stepSelectOption(1)
			return m, nil
		}
	case "left", "h":
		switch m.form.currentField().Kind {
		case wizardFieldBool:
			m.form.toggleBoolField()
			return m, nil
		case wizardFieldSelect:
			m.form.stepSelectOption(-1)
			return m, nil
		}
	case "y", "n":
		if m.form.currentField().Kind == wizardFieldBool {
			m.form.setBoolField(key == "y")
			return m, nil
		}
	case "enter":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		choice, err := m.form.toChoice()
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		choice.Paths = append([]string(nil), m.paths...)
		m.choice = choice
		m.step = wizardStepConfirm
		return m, nil
	}

	if m.form.currentField().Kind != wizardFieldInt {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m wizardModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	case "y", "enter":
		m.confirmed = true
		return m, tea.Quit
	case "n", "esc":
		m.step = wizardStepOptions
		return m, nil
	}
	return m, nil
}

func (m wizardModel) View() string {
	if m.width <= 0 {
		m.width = 80
	}
	switch m.step {
	case wizardStepOptions:
		return m.viewOptions()
	case wizardStepConfirm:
		return m.viewConfirm()
	default:
		return m.viewPaths()
	}
}

func (m wizardModel) viewPaths() string {
	header := wizardTitleStyle.Render("mediaconv: files and folders") + "\n" +
		wizardMutedStyle.Render("enter: add path | enter on empty or 'done': continue | ctrl+r: remove last | esc: quit")

	lines := make([]string, 0, len(m.paths)+2)
	if len(m.paths) == 0 {
		lines = append(lines, wizardMutedStyle.Render("No paths added yet."))
	}
	for i, p := range m.paths {
		lines = append(lines, wrapOrTrim(fmt.Sprintf("%d. %s", i+1, p), maxInt(m.width-6, 20)))
	}
	body := strings.Join(lines, "\n") + "\n\n" + m.pathInput.View()
	if m.pathError != "" {
		body += "\n" + wizardErrorStyle.Render(m.pathError)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, wizardPanelStyle.Width(maxInt(m.width-2, 40)).Render(body))
}

func (m wizardModel) viewOptions() string {
	if m.form == nil {
		return ""
	}
	header := wizardTitleStyle.Render("mediaconv: conversion options") + "\n" +
		wizardMutedStyle.Render("up/down: move | left/right/space: change | y/n: set yes/no | enter: next | esc: back")

	lines := make([]string, 0, len(m.form.Fields)+4)
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		switch f.Kind {
		case wizardFieldBool:
			v, _ := parseBool(display)
			display = yesNo(v)
		case wizardFieldSelect:
			display = "[" + formatLabel(display) + "]"
		}
		lines = append(lines, wrapOrTrim(fmt.Sprintf("%s%s: %s", prefix, f.Label, display), maxInt(m.width-6, 20)))
	}
	curr := m.form.currentField()
	body := strings.Join(lines, "\n") + "\n\n" + curr.Label + "\n"
	if curr.Help != "" {
		body += wizardMutedStyle.Render(curr.Help) + "\n"
	}
	if curr.Kind == wizardFieldInt {
		body += m.form.Input.View()
	}
	if m.form.Error != "" {
		body += "\n" + wizardErrorStyle.Render(m.form.Error)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, wizardPanelStyle.Width(maxInt(m.width-2, 40)).Render(body))
}

func (m wizardModel) viewConfirm() string {
	c := m.choice
	lines := []string{
		kv("paths", strconv.Itoa(len(c.Paths))),
		kv("format", c.Format.Label()),
		kv("workers", strconv.Itoa(c.Workers)),
	}
	if !c.Format.IsAudio() {
		lines = append(lines, kv("hardware acceleration", yesNo(c.HardwareAccel)))
	}
	lines = append(lines, kv("output folder", defaultIfEmpty(m.defaults.OutputDirName, "converted")))
	lines = append(lines, "", "Start conversion? y/enter to start, n/esc to go back.")
	panel := wizardPanelStyle.Width(clampInt(m.width-8, 36, 80)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, wizardTitleStyle.Render("mediaconv: confirm"), panel)
}

func formatLabel(v string) string {
	f, err := model.ParseTargetFormat(v)
	if err != nil {
		return v
	}
	return f.Label()
}

func newWizardForm(def wizardDefaults, width int) *wizardForm {
	formats := make([]string, 0, 3)
	for _, f := range model.AllFormats() {
		formats = append(formats, string(f))
	}
	f := &wizardForm{
		Fields: []wizardField{
			{
				Key:   "workers",
				Label: "Parallel Conversions",
				Help: fmt.Sprintf("Recommended: %d for %d CPU threads. Allowed %d..%d.",
					def.Recommended, def.Units, dispatch.MinWorkers, dispatch.MaxWorkers),
				Kind:  wizardFieldInt,
				Value: strconv.Itoa(def.Workers),
			},
			{Key: "format", Label: "Output Format", Help: "MP4 video, or audio only as MP3 or AC3", Kind: wizardFieldSelect, Value: string(def.Format), Options: formats},
			{Key: "hw", Label: "Hardware Acceleration", Help: "Video only; uses the configured GPU encoder", Kind: wizardFieldBool, Value: boolToYN(def.HardwareAccel)},
		},
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (f *wizardForm) currentField() wizardField {
	if len(f.Fields) == 0 {
		return wizardField{}
	}
	f.Index = clampInt(f.Index, 0, len(f.Fields)-1)
	return f.Fields[f.Index]
}

func (f *wizardForm) commitInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	if f.Fields[f.Index].Kind == wizardFieldInt {
		f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
	}
}

func (f *wizardForm) loadFieldIntoInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *wizardForm) toggleBoolField() {
	v, _ := parseBool(f.currentField().Value)
	f.setBoolField(!v)
}

func (f *wizardForm) setBoolField(v bool) {
	if f.currentField().Kind != wizardFieldBool {
		return
	}
	f.Fields[f.Index].Value = boolToYN(v)
	f.loadFieldIntoInput()
}

func (f *wizardForm) stepSelectOption(delta int) {
	curr := f.currentField()
	if curr.Kind != wizardFieldSelect || len(curr.Options) == 0 {
		return
	}
	pos := 0
	for i, opt := range curr.Options {
		if strings.EqualFold(opt, strings.TrimSpace(curr.Value)) {
			pos = i
			break
		}
	}
	pos = (pos + delta + len(curr.Options)) % len(curr.Options)
	f.Fields[f.Index].Value = curr.Options[pos]
	f.loadFieldIntoInput()
}

func (f *wizardForm) value(key string) string {
	for _, field := range f.Fields {
		if field.Key == key {
			return strings.TrimSpace(field.Value)
		}
	}
	return ""
}

// toChoice validates the form. Worker counts outside the allowed range are
// clamped rather than rejected.
func (f *wizardForm) toChoice() (wizardChoice, error) {
	n, err := strconv.Atoi(f.value("workers"))
	if err != nil {
		return wizardChoice{}, fmt.Errorf("parallel conversions must be a number between %d and %d", dispatch.MinWorkers, dispatch.MaxWorkers)
	}
	format, err := model.ParseTargetFormat(f.value("format"))
	if err != nil {
		return wizardChoice{}, err
	}
	hw, ok := parseBool(f.value("hw"))
	if !ok {
		return wizardChoice{}, errors.New("hardware acceleration must be y or n")
	}
	if format.IsAudio() {
		hw = false
	}
	return wizardChoice{
		Workers:       dispatch.ClampWorkers(n),
		Format:        format,
		HardwareAccel: hw,
	}, nil
}
