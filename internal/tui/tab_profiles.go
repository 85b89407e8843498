package tui

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/profile"
	"github.com/1broseidon/overlayd/internal/store"
)

// Step sizes for the quick adjust keys.
const (
	sizeStep    = 5
	opacityStep = 0.05
)

// profileItem implements list.Item for the profile sidebar.
type profileItem struct {
	rec store.Record
}

func (i profileItem) Title() string {
	if i.rec.RequiresElevatedMode {
		return i.rec.Name + lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render(" ▲")
	}
	return i.rec.Name
}

func (i profileItem) Description() string {
	return fmt.Sprintf("(%d,%d) size %d  opacity %.2f", i.rec.X, i.rec.Y, i.rec.Size, i.rec.Opacity)
}

func (i profileItem) FilterValue() string { return i.rec.Name }

type promptKind int

const (
	promptNone promptKind = iota
	promptDuplicate
	promptExport
)

// statusMsg is sent after an action completes.
type statusMsg struct {
	text string
}

// clearStatusMsg clears the status message after a delay.
type clearStatusMsg struct{}

func clearStatusAfter() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// ProfilesTab browses, previews and edits stored profiles.
type ProfilesTab struct {
	list  list.Model
	store *store.Store
	cfg   *config.Config

	// screen indexes screenPresets; one past the end means the daemon's screen.
	screen int
	live   *geometry.ScreenMetrics

	prompt promptKind
	input  textinput.Model

	editing   bool
	form      *huh.Form
	fX        string
	fY        string
	fSize     string
	fOpacity  string
	fColor    string
	fWidth    string
	fHeight   string
	fElevated bool

	pendingDelete string
	statusText    string

	width  int
	height int
	ready  bool
}

// NewProfilesTab creates the profiles tab over st.
func NewProfilesTab(st *store.Store, cfg *config.Config) ProfilesTab {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(buildProfileItems(st), delegate, 0, 0)
	l.Title = "Profiles"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.CharLimit = 256

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return ProfilesTab{
		list:  l,
		store: st,
		cfg:   cfg,
		input: ti,
	}
}

func buildProfileItems(st *store.Store) []list.Item {
	records := st.List()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	items := make([]list.Item, 0, len(records))
	for _, r := range records {
		items = append(items, profileItem{rec: r})
	}
	return items
}

// Capturing reports whether the tab is consuming all key input.
func (pt ProfilesTab) Capturing() bool {
	return pt.editing || pt.prompt != promptNone
}

// SetLiveMetrics records the screen the daemon is placing against.
func (pt *ProfilesTab) SetLiveMetrics(m *geometry.ScreenMetrics) {
	pt.live = m
	if m == nil && pt.screen >= len(screenPresets) {
		pt.screen = 0
	}
}

// Init implements tea.Model.
func (pt ProfilesTab) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (pt ProfilesTab) Update(msg tea.Msg) (ProfilesTab, tea.Cmd) {
	if pt.editing {
		return pt.updateEditing(msg)
	}
	if pt.prompt != promptNone {
		return pt.updatePrompt(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		pt.width = msg.Width
		pt.height = msg.Height
		pt.updateListSize()
		pt.ready = true
		return pt, nil

	case statusMsg:
		pt.statusText = msg.text
		return pt, clearStatusAfter()

	case clearStatusMsg:
		pt.statusText = ""
		return pt, nil

	case tea.KeyMsg:
		key := msg.String()
		if key != "x" {
			pt.pendingDelete = ""
		}
		switch key {
		case "+", "=":
			return pt.adjust(sizeStep, 0)
		case "-":
			return pt.adjust(-sizeStep, 0)
		case "]":
			return pt.adjust(0, opacityStep)
		case "[":
			return pt.adjust(0, -opacityStep)
		case "s":
			pt.cycleScreen()
			return pt, nil
		case "e", "enter":
			rec, ok := pt.selected()
			if !ok {
				return pt, nil
			}
			pt.startEditing(rec)
			return pt, pt.form.Init()
		case "c":
			if _, ok := pt.selected(); !ok {
				return pt, nil
			}
			return pt.startPrompt(promptDuplicate, "new profile name")
		case "E":
			return pt.startPrompt(promptExport, "export path, e.g. ~/overlayd-profiles.json")
		case "x", "delete":
			return pt.deleteSelected()
		case "R":
			pt.rebuildItems("")
			return pt, pt.flash("reloaded from store")
		}
	}

	var cmd tea.Cmd
	pt.list, cmd = pt.list.Update(msg)
	return pt, cmd
}

func (pt *ProfilesTab) flash(text string) tea.Cmd {
	pt.statusText = text
	return clearStatusAfter()
}

func (pt ProfilesTab) selected() (store.Record, bool) {
	item, ok := pt.list.SelectedItem().(profileItem)
	if !ok {
		return store.Record{}, false
	}
	return item.rec, true
}

func (pt *ProfilesTab) rebuildItems(selectName string) {
	if selectName == "" {
		if rec, ok := pt.selected(); ok {
			selectName = rec.Name
		}
	}
	items := buildProfileItems(pt.store)
	pt.list.SetItems(items)
	for i, it := range items {
		if it.(profileItem).rec.Name == selectName {
			pt.list.Select(i)
			return
		}
	}
}

func (pt ProfilesTab) adjust(dSize int, dOpacity float64) (ProfilesTab, tea.Cmd) {
	rec, ok := pt.selected()
	if !ok {
		return pt, nil
	}
	fields := rec.Fields()
	fields.Size = max(1, fields.Size+dSize)
	fields.Opacity = profile.ClampOpacity(math.Round((fields.Opacity+dOpacity)*100) / 100)

	saved, err := pt.store.Save(rec.Name, fields)
	if err != nil {
		return pt, pt.flash(fmt.Sprintf("error: %v", err))
	}
	pt.rebuildItems(saved.Name)
	return pt, pt.flash(fmt.Sprintf("%s: size %d opacity %.2f", saved.Name, saved.Size, saved.Opacity))
}

func (pt ProfilesTab) deleteSelected() (ProfilesTab, tea.Cmd) {
	rec, ok := pt.selected()
	if !ok {
		return pt, nil
	}
	if pt.pendingDelete != rec.Name {
		pt.pendingDelete = rec.Name
		return pt, pt.flash(fmt.Sprintf("press x again to delete %s", rec.Name))
	}
	pt.pendingDelete = ""
	if err := pt.store.Delete(rec.Name); err != nil {
		return pt, pt.flash(fmt.Sprintf("error: %v", err))
	}
	pt.rebuildItems("")
	return pt, pt.flash(fmt.Sprintf("deleted: %s", rec.Name))
}

func (pt *ProfilesTab) cycleScreen() {
	n := len(screenPresets)
	if pt.live != nil {
		n++
	}
	pt.screen = (pt.screen + 1) % n
}

func (pt ProfilesTab) currentScreen() screenPreset {
	if pt.screen >= len(screenPresets) && pt.live != nil {
		return screenPreset{name: "daemon", metrics: *pt.live}
	}
	return screenPresets[pt.screen%len(screenPresets)]
}

func (pt ProfilesTab) startPrompt(kind promptKind, placeholder string) (ProfilesTab, tea.Cmd) {
	pt.prompt = kind
	pt.input.Reset()
	pt.input.Placeholder = placeholder
	pt.input.Focus()
	return pt, textinput.Blink
}

func (pt ProfilesTab) updatePrompt(msg tea.Msg) (ProfilesTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			value := strings.TrimSpace(pt.input.Value())
			kind := pt.prompt
			pt.prompt = promptNone
			pt.input.Blur()
			if value == "" {
				return pt, nil
			}
			return pt.submitPrompt(kind, value)
		case "esc":
			pt.prompt = promptNone
			pt.input.Blur()
			return pt, nil
		}
	case tea.WindowSizeMsg:
		pt.width = msg.Width
		pt.height = msg.Height
		pt.updateListSize()
		return pt, nil
	}

	var cmd tea.Cmd
	pt.input, cmd = pt.input.Update(msg)
	return pt, cmd
}

func (pt ProfilesTab) submitPrompt(kind promptKind, value string) (ProfilesTab, tea.Cmd) {
	switch kind {
	case promptDuplicate:
		rec, ok := pt.selected()
		if !ok {
			return pt, nil
		}
		dup, err := pt.store.Duplicate(rec.Name, value)
		if err != nil {
			return pt, pt.flash(fmt.Sprintf("error: %v", err))
		}
		pt.rebuildItems(dup.Name)
		return pt, pt.flash(fmt.Sprintf("duplicated %s to %s", rec.Name, dup.Name))

	case promptExport:
		path, err := config.ExpandHome(value)
		if err != nil {
			return pt, pt.flash(fmt.Sprintf("error: %v", err))
		}
		if err := pt.store.Export(path); err != nil {
			return pt, pt.flash(fmt.Sprintf("error: %v", err))
		}
		return pt, pt.flash(fmt.Sprintf("exported %d profiles to %s", len(pt.store.List()), path))
	}
	return pt, nil
}

func (pt *ProfilesTab) startEditing(rec store.Record) {
	pt.fX = strconv.Itoa(rec.X)
	pt.fY = strconv.Itoa(rec.Y)
	pt.fSize = strconv.Itoa(rec.Size)
	pt.fOpacity = strconv.FormatFloat(rec.Opacity, 'f', 2, 64)
	pt.fColor = config.FormatColor(rec.ColorARGB)
	pt.fWidth = strconv.Itoa(rec.TargetWidth)
	pt.fHeight = strconv.Itoa(rec.TargetHeight)
	pt.fElevated = rec.RequiresElevatedMode

	w := pt.width - 4
	if w < 40 {
		w = 40
	}

	pt.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("x").
				Title("X").
				Description("Base X in reference pixels").
				Validate(validateInt(math.MinInt)).
				Value(&pt.fX),
			huh.NewInput().
				Key("y").
				Title("Y").
				Description("Base Y in reference pixels").
				Validate(validateInt(math.MinInt)).
				Value(&pt.fY),
			huh.NewInput().
				Key("size").
				Title("Size").
				Description("Base size in reference pixels").
				Validate(validateInt(1)).
				Value(&pt.fSize),
			huh.NewInput().
				Key("opacity").
				Title("Opacity").
				Description("0 to 1").
				Validate(validateOpacity).
				Value(&pt.fOpacity),
			huh.NewInput().
				Key("color").
				Title("Color").
				Description("#RRGGBB or #AARRGGBB").
				Validate(func(s string) error {
					_, err := config.ParseColor(s)
					return err
				}).
				Value(&pt.fColor),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("target_width").
				Title("Reference Width").
				Description("0 means 1920").
				Validate(validateInt(0)).
				Value(&pt.fWidth),
			huh.NewInput().
				Key("target_height").
				Title("Reference Height").
				Description("0 means 1080").
				Validate(validateInt(0)).
				Value(&pt.fHeight),
			huh.NewConfirm().
				Key("elevated").
				Title("Requires elevated mode").
				Value(&pt.fElevated),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)

	pt.editing = true
}

func validateInt(minValue int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a whole number")
		}
		if v < minValue {
			return fmt.Errorf("must be >= %d", minValue)
		}
		return nil
	}
}

func validateOpacity(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || v > 1 {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func (pt ProfilesTab) updateEditing(msg tea.Msg) (ProfilesTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			pt.editing = false
			pt.form = nil
			return pt, nil
		}
	case tea.WindowSizeMsg:
		pt.width = msg.Width
		pt.height = msg.Height
		pt.updateListSize()
	}

	form, cmd := pt.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		pt.form = f
	}

	if pt.form.State == huh.StateCompleted {
		pt.editing = false
		pt.form = nil
		return pt.applyForm()
	}
	return pt, cmd
}

func (pt ProfilesTab) applyForm() (ProfilesTab, tea.Cmd) {
	rec, ok := pt.selected()
	if !ok {
		return pt, nil
	}
	fields := rec.Fields()
	atoi := func(s string, dst *int) {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*dst = v
		}
	}
	atoi(pt.fX, &fields.X)
	atoi(pt.fY, &fields.Y)
	atoi(pt.fSize, &fields.Size)
	atoi(pt.fWidth, &fields.TargetWidth)
	atoi(pt.fHeight, &fields.TargetHeight)
	if v, err := strconv.ParseFloat(strings.TrimSpace(pt.fOpacity), 64); err == nil {
		fields.Opacity = profile.ClampOpacity(v)
	}
	if color, err := config.ParseColor(pt.fColor); err == nil {
		fields.ColorARGB = color
	}
	fields.RequiresElevatedMode = pt.fElevated

	saved, err := pt.store.Save(rec.Name, fields)
	if err != nil {
		return pt, pt.flash(fmt.Sprintf("error: %v", err))
	}
	pt.rebuildItems(saved.Name)
	return pt, pt.flash(fmt.Sprintf("saved: %s", saved.Name))
}

func (pt *ProfilesTab) updateListSize() {
	// Reserve 2 lines for status bar at bottom of the tab content
	listHeight := pt.height - 2
	if listHeight < 1 {
		listHeight = 1
	}
	pt.list.SetSize(pt.sidebarWidth(), listHeight)
}

func (pt ProfilesTab) sidebarWidth() int {
	sw := pt.width * 35 / 100
	if sw < 24 {
		sw = 24
	}
	if sw > 44 {
		sw = 44
	}
	return sw
}

// preview resolves the selected profile against the current screen.
func (pt ProfilesTab) preview() (daemon.Preview, error) {
	rec, ok := pt.selected()
	if !ok {
		return daemon.Preview{}, fmt.Errorf("no profile selected")
	}
	reg, err := daemon.NewRegistry(pt.cfg, pt.store)
	if err != nil {
		return daemon.Preview{}, err
	}
	return daemon.PreviewPlacement(pt.cfg, reg, rec.Name, pt.currentScreen().metrics, nil)
}

// View implements tea.Model.
func (pt ProfilesTab) View() string {
	if pt.editing && pt.form != nil {
		return pt.viewEditing()
	}
	if !pt.ready || pt.width == 0 || pt.height == 0 {
		return ""
	}

	sidebarWidth := pt.sidebarWidth()
	previewWidth := pt.width - sidebarWidth - 3 // 3 for separator + padding
	if previewWidth < 10 {
		previewWidth = 10
	}

	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(pt.height - 2).
		Render(pt.list.View())

	sep := lipgloss.NewStyle().
		Foreground(lipgloss.Color("238")).
		Render(strings.Repeat("│\n", max(pt.height-2, 1)))

	columns := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " "+sep, pt.renderPreview(previewWidth))
	return lipgloss.JoinVertical(lipgloss.Left, columns, pt.renderTabStatus())
}

func (pt ProfilesTab) renderPreview(previewWidth int) string {
	rec, ok := pt.selected()
	if !ok {
		return ""
	}
	screen := pt.currentScreen()

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Render(fmt.Sprintf(" %s  [%s screen]", rec.Name, screen.name))

	pv, err := pt.preview()
	if err != nil {
		errLine := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(" " + err.Error())
		return lipgloss.JoinVertical(lipgloss.Left, title, errLine)
	}

	summary := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Render(" " + summarizePlacement(pv))

	previewHeight := pt.height - 6 // title + summary + status + padding
	if previewHeight < 5 {
		previewHeight = 5
	}
	asciiWidth := previewWidth - 2
	if asciiWidth < 5 {
		asciiWidth = 5
	}
	lines := renderPlacementPreview(pv.Metrics, pv.Placement, asciiWidth, previewHeight)

	color := lipgloss.Color("247")
	if !pv.Suitable {
		color = lipgloss.Color("241")
	}
	block := lipgloss.NewStyle().Foreground(color).Render(strings.Join(lines, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, title, summary, "", block)
}

func (pt ProfilesTab) renderTabStatus() string {
	if pt.prompt != promptNone {
		label := "Duplicate as: "
		if pt.prompt == promptExport {
			label = "Export to: "
		}
		return lipgloss.NewStyle().
			Width(pt.width).
			Padding(0, 1).
			Render(label + pt.input.View())
	}

	left := ""
	if pt.statusText != "" {
		left = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Render(pt.statusText)
	}

	right := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("+/-:size  [/]:opacity  e:edit  c:duplicate  x:delete  E:export  s:screen")

	gap := pt.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Width(pt.width).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (pt ProfilesTab) viewEditing() string {
	name := ""
	if rec, ok := pt.selected(); ok {
		name = rec.Name
	}
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Render("Editing "+name) +
		lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("  (esc to cancel)")

	style := lipgloss.NewStyle().
		Width(pt.width).
		Height(pt.height).
		Padding(1, 2)

	return style.Render(header + "\n\n" + pt.form.View())
}
