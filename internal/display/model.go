package display

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/notify"
	"github.com/hammamikhairi/readaloud/internal/params"
)

const (
	appTitle    = "Readaloud"
	maxWidth    = 72
	sliderWidth = 24
	toastTTL    = 4 * time.Second
)

// ── Messages ─────────────────────────────────────────────────────

type (
	stateMsg  domain.StateChange
	voicesMsg []domain.Voice

	refreshMsg struct {
		voices   []domain.Voice
		speaking bool
	}

	toastMsg struct {
		kind notify.Kind
		text string
	}
	toastExpiredMsg int

	startDoneMsg struct{ err error }

	dictationMsg struct {
		text string
		err  error
	}
)

// ── Keys ─────────────────────────────────────────────────────────

type keyMap struct {
	Read    key.Binding
	Stop    key.Binding
	Focus   key.Binding
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Dictate key.Binding
	Theme   key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Read:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "read")),
		Stop:    key.NewBinding(key.WithKeys("esc", "ctrl+x"), key.WithHelp("esc", "stop")),
		Focus:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "text/settings")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "setting")),
		Down:    key.NewBinding(key.WithKeys("down", "j")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "adjust")),
		Right:   key.NewBinding(key.WithKeys("right", "l")),
		Dictate: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "dictate")),
		Theme:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "theme")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Read, k.Stop, k.Focus, k.Up, k.Left, k.Dictate, k.Theme, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// ── Model ────────────────────────────────────────────────────────

type focus int

const (
	focusText focus = iota
	focusSettings
)

// setting rows, top to bottom.
type setting int

const (
	settingVoice setting = iota
	settingVolume
	settingPitch
	settingRate
	settingCount
)

type model struct {
	ctx       context.Context
	session   Session
	params    ParamStore
	dictation Dictator
	recordFor time.Duration
	onReady   func() refreshMsg

	text   textarea.Model
	help   help.Model
	keys   keyMap
	styles styles
	dark   bool

	focus     focus
	row       setting
	voices    []domain.Voice
	voiceIdx  int // -1 until a voice is picked
	speaking  bool
	recording bool
	toast     string
	toastKind notify.Kind
	toastSeq  int
	width     int
}

func newModel(ctx context.Context, session Session, p ParamStore, dict Dictator, recordFor time.Duration) model {
	ta := textarea.New()
	ta.Placeholder = "Type or paste the text to read aloud..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(maxWidth - 4)
	ta.SetHeight(6)
	ta.SetValue(p.Snapshot().Text)
	ta.Focus()

	keys := defaultKeys()
	keys.Stop.SetEnabled(false)
	keys.Dictate.SetEnabled(dict != nil)
	for _, b := range []*key.Binding{&keys.Up, &keys.Down, &keys.Left, &keys.Right} {
		b.SetEnabled(false)
	}

	return model{
		ctx:       ctx,
		session:   session,
		params:    p,
		dictation: dict,
		recordFor: recordFor,
		text:      ta,
		help:      help.New(),
		keys:      keys,
		styles:    newStyles(true),
		dark:      true,
		voiceIdx:  -1,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, tea.SetWindowTitle(appTitle)}
	if m.onReady != nil {
		ready := m.onReady
		cmds = append(cmds, func() tea.Msg { return ready() })
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.text.SetWidth(m.cardWidth() - 4)
		m.help.Width = m.cardWidth()
		return m, nil

	case refreshMsg:
		m.setVoices(msg.voices)
		return m, m.setSpeaking(msg.speaking)

	case voicesMsg:
		m.setVoices(msg)
		return m, nil

	case stateMsg:
		return m, m.setSpeaking(msg.To == domain.StateSpeaking)

	case toastMsg:
		return m, m.showToast(msg.kind, msg.text)

	case toastExpiredMsg:
		if int(msg) == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case startDoneMsg:
		// Validation failures were already shown by the notifier.
		var ve *domain.ValidationError
		if msg.err != nil && !errors.As(msg.err, &ve) {
			return m, m.showToast(notify.KindUrgent, "Could not start speech: "+msg.err.Error())
		}
		return m, nil

	case dictationMsg:
		m.recording = false
		switch {
		case msg.err != nil:
			return m, m.showToast(notify.KindUrgent, "Dictation failed: "+msg.err.Error())
		case msg.text == "":
			return m, m.showToast(notify.KindInfo, "Didn't catch that")
		}
		if cur := m.text.Value(); cur != "" && !strings.HasSuffix(cur, " ") && !strings.HasSuffix(cur, "\n") {
			m.text.InsertString(" ")
		}
		m.text.InsertString(msg.text)
		m.params.SetText(m.text.Value())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Read):
			return m, m.startCmd()
		case key.Matches(msg, m.keys.Stop):
			return m, m.stop()
		case key.Matches(msg, m.keys.Dictate):
			return m, m.dictateCmd()
		case key.Matches(msg, m.keys.Theme):
			m.dark = !m.dark
			m.styles = newStyles(m.dark)
			return m, nil
		case key.Matches(msg, m.keys.Focus):
			m.toggleFocus()
			return m, nil
		}
		if m.focus == focusSettings {
			m.handleSettingsKey(msg)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	m.params.SetText(m.text.Value())
	return m, cmd
}

// ── Actions ──────────────────────────────────────────────────────

// startCmd runs Start off the event loop: a blank-text notice comes back
// through program.Send, which would block inside Update.
func (m model) startCmd() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return startDoneMsg{err: session.Start(ctx)}
	}
}

// stop greys the button at once; the controller's own state change
// confirms it.
func (m *model) stop() tea.Cmd {
	if !m.speaking {
		return nil
	}
	session := m.session
	setTitle := m.setSpeaking(false)
	return tea.Batch(setTitle, func() tea.Msg {
		session.Stop()
		return nil
	})
}

func (m *model) dictateCmd() tea.Cmd {
	if m.dictation == nil || m.recording {
		return nil
	}
	m.recording = true
	dict, ctx, d := m.dictation, m.ctx, m.recordFor
	return func() tea.Msg {
		text, err := dict.Record(ctx, d)
		return dictationMsg{text: text, err: err}
	}
}

func (m *model) setSpeaking(speaking bool) tea.Cmd {
	m.speaking = speaking
	m.keys.Stop.SetEnabled(speaking)
	if speaking {
		return tea.SetWindowTitle(appTitle + " · speaking")
	}
	return tea.SetWindowTitle(appTitle)
}

func (m *model) showToast(kind notify.Kind, text string) tea.Cmd {
	m.toastSeq++
	m.toast, m.toastKind = text, kind
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg(seq) })
}

func (m *model) toggleFocus() {
	if m.focus == focusText {
		m.focus = focusSettings
		m.text.Blur()
	} else {
		m.focus = focusText
		m.text.Focus()
	}
	inSettings := m.focus == focusSettings
	for _, b := range []*key.Binding{&m.keys.Up, &m.keys.Down, &m.keys.Left, &m.keys.Right} {
		b.SetEnabled(inSettings)
	}
}

func (m *model) handleSettingsKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.row = (m.row + settingCount - 1) % settingCount
	case key.Matches(msg, m.keys.Down):
		m.row = (m.row + 1) % settingCount
	case key.Matches(msg, m.keys.Left):
		m.adjust(-1)
	case key.Matches(msg, m.keys.Right):
		m.adjust(+1)
	}
}

// adjust moves the selected setting one step in dir.
func (m *model) adjust(dir int) {
	delta := float64(dir) * params.Step
	switch m.row {
	case settingVoice:
		m.cycleVoice(dir)
	case settingVolume:
		m.params.AdjustVolume(delta)
	case settingPitch:
		m.params.AdjustPitch(delta)
	case settingRate:
		m.params.AdjustRate(delta)
	}
}

func (m *model) cycleVoice(dir int) {
	n := len(m.voices)
	if n == 0 {
		return
	}
	if m.voiceIdx < 0 {
		if dir > 0 {
			m.voiceIdx = 0
		} else {
			m.voiceIdx = n - 1
		}
	} else {
		m.voiceIdx = (m.voiceIdx + dir + n) % n
	}
	m.params.SetVoiceName(m.voices[m.voiceIdx].Name)
}

// setVoices replaces the catalog and re-finds the picked voice in it.
func (m *model) setVoices(voices []domain.Voice) {
	m.voices = voices
	m.voiceIdx = -1
	name := m.params.Snapshot().VoiceName
	if name == "" {
		return
	}
	for i, v := range voices {
		if v.Name == name {
			m.voiceIdx = i
			return
		}
	}
}

// ── View ─────────────────────────────────────────────────────────

func (m model) cardWidth() int {
	w := m.width - 2
	if w <= 0 || w > maxWidth {
		w = maxWidth
	}
	return w
}

func (m model) View() string {
	st := m.styles
	w := m.cardWidth()

	textCard, settingsCard := st.card, st.card
	if m.focus == focusText {
		textCard = st.cardFocused
	} else {
		settingsCard = st.cardFocused
	}

	var b strings.Builder
	b.WriteString(textCard.Width(w).Render(m.viewText()))
	b.WriteByte('\n')
	b.WriteString(settingsCard.Width(w).Render(m.viewSettings()))
	b.WriteByte('\n')

	switch {
	case m.recording:
		b.WriteString(st.recording.Render(" ● listening..."))
	case m.toast != "" && m.toastKind == notify.KindUrgent:
		b.WriteString(st.toastUrgent.Render(" " + m.toast))
	case m.toast != "":
		b.WriteString(st.toastInfo.Render(" " + m.toast))
	}
	b.WriteByte('\n')
	b.WriteString(" " + m.help.View(m.keys))
	return b.String()
}

func (m model) viewText() string {
	st := m.styles
	header := st.title.Render(appTitle+" 🔊") + "\n" + st.desc.Render("Text-to-speech")

	stop := st.disabled.Render("■ Stop")
	if m.speaking {
		stop = st.stop.Render("■ Stop")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, stop, " ", st.button.Render("Read"))
	buttons = lipgloss.PlaceHorizontal(m.cardWidth()-4, lipgloss.Right, buttons)

	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.text.View(), buttons)
}

func (m model) viewSettings() string {
	st := m.styles
	p := m.params.Snapshot()

	header := st.title.Render("Settings ⚙️") + "\n" + st.desc.Render("Change the speech settings here")

	rows := []string{header, ""}
	rows = append(rows, m.settingRow(settingVoice, "Voice", m.voiceLabel()))
	rows = append(rows, m.settingRow(settingVolume, "Volume", m.slider(p.Volume, domain.MinVolume, domain.MaxVolume)))
	rows = append(rows, m.settingRow(settingPitch, "Pitch", m.slider(p.Pitch, domain.MinPitch, domain.MaxPitch)))
	rows = append(rows, m.settingRow(settingRate, "Rate", m.slider(p.Rate, domain.MinRate, domain.MaxRate)))
	return strings.Join(rows, "\n")
}

func (m model) settingRow(s setting, label, value string) string {
	st := m.styles
	if m.focus == focusSettings && m.row == s {
		return st.labelActive.Render("▸ "+label) + " " + value
	}
	return st.label.Render("  "+label) + " " + value
}

func (m model) voiceLabel() string {
	st := m.styles
	if len(m.voices) == 0 {
		return st.desc.Render("engine default (no voices listed)")
	}
	if m.voiceIdx < 0 {
		return st.desc.Render(fmt.Sprintf("‹ Select a voice ›  %d available", len(m.voices)))
	}
	v := m.voices[m.voiceIdx]
	return st.value.Render("‹ "+v.Label()+" ›") + st.desc.Render(fmt.Sprintf("  %d/%d", m.voiceIdx+1, len(m.voices)))
}

// slider renders v on [lo, hi] as a bar followed by its value.
func (m model) slider(v, lo, hi float64) string {
	st := m.styles
	frac := 0.0
	if hi > lo {
		frac = params.Clamp((v-lo)/(hi-lo), 0, 1)
	}
	filled := int(math.Round(frac * sliderWidth))
	bar := st.fill.Render(strings.Repeat("━", filled)) + st.empty.Render(strings.Repeat("━", sliderWidth-filled))
	return bar + " " + st.value.Render(fmt.Sprintf("%.1f", v))
}
