package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/internal/logger"
)

// Picker is the wallet selection dialog. It implements the controller's
// dialog service: opening it lists the available wallets and connects
// the chosen one. The controller is resolved lazily because the dialog
// service is itself a controller dependency.
type Picker struct {
	controller func() *app.Controller
	discovery  app.Discovery
	log        logger.LoggerInterface
}

// NewPicker creates a wallet picker dialog service.
func NewPicker(controller func() *app.Controller, discovery app.Discovery, log logger.LoggerInterface) *Picker {
	return &Picker{controller: controller, discovery: discovery, log: log}
}

// Open shows the picker and, when a wallet is chosen, hands it to the
// controller. A dismissed dialog is not an error.
func (p *Picker) Open(ctx context.Context, dialogKey string) error {
	root, found := p.discovery.WaitForProvider(ctx, 2*time.Second, 100*time.Millisecond)
	if !found {
		p.log.Info(ctx, "no wallet providers available", "dialog", dialogKey)
		return nil
	}
	wallets := p.discovery.EnumerateWallets(root)
	if len(wallets) == 0 {
		p.log.Info(ctx, "no wallets to pick from", "dialog", dialogKey)
		return nil
	}

	names := make([]string, 0, len(wallets))
	for name := range wallets {
		names = append(names, name)
	}
	sort.Strings(names)

	final, err := tea.NewProgram(newPickerModel(names)).Run()
	if err != nil {
		return fmt.Errorf("wallet picker: %w", err)
	}

	model, ok := final.(pickerModel)
	if !ok || model.chosen == "" {
		return nil
	}

	if !p.controller().ConnectWallet(ctx, wallets[model.chosen], model.chosen) {
		p.log.Warn(ctx, "wallet connection failed", "wallet", model.chosen)
	}
	return nil
}

type pickerModel struct {
	keys   KeyMap
	names  []string
	cursor int
	chosen string
}

func newPickerModel(names []string) pickerModel {
	return pickerModel{keys: DefaultKeyMap(), names: names}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Select):
		m.chosen = m.names[m.cursor]
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Connect a wallet"))
	b.WriteString("\n\n")

	for i, name := range m.names {
		if i == m.cursor {
			b.WriteString(SelectedItem.Render("> " + name))
		} else {
			b.WriteString("  " + name)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ move · enter select · esc cancel"))
	return BoxStyle.Render(b.String())
}
