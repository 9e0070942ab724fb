package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/business/wallet/domain"
	"github.com/fd1az/wallet-hub/internal/eventbus"
)

// walletEventMsg carries a controller lifecycle event into the UI loop.
type walletEventMsg struct {
	kind domain.EventKind
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// StatusModel renders the live connection state and drives the wallet
// action key.
type StatusModel struct {
	controller  *app.Controller
	keys        KeyMap
	events      chan walletEventMsg
	handlers    map[domain.EventKind]eventbus.Handler
	lastEvent   string
	quitting    bool
	wantConnect bool
}

// NewStatusModel creates the status view and subscribes it to the
// controller's lifecycle events. Call Close when the view is done to
// release the subscriptions.
func NewStatusModel(controller *app.Controller) *StatusModel {
	m := &StatusModel{
		controller: controller,
		keys:       DefaultKeyMap(),
		events:     make(chan walletEventMsg, 16),
		handlers:   make(map[domain.EventKind]eventbus.Handler),
	}

	kinds := []domain.EventKind{
		domain.EventWalletConnected, domain.EventWalletDisconnected,
		domain.EventAccountChanged, domain.EventBalanceUpdated,
		domain.EventNetworkChanged,
	}
	for _, kind := range kinds {
		k := kind
		h := eventbus.Handler(func(any) {
			select {
			case m.events <- walletEventMsg{kind: k}:
			default:
			}
		})
		m.handlers[k] = h
		controller.AddEventListener(k, h)
	}
	return m
}

// Close removes the model's event subscriptions.
func (m *StatusModel) Close() {
	for kind, h := range m.handlers {
		m.controller.RemoveEventListener(kind, h)
	}
}

// WantsConnect reports whether the user quit the view asking to open
// the wallet picker. The picker runs its own program, so the caller
// opens it after this one has released the terminal.
func (m *StatusModel) WantsConnect() bool {
	return m.wantConnect
}

func (m *StatusModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m *StatusModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForEvent())
}

func (m *StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Action):
			if m.controller.State().Connected {
				go m.controller.CallWalletAction(context.Background(), false)
			} else {
				m.wantConnect = true
				m.quitting = true
				return m, tea.Quit
			}
		}
	case walletEventMsg:
		m.lastEvent = msg.kind.String()
		return m, m.waitForEvent()
	case tickMsg:
		return m, tickCmd()
	}
	return m, nil
}

func (m *StatusModel) View() string {
	if m.quitting {
		return ""
	}

	state := m.controller.State()

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Wallet Hub"))
	b.WriteString("\n\n")

	switch {
	case state.Loading:
		b.WriteString(StatusLoading.Render("● initializing"))
	case state.Connected:
		b.WriteString(StatusConnected.Render("● connected"))
	default:
		b.WriteString(StatusDisconnected.Render("● disconnected"))
	}
	b.WriteString("\n\n")

	if state.Connected {
		b.WriteString(fmt.Sprintf("Wallet   %s\n", m.controller.WalletKey()))
		b.WriteString(fmt.Sprintf("Account  %s\n", m.controller.Account()))

		chain := "unsupported"
		if state.ChainValid {
			chain = fmt.Sprintf("%d", state.ActiveChain)
		}
		b.WriteString(fmt.Sprintf("Chain    %s\n", chain))

		balance := "-"
		if state.HasBalance {
			balance = state.Balance.String()
			if symbol := m.controller.NativeTokenSymbol(); symbol != "" {
				balance += " " + symbol
			}
			if state.BalanceRefreshing {
				balance += " " + MutedValue.Render("(refreshing)")
			}
		}
		b.WriteString(fmt.Sprintf("Balance  %s\n", balance))
	} else {
		b.WriteString(MutedValue.Render("press c to connect a wallet") + "\n")
	}

	if m.lastEvent != "" {
		b.WriteString("\n" + MutedValue.Render("last event: "+m.lastEvent) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("c connect/disconnect · q quit"))
	return BoxStyle.Render(b.String())
}
