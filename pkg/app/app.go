package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/reader/pkg/app/screens"
)

type App struct {
	backend screens.Backend
}

func NewApp(backend screens.Backend) *App {
	return &App{backend: backend}
}

func (a *App) Run() error {
	model := screens.NewRootScreen(a.backend)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
