package console

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"coralrelay/pkg/channel"
	"coralrelay/pkg/facade"
)

// ExecuteFunc runs one console line and returns the text to show.
type ExecuteFunc func(ctx context.Context, command string) (string, error)

// Target describes what the console is connected to.
type Target struct {
	FacadeURL string
}

// FacadeExecutor parses chat-style commands and runs them against backend.
func FacadeExecutor(backend facade.Backend) ExecuteFunc {
	return func(ctx context.Context, command string) (string, error) {
		cmd, err := channel.ParseCommand(command)
		if err != nil {
			return "", err
		}

		return facade.Execute(ctx, backend, cmd)
	}
}

func RunInteractive(ctx context.Context, execute ExecuteFunc, target Target) error {
	model := newModel(ctx, execute, modeInteractive, "", target)
	program := tea.NewProgram(model, tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(renderGoodbyeBanner())
	return nil
}

func RunOneShot(ctx context.Context, execute ExecuteFunc, command string, target Target) error {
	model := newModel(ctx, execute, modeOneShot, command, target)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render("Relay console closed")
}
