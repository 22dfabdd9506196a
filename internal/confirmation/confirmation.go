package confirmation

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pontovault/internal/display"
)

// OperationSummary describes a destructive operation before it runs
type OperationSummary struct {
	Title    string
	Target   string
	Tables   []string
	Warnings []string
	// Destructive operations overwrite or delete existing data
	Destructive bool
}

// Service handles user confirmation for destructive operations
type Service interface {
	Confirm(summary OperationSummary, autoApprove bool) (bool, error)
	DisplaySummary(summary OperationSummary)
}

type service struct {
	colors display.ColorSystem
	reader *bufio.Reader
}

// NewService creates a confirmation service
func NewService(colors display.ColorSystem) Service {
	return &service{
		colors: colors,
		reader: bufio.NewReader(os.Stdin),
	}
}

// Confirm displays the operation summary and prompts for confirmation.
// Interrupts cancel the operation.
func (s *service) Confirm(summary OperationSummary, autoApprove bool) (bool, error) {
	s.DisplaySummary(summary)

	theme := s.colors.Theme()
	if autoApprove {
		fmt.Println("\n" + s.colors.Colorize("Auto-approving operation", theme.Success))
		return true, nil
	}

	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interruptChan)

	inputChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	go func() {
		input, err := s.prompt()
		if err != nil {
			errorChan <- err
			return
		}
		inputChan <- input
	}()

	select {
	case <-interruptChan:
		fmt.Println("\n" + s.colors.Colorize("Operation cancelled by user", theme.Warning))
		return false, nil
	case err := <-errorChan:
		return false, fmt.Errorf("failed to read user input: %w", err)
	case input := <-inputChan:
		return s.parseInput(input), nil
	}
}

// DisplaySummary prints the operation details and warnings
func (s *service) DisplaySummary(summary OperationSummary) {
	theme := s.colors.Theme()

	fmt.Println(s.colors.Colorize(summary.Title, display.ColorBold))
	fmt.Println(strings.Repeat("-", 50))
	if summary.Target != "" {
		fmt.Printf("Target: %s\n", summary.Target)
	}
	if len(summary.Tables) > 0 {
		fmt.Printf("Tables: %s\n", strings.Join(summary.Tables, ", "))
	}

	if len(summary.Warnings) > 0 {
		fmt.Println(s.colors.Colorize("WARNINGS", theme.Warning))
		for i, warning := range summary.Warnings {
			fmt.Printf("%d. %s\n", i+1, s.colors.Colorize(warning, theme.Warning))
		}
	}

	if summary.Destructive {
		fmt.Println(s.colors.Colorize("DESTRUCTIVE OPERATION", theme.Error))
		fmt.Println("This operation may overwrite or delete existing data.")
		fmt.Println("Review the details carefully before proceeding.")
	}
	fmt.Println()
}

func (s *service) prompt() (string, error) {
	fmt.Print(s.colors.Colorize("Do you want to proceed? [y/N]: ", display.ColorBold))

	input, err := s.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func (s *service) parseInput(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	case "n", "no", "":
		return false
	default:
		fmt.Printf("Invalid input %q. Please enter 'y' for yes or 'n' for no.\n", input)
		next, err := s.prompt()
		if err != nil {
			return false
		}
		return s.parseInput(next)
	}
}
