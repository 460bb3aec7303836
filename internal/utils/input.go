package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
)

// ReadUserInput reads one line from the terminal, returning
// ErrUserInitiatedExit on interrupt or when the user types a quit word.
func ReadUserInput() (string, error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	inputChan := make(chan string)
	errChan := make(chan error)

	go func() {
		// Open /dev/tty for direct terminal access, stdin may be a pipe
		tty, err := os.Open("/dev/tty")
		if err != nil {
			errChan <- fmt.Errorf("cannot open terminal: %w", err)
			return
		}
		defer tty.Close()

		reader := bufio.NewReader(tty)
		userInput, err := reader.ReadString('\n')
		if err != nil {
			errChan <- err
			return
		}
		inputChan <- userInput
	}()

	select {
	case <-sigChan:
		return "", ErrUserInitiatedExit
	case err := <-errChan:
		return "", fmt.Errorf("failed to read user input: %w", err)
	case userInput, open := <-inputChan:
		if !open {
			return "", errors.New("user input channel closed unexpectedly")
		}
		trimmedInput := strings.TrimSpace(userInput)
		quitters := []string{"q", "quit", "exit"}
		if slices.Contains(quitters, trimmedInput) {
			return "", ErrUserInitiatedExit
		}
		return trimmedInput, nil
	}
}

// ReadStdin returns piped stdin content, or empty string when stdin is a
// terminal.
func ReadStdin() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	var sb strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
