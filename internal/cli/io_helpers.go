package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"rendercue/internal/model"
	"rendercue/internal/scene"
	"rendercue/internal/workspace"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func promptRequired(label string) (string, error) {
	if !stdinIsTTY() {
		return "", fmt.Errorf("%s is required", label)
	}
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	return value, nil
}

func promptConfirm(prompt string) (bool, error) {
	if !stdinIsTTY() {
		return false, errors.New("confirmation required (rerun with --yes in non-interactive mode)")
	}
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func stdoutIsTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	return fs
}

// jobIndex turns the 1-based index users see in list into a slice index.
func jobIndex(q model.Queue, oneBased int) (int, error) {
	if oneBased < 1 || oneBased > len(q.Jobs) {
		if len(q.Jobs) == 0 {
			return 0, errors.New("the queue is empty")
		}
		return 0, fmt.Errorf("%w: --index must be between 1 and %d", model.ErrIndexOutOfRange, len(q.Jobs))
	}
	return oneBased - 1, nil
}

// openDocument loads the scene table named by flagValue or, failing that,
// by the workspace settings.
func openDocument(flagValue string, settings workspace.Settings) (*scene.Document, error) {
	path := strings.TrimSpace(flagValue)
	if path == "" {
		path = strings.TrimSpace(settings.Document)
	}
	if path == "" {
		return nil, workspace.ErrNoDocument
	}
	return scene.Load(path)
}

// optionalCatalog is openDocument for commands that still work without a
// document. The returned catalog is nil when none is configured.
func optionalCatalog(flagValue string, settings workspace.Settings) (model.SceneCatalog, error) {
	doc, err := openDocument(flagValue, settings)
	if errors.Is(err, workspace.ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
