package services

import (
	"sort"
	"strings"
	"sync"
)

// CompletionSource supplies candidates for one argument position of a shell
// command, given the words typed so far.
type CompletionSource func(args []string) []string

// AutoCompleteService provides tab completion for the interactive shell.
// It implements the readline.AutoCompleter interface.
type AutoCompleteService struct {
	initialized bool

	mu       sync.RWMutex
	commands map[string]CompletionSource
}

// NewAutoCompleteService creates a new AutoCompleteService instance.
func NewAutoCompleteService() *AutoCompleteService {
	return &AutoCompleteService{
		commands: make(map[string]CompletionSource),
	}
}

// Name returns the service name "autocomplete" for registration.
func (a *AutoCompleteService) Name() string {
	return "autocomplete"
}

// Initialize sets up the AutoCompleteService for operation.
func (a *AutoCompleteService) Initialize() error {
	a.initialized = true
	return nil
}

// SetCommand registers a command name and an optional argument source.
func (a *AutoCompleteService) SetCommand(name string, args CompletionSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands[name] = args
}

// Commands returns the registered command names in order.
func (a *AutoCompleteService) Commands() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Do implements the readline.AutoCompleter interface.
// It analyzes the current input line and cursor position to provide relevant completions.
func (a *AutoCompleteService) Do(line []rune, pos int) (newLine [][]rune, offset int) {
	if !a.initialized {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}
	lineStr := string(line[:pos])

	wordStart := findWordStart(lineStr)
	currentWord := lineStr[wordStart:]

	var suggestions [][]rune
	for _, completion := range a.getCompletions(lineStr[:wordStart], currentWord) {
		if strings.HasPrefix(completion, currentWord) {
			// Return the part that should be added to complete the word
			suggestions = append(suggestions, []rune(strings.TrimPrefix(completion, currentWord)+" "))
		}
	}

	return suggestions, len([]rune(currentWord))
}

// findWordStart returns the byte offset of the word ending at the end of line.
func findWordStart(line string) int {
	for i := len(line) - 1; i >= 0; i-- {
		switch line[i] {
		case ' ', '\t', '=', ',':
			return i + 1
		}
	}
	return 0
}

// getCompletions returns candidates for the word following before.
func (a *AutoCompleteService) getCompletions(before, currentWord string) []string {
	words := strings.Fields(before)
	if len(words) == 0 {
		return a.getCommandCompletions(currentWord)
	}

	a.mu.RLock()
	source, ok := a.commands[words[0]]
	a.mu.RUnlock()
	if !ok || source == nil {
		return make([]string, 0)
	}

	var completions []string
	for _, c := range source(words[1:]) {
		if strings.HasPrefix(c, currentWord) {
			completions = append(completions, c)
		}
	}
	sort.Strings(completions)
	if completions == nil {
		return make([]string, 0)
	}
	return completions
}

// getCommandCompletions returns command names starting with prefix.
func (a *AutoCompleteService) getCommandCompletions(prefix string) []string {
	completions := make([]string, 0)
	for _, name := range a.Commands() {
		if strings.HasPrefix(name, prefix) {
			completions = append(completions, name)
		}
	}
	return completions
}

func init() {
	if err := GlobalRegistry.RegisterService(NewAutoCompleteService()); err != nil {
		panic(err)
	}
}
