package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorSuggestion is one hint printed under a failed command.
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// ConfigurationSuggestions explains how to recover from a configuration that
// failed to load or validate.
func ConfigurationSuggestions(err error, configPath string) []ErrorSuggestion {
	if configPath == "" {
		configPath = ".typster.yml"
	}

	suggestions := []ErrorSuggestion{
		{
			Title:       "Check the configuration file",
			Description: "Verify " + configPath + " exists and is valid YAML",
			Command:     "cat " + configPath,
		},
		{
			Title:       "Write a fresh configuration",
			Description: "Generate a file holding every default",
			Command:     "typster config --init",
		},
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "yaml") || strings.Contains(msg, "unmarshal") || strings.Contains(msg, "decod") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Fix YAML syntax",
			Description: "Indent with spaces and quote values that contain colons",
		})
	}

	var vec *ValidationErrorCollection
	if errors.As(err, &vec) {
		for _, fieldErr := range vec.Errors {
			s := ErrorSuggestion{
				Title:       "Fix " + fieldErr.Field(),
				Description: fieldErr.Error(),
			}
			if hints := fieldErr.Suggestions(); len(hints) > 0 {
				s.Example = strings.Join(hints, ", ")
			}
			suggestions = append(suggestions, s)
		}
	}

	return suggestions
}

// ServerStartSuggestions explains a listener that could not bind.
func ServerStartSuggestions(err error, port int) []ErrorSuggestion {
	var suggestions []ErrorSuggestion
	msg := err.Error()

	if strings.Contains(msg, "address already in use") || strings.Contains(msg, "bind") {
		suggestions = append(suggestions,
			ErrorSuggestion{
				Title:       "Port already in use",
				Description: fmt.Sprintf("Port %d is already being used by another process", port),
				Command:     fmt.Sprintf("lsof -i :%d", port),
			},
			ErrorSuggestion{
				Title:   "Use a different port",
				Command: fmt.Sprintf("TYPSTER_SERVER_PORT=%d typster serve", port+1000),
			},
		)
	}

	if strings.Contains(msg, "permission denied") && port < 1024 {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use an unprivileged port",
			Description: "Ports below 1024 require root privileges",
			Command:     "TYPSTER_SERVER_PORT=8080 typster serve",
		})
	}

	return suggestions
}

// CrawlSuggestions explains why a stream produced nothing or stopped early.
func CrawlSuggestions(err error) []ErrorSuggestion {
	var suggestions []ErrorSuggestion

	switch {
	case IsExhausted(err):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Registry exhausted",
			Description: "Too many consecutive registry pages had no usable repository",
			Example:     "registry:\n  max_empty_pages: 10",
		})
	case StatusCode(err) == http.StatusTooManyRequests:
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Rate limited",
			Description: "Slow down requests or enable the response cache",
			Example:     "http:\n  request_interval: 1s\ncache:\n  redis_url: redis://localhost:6379/0",
		})
	case IsNetwork(err):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check connectivity",
			Description: "The registry or hosting site could not be reached",
			Command:     "typster config",
		})
	}

	return suggestions
}

// FormatSuggestions renders a title followed by numbered suggestions.
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		fmt.Fprintf(&output, "  %d. %s\n", i+1, suggestion.Title)
		if suggestion.Description != "" {
			fmt.Fprintf(&output, "     %s\n", suggestion.Description)
		}
		if suggestion.Command != "" {
			fmt.Fprintf(&output, "     Run: %s\n", suggestion.Command)
		}
		if suggestion.Example != "" {
			fmt.Fprintf(&output, "     Example: %s\n", strings.ReplaceAll(suggestion.Example, "\n", "\n              "))
		}
	}

	return strings.TrimRight(output.String(), "\n")
}

// EnhancedError wraps an error with suggestions.
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

func (e *EnhancedError) Error() string {
	title := e.Title
	if e.OriginalError != nil {
		title += ": " + e.OriginalError.Error()
	}
	return FormatSuggestions(title, e.Suggestions)
}

func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions.
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
