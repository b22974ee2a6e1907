// Package messages renders the announcements the warden sends to the
// chat. Texts come from configurable templates with built-in defaults;
// when an OpenAI client is configured they are rephrased for flavour,
// falling back to the plain template on any error.
package messages

import (
	"strconv"
	"strings"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/openai"
)

// Built-in defaults, used when no template override is configured.
const (
	defaultOpen       = "🎉 The chat is now open! Welcome back!"
	defaultClosed     = "🌙 The chat is now closed. Check /times list and come back during open hours!"
	defaultJoinDenied = "🚫 The chat is currently closed. Please come back during open hours!"
	defaultWarning    = "⏰ The chat will close in {minutes} minute(s)!"
	defaultClosing    = "🔔 The chat is closing now!"
)

// Templates holds the configurable announcement texts. Empty fields fall
// back to the built-in defaults. The warning template supports a
// {minutes} placeholder.
type Templates struct {
	Open       string
	Closed     string
	JoinDenied string
	Warning    string
}

// Service provides announcement texts for the warden and command layer.
type Service struct {
	templates Templates
	ai        *openai.Client
	logger    *logger.Logger
}

// New creates a message service. The OpenAI client may be nil, in which
// case templates are used as-is.
func New(templates Templates, ai *openai.Client) *Service {
	return &Service{
		templates: templates,
		ai:        ai,
		logger:    logger.New("messages"),
	}
}

// Open returns the announcement for the chat opening.
func (s *Service) Open() string {
	return s.flavoured(orDefault(s.templates.Open, defaultOpen))
}

// Closed returns the eviction message for the chat closing.
func (s *Service) Closed() string {
	return s.flavoured(orDefault(s.templates.Closed, defaultClosed))
}

// JoinDenied returns the message for a join attempt while closed.
func (s *Service) JoinDenied() string {
	return orDefault(s.templates.JoinDenied, defaultJoinDenied)
}

// ClosingWarning returns the pre-close warning with the minute count
// substituted. The minute count is never rephrased away: it is appended
// verbatim via the template.
func (s *Service) ClosingWarning(minutes int) string {
	text := orDefault(s.templates.Warning, defaultWarning)
	return strings.ReplaceAll(text, "{minutes}", strconv.Itoa(minutes))
}

// ClosingNow returns the final warning sent at the start of a graceful
// shutdown, before the grace period runs out.
func (s *Service) ClosingNow() string {
	return defaultClosing
}

// flavoured passes a text through the LLM when one is configured.
func (s *Service) flavoured(text string) string {
	if s.ai == nil {
		return text
	}
	rephrased, err := s.ai.RephraseAnnouncement(text)
	if err != nil {
		s.logger.Error("Failed to rephrase announcement, using template: %v", err)
		return text
	}
	return rephrased
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
