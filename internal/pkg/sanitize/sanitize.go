// Package sanitize validates and cleans user-supplied text before it enters
// the core: chat messages, usernames, and passwords. HTML stripping is
// delegated to bluemonday rather than hand-rolled regex filtering.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// DefaultMaxMessageLength bounds chat input when no limit is configured.
const DefaultMaxMessageLength = 2000

// messagePolicy allows harmless formatting tags and strips everything else,
// including script/style/iframe content and event-handler attributes.
var messagePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"b", "i", "u", "p", "br", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6", "span", "div",
		"em", "strong", "code", "pre", "blockquote",
	)
	return p
}()

// dangerousPatterns are rejected outright even if they survive tag stripping,
// e.g. inside plain text that a downstream renderer might interpret.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)data:`),
	regexp.MustCompile(`(?i)onload=`),
	regexp.MustCompile(`(?i)onerror=`),
	regexp.MustCompile(`(?i)onclick=`),
	regexp.MustCompile(`(?i)eval\(`),
}

// Message validates and sanitizes one chat input. Empty (or whitespace-only)
// input, input over maxLen, and input carrying injection patterns all fail
// with domain.ErrValidation.
func Message(text string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: message cannot be empty", domain.ErrValidation)
	}
	// The limit is in characters, not bytes: multi-byte input gets the same
	// budget as ASCII.
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("%w: message too long (max %d characters)", domain.ErrValidation, maxLen)
	}

	clean := strings.TrimSpace(messagePolicy.Sanitize(trimmed))
	if clean == "" {
		return "", fmt.Errorf("%w: message cannot be empty", domain.ErrValidation)
	}

	for _, re := range dangerousPatterns {
		if re.MatchString(clean) {
			return "", fmt.Errorf("%w: message contains potentially dangerous content", domain.ErrValidation)
		}
	}

	return clean, nil
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var reservedUsernames = map[string]struct{}{
	"admin": {}, "administrator": {}, "root": {}, "system": {}, "moderator": {},
	"mod": {}, "support": {}, "help": {}, "info": {}, "service": {},
}

// Username checks the username format before it is sent to the identity
// provider. Failures are domain.ErrValidation.
func Username(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username cannot be empty", domain.ErrValidation)
	case len(username) < 3:
		return fmt.Errorf("%w: username must be at least 3 characters long", domain.ErrValidation)
	case len(username) > 20:
		return fmt.Errorf("%w: username must be less than 20 characters", domain.ErrValidation)
	case !usernamePattern.MatchString(username):
		return fmt.Errorf("%w: username can only contain letters, numbers, underscores, and hyphens", domain.ErrValidation)
	}

	if strings.HasPrefix(username, "-") || strings.HasPrefix(username, "_") ||
		strings.HasSuffix(username, "-") || strings.HasSuffix(username, "_") {
		return fmt.Errorf("%w: username cannot start or end with special characters", domain.ErrValidation)
	}

	if _, reserved := reservedUsernames[strings.ToLower(username)]; reserved {
		return fmt.Errorf("%w: this username is reserved", domain.ErrValidation)
	}

	return nil
}

var commonPasswordPatterns = []string{"password", "123456", "qwerty", "abc123", "admin"}

// Password enforces the same strength policy the identity provider applies,
// so weak passwords fail fast without a provider round trip. Failures are
// domain.ErrWeakPassword.
func Password(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters long", domain.ErrWeakPassword)
	}
	if len(password) > 128 {
		return fmt.Errorf("%w: must be less than 128 characters long", domain.ErrWeakPassword)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, r):
			special = true
		}
	}
	switch {
	case !upper:
		return fmt.Errorf("%w: must contain at least one uppercase letter", domain.ErrWeakPassword)
	case !lower:
		return fmt.Errorf("%w: must contain at least one lowercase letter", domain.ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: must contain at least one number", domain.ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: must contain at least one special character", domain.ErrWeakPassword)
	}

	lowered := strings.ToLower(password)
	for _, pattern := range commonPasswordPatterns {
		if strings.Contains(lowered, pattern) {
			return fmt.Errorf("%w: contains common patterns that are too easy to guess", domain.ErrWeakPassword)
		}
	}

	return nil
}
