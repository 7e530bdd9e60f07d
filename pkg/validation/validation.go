package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// UsernameRegex allows plain logins and e-mail style logins.
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._@+\-]+$`)

	// ResourceIDRegex validates ids appearing in pass-through paths.
	ResourceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 100 {
		return fmt.Errorf("username is too long (max 100 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters")
	}
	return nil
}

// ValidatePassword only bounds the input; strength rules belong to
// whoever issues passwords.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}

// ValidateReturnPath accepts only same-origin absolute paths, so a login
// redirect can never leave the portal.
func ValidateReturnPath(path string) error {
	if path == "" {
		return fmt.Errorf("return path is required")
	}
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.Contains(path, `\`) {
		return fmt.Errorf("return path must be a local absolute path")
	}
	u, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid return path: %w", err)
	}
	if u.Scheme != "" || u.Host != "" {
		return fmt.Errorf("return path must not contain a scheme or host")
	}
	return nil
}

func ValidateResourceID(id string) error {
	if id == "" {
		return fmt.Errorf("resource id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("resource id is too long (max 100 characters)")
	}
	if !ResourceIDRegex.MatchString(id) {
		return fmt.Errorf("invalid resource id format")
	}
	return nil
}

// ValidateURL validates an absolute http(s) URL.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateStringLength validates string length in runes
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
