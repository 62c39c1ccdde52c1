// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}

	if len(username) > 100 {
		return fmt.Errorf("username must not exceed 100 characters")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}

	if username[0] == '_' || username[0] == '-' || username[len(username)-1] == '_' || username[len(username)-1] == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}

	return nil
}

// ValidateEmail checks if an email address is well-formed
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 100 {
		return fmt.Errorf("email must not exceed 100 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("email address is not valid")
	}
	return nil
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	return nil
}

// ValidatePasswordPair checks the password and its confirmation match.
func ValidatePasswordPair(password, confirm string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

// ValidatePostTitle checks post title length requirements
func ValidatePostTitle(title string) error {
	if len(title) < 8 {
		return fmt.Errorf("title must be at least 8 characters long")
	}
	if len(title) > 100 {
		return fmt.Errorf("title must not exceed 100 characters")
	}
	return nil
}

// ValidatePostContent checks post content length requirements
func ValidatePostContent(content string) error {
	if len(content) < 20 {
		return fmt.Errorf("content must be at least 20 characters long")
	}
	return nil
}
