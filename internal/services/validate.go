package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	ChatMessageMaxLength = 1000
	ChatMessageMinLength = 1
)

var (
	// script and style elements are removed together with their content,
	// every other tag is stripped and its inner text kept.
	reDangerousBlock = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)\s*>`)
	reMarkupTag      = regexp.MustCompile(`<[^>]*>`)
	reUnclosedTag    = regexp.MustCompile(`<[^>]*$`)
)

// SanitizeMessage strips all markup from the message and trims the
// surrounding whitespace. The relay never forwards raw client markup.
func SanitizeMessage(message string) string {
	cleaned := reDangerousBlock.ReplaceAllString(message, "")
	cleaned = reMarkupTag.ReplaceAllString(cleaned, "")
	cleaned = reUnclosedTag.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// ValidateMessage sanitizes the message and checks it against the length
// bounds. It returns the sanitized message, or an error describing why the
// message cannot be relayed.
func ValidateMessage(message string) (string, error) {

	sanitized := SanitizeMessage(message)

	if utf8.RuneCountInString(sanitized) < ChatMessageMinLength {
		return "", fmt.Errorf("message cannot be empty")
	}

	if utf8.RuneCountInString(sanitized) > ChatMessageMaxLength {
		return "", fmt.Errorf("message too long (max %d characters)", ChatMessageMaxLength)
	}

	return sanitized, nil
}

// FilterMessage checks the sanitized message for spam and abuse patterns.
// It returns false and a reason when the message must not be relayed.
func FilterMessage(message string) (string, bool) {

	if hasRepeatedCharacters(message) {
		return "message appears to be spam (repeated characters)", false
	}

	if hasExcessiveCaps(message) {
		return "please don't use excessive caps", false
	}

	return "", true
}

// hasRepeatedCharacters reports a run of 11 or more identical characters.
func hasRepeatedCharacters(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= 11 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// hasExcessiveCaps reports messages of 10+ characters written in more than
// 70% upper-case letters.
func hasExcessiveCaps(text string) bool {
	total := utf8.RuneCountInString(text)
	if total < 10 {
		return false
	}
	caps := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			caps++
		}
	}
	return float64(caps)/float64(total) > 0.7
}
