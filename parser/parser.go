package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ValidateRecord ensures the scraper captured the fields that identify a work.
func ValidateRecord(b *models.BookRecord) error {
	if b == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if strings.TrimSpace(b.Author) == "" {
		return fmt.Errorf("record missing author for %s", b.Title)
	}
	if strings.TrimSpace(b.Publisher) == "" {
		return fmt.Errorf("record missing publisher for %s", b.Title)
	}
	if b.Volumes < 1 {
		return fmt.Errorf("record %s has volume count %d", b.Title, b.Volumes)
	}
	return nil
}

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StripLabel removes label and everything before it, e.g. "저자: 홍길동" -> "홍길동".
// Text without the label is only normalized.
func StripLabel(text, label string) string {
	if label != "" {
		if i := strings.Index(text, label); i >= 0 {
			text = text[i+len(label):]
		}
	}
	return NormalizeText(text)
}

// HasLabel reports whether text carries label. An empty label matches anything.
func HasLabel(text, label string) bool {
	return label == "" || strings.Contains(text, label)
}

// OrDefault returns fallback when text is blank.
func OrDefault(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}
