package usecase

import (
	"strings"
	"unicode/utf8"
)

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
