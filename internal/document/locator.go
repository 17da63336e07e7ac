package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var cfiPattern = regexp.MustCompile(`^epubcfi\(/6/(\d+)(?:\[[^\]]*\])?!(?:/\d+)*(?::(\d+))?\)$`)

func pageLocator(page int) string {
	return fmt.Sprintf("Page %d", page)
}

func locationLocator(index int) string {
	return fmt.Sprintf("Location %d", index)
}

// cfiLocator renders a section/offset pair as a simplified EPUB CFI.
// Spine steps are even numbers starting at 2.
func cfiLocator(section, offset int) string {
	return fmt.Sprintf("epubcfi(/6/%d!/4/1:%d)", 2*(section+1), offset)
}

// parseCFI is the inverse of cfiLocator. Paths inside the content document
// are ignored, only the spine step and the character offset matter.
func parseCFI(s string) (section, offset int, ok bool) {
	m := cfiPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	step, err := strconv.Atoi(m[1])
	if err != nil || step < 2 || step%2 != 0 {
		return 0, 0, false
	}
	if m[2] != "" {
		offset, err = strconv.Atoi(m[2])
		if err != nil {
			return 0, 0, false
		}
	}
	return step/2 - 1, offset, true
}

// parseNumbered accepts "<word> N" (case insensitive) or a bare "N"
func parseNumbered(s, word string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(word) && strings.EqualFold(s[:len(word)], word) {
		s = strings.TrimSpace(s[len(word):])
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
