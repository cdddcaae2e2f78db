package taskspec

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PhaseSection is one "### Phase N: name" block split out of a design
// document.
type PhaseSection struct {
	Number  int
	Name    string
	Content string
}

var (
	phaseHeadingPattern = regexp.MustCompile(`(?m)^###\s+Phase\s+(\d+)\s*:?\s*(.*)$`)
	headingPattern      = regexp.MustCompile(`(?m)^#{1,3}\s`)
)

// SplitPhases splits a design document into its phase sections, in document
// order. A document with no phase headings yields nil.
func SplitPhases(document string) []PhaseSection {
	matches := phaseHeadingPattern.FindAllStringSubmatchIndex(document, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]PhaseSection, 0, len(matches))
	for i, m := range matches {
		number := 0
		for _, c := range document[m[2]:m[3]] {
			number = number*10 + int(c-'0')
		}
		name := strings.TrimSpace(document[m[4]:m[5]])

		end := len(document)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := document[m[1]:end]
		// A phase block ends at the next same-or-higher heading.
		if idx := headingPattern.FindStringIndex(content); idx != nil {
			content = content[:idx[0]]
		}

		sections = append(sections, PhaseSection{
			Number:  number,
			Name:    name,
			Content: strings.TrimSpace(content),
		})
	}
	return sections
}

var taskLinePattern = regexp.MustCompile(`(?m)^\s*(?:\d+\.|[-*])\s+(.+)$`)

// ExtractTasks pulls the task lines out of a document's Low-Level Tasks
// section. Numbered and bulleted items both count; sub-bullets are folded
// into their item by the section-level match order.
func ExtractTasks(document string) []string {
	section := ExtractComponents(document)["low_level_tasks"]
	if section == "" {
		return nil
	}

	var tasks []string
	for _, m := range taskLinePattern.FindAllStringSubmatch(section, -1) {
		task := strings.TrimSpace(m[1])
		if task != "" {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

var unsafeFilenamePattern = regexp.MustCompile(`[^a-z0-9._-]+`)

// SanitizeFilename converts arbitrary text into a safe lowercase filename
// fragment: runs of unsafe characters collapse to single hyphens.
func SanitizeFilename(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = unsafeFilenamePattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "untitled"
	}
	return s
}

// FormatDuration renders an elapsed duration for run summaries: sub-minute
// values as seconds with one decimal, longer ones as minutes and whole
// seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%ds", m, s)
}
