package sms

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
)

const truncated = " ..."

// FormatResults renders the term results of a student as a single text message:
//
//	Jane T1/2024 ENG 45-60-70, MAT 50-ABS-0 AVG 55.00 POS 3/40
//
// Each subject is its 3 characters code followed by the Test 1, Mid Term & End of Term scores
// ("0" when not recorded, "ABS" when absent). Subjects that do not fit in core.MaxSmsLength
// are dropped whole and the text ends with "...".
func FormatResults(student school.Student, summary exam.StudentTermSummary) string {
	name := student.FirstName
	if name == "" {
		name = student.FullName()
	}
	header := fmt.Sprintf("%s T%d/%d", name, summary.Term, summary.AcademicYear)

	footer := " AVG " + summary.Average.StringFixed(2)
	if summary.Position > 0 {
		footer += fmt.Sprintf(" POS %d/%d", summary.Position, summary.OutOf)
	}

	entries := make([]string, 0, len(summary.Subjects))
	for _, res := range summary.Subjects {
		if !res.Recorded {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s %s-%s-%s",
			res.ShortCode, slotText(res.Test1), slotText(res.MidTerm), slotText(res.EndOfTerm)))
	}

	full := header
	if len(entries) > 0 {
		full += " " + strings.Join(entries, ", ")
	}
	if length(full+footer) <= core.MaxSmsLength {
		return full + footer
	}

	// keep as many entries as fit, with room for the truncation marker
	budget := core.MaxSmsLength - length(footer) - length(truncated)
	text := header
	for i, entry := range entries {
		sep := " "
		if i > 0 {
			sep = ", "
		}
		if length(text+sep+entry) > budget {
			break
		}
		text += sep + entry
	}
	text += truncated + footer
	if length(text) > core.MaxSmsLength {
		// only when the name alone does not fit
		return string([]rune(text)[:core.MaxSmsLength])
	}
	return text
}

func slotText(s exam.SlotScore) string {
	if s.IsAbsent {
		return exam.AbsentMark
	}
	return s.Score.Round(0).String()
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
