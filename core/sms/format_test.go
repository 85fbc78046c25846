package sms_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/sms"
)

func slot(v float64) exam.SlotScore {
	return exam.SlotScore{Score: decimal.NewFromFloat(v), Recorded: true}
}

func TestFormatResults(t *testing.T) {
	jane := school.Student{FirstName: "Jane", LastName: "Wanjiru"}
	summary := exam.StudentTermSummary{
		AcademicYear: 2024,
		Term:         2,
		Subjects: []exam.SubjectResult{
			{ShortCode: "ENG", Test1: slot(45), MidTerm: slot(59.6), EndOfTerm: slot(70), Recorded: true},
			{ShortCode: "KIS"},
			{ShortCode: "MAT", Test1: slot(50), MidTerm: exam.SlotScore{IsAbsent: true, Recorded: true}, Recorded: true},
		},
		Average:  decimal.NewFromFloat(55),
		Position: 3,
		OutOf:    40,
	}

	assert.Equal(t, "Jane T2/2024 ENG 45-60-70, MAT 50-ABS-0 AVG 55.00 POS 3/40", sms.FormatResults(jane, summary))

	summary.Position = 0
	summary.Subjects = nil
	assert.Equal(t, "Jane T2/2024 AVG 55.00", sms.FormatResults(jane, summary))
}

func TestFormatResults_truncated(t *testing.T) {
	jane := school.Student{FirstName: "Jane"}
	summary := exam.StudentTermSummary{
		AcademicYear: 2024,
		Term:         1,
		Average:      decimal.NewFromInt(80),
		Position:     1,
		OutOf:        3,
	}
	for i := 0; i < 20; i++ {
		summary.Subjects = append(summary.Subjects, exam.SubjectResult{
			ShortCode: fmt.Sprintf("S%02d", i),
			Test1:     slot(80),
			MidTerm:   slot(80),
			EndOfTerm: slot(80),
			Recorded:  true,
		})
	}

	text := sms.FormatResults(jane, summary)
	assert.LessOrEqual(t, utf8.RuneCountInString(text), core.MaxSmsLength)
	assert.True(t, strings.HasPrefix(text, "Jane T1/2024 S00 80-80-80, S01 80-80-80"), text)
	assert.True(t, strings.HasSuffix(text, "80-80-80 ... AVG 80.00 POS 1/3"), text)
	assert.NotContains(t, text, "S19")
}

func TestFormatResults_longName(t *testing.T) {
	student := school.Student{FirstName: strings.Repeat("é", 200)}
	text := sms.FormatResults(student, exam.StudentTermSummary{AcademicYear: 2024, Term: 1})
	assert.Equal(t, core.MaxSmsLength, utf8.RuneCountInString(text))
}

func TestFormatResults_missingSlots(t *testing.T) {
	jane := school.Student{ID: "jane", FirstName: "Jane"}
	maths := school.Subject{ID: "maths", Name: "Mathematics", Code: "MAT"}
	test1 := exam.ExamType{ID: "t1", Name: "Test 1", Slot: exam.Test1, MaxScore: decimal.NewFromInt(100)}
	scores := []exam.ExamScore{{
		ID: "1", StudentID: "jane", SubjectID: "maths", ExamTypeID: "t1",
		AcademicYear: 2024, Term: 1, Score: decimal.NewFromInt(60),
	}}

	summary := exam.BuildStudentTermSummary(jane, 2024, 1, []school.Subject{maths},
		scores, map[string]exam.ExamType{"t1": test1})
	assert.Equal(t, "Jane T1/2024 MAT 60-0-0 AVG 20.00", sms.FormatResults(jane, summary))
}
