package reportcard_test

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
)

func slot(v int64) exam.SlotScore {
	return exam.SlotScore{Score: decimal.NewFromInt(v), Recorded: true}
}

func TestWriteGradebook(t *testing.T) {
	summary := exam.GradeTermSummary{
		AcademicYear: 2024,
		Term:         1,
		Students: []exam.StudentTermSummary{
			{
				StudentName: "Alice Atieno",
				AdmissionNo: "F4-001",
				Position:    1,
				Subjects: []exam.SubjectResult{
					{SubjectID: "mat", ShortCode: "MAT", Test1: slot(80), MidTerm: slot(90), EndOfTerm: slot(70),
						Average: decimal.NewFromInt(80), Recorded: true},
				},
				Total:   decimal.NewFromInt(80),
				Average: decimal.NewFromInt(80),
			},
			{
				StudentName: "Carl Chege",
				AdmissionNo: "F4-003",
				Position:    2,
				Subjects: []exam.SubjectResult{
					{SubjectID: "mat", ShortCode: "MAT", Test1: exam.SlotScore{IsAbsent: true, Recorded: true},
						MidTerm: slot(60), Average: decimal.NewFromInt(20), Recorded: true},
					{SubjectID: "eng", ShortCode: "ENG"},
				},
				Total:   decimal.NewFromInt(20),
				Average: decimal.NewFromInt(20),
			},
		},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, reportcard.WriteGradebook(buf, summary))

	want := "position,admission_no,student,MAT T1,MAT T2,MAT ET,MAT AVG,ENG T1,ENG T2,ENG ET,ENG AVG,total,average\n" +
		"1,F4-001,Alice Atieno,80,90,70,80.00,,,,,80.00,80.00\n" +
		"2,F4-003,Carl Chege,ABS,60,0,20.00,,,,,20.00,20.00\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteGradebook_empty(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, reportcard.WriteGradebook(buf, exam.GradeTermSummary{}))
	assert.Equal(t, "position,admission_no,student,total,average\n", buf.String())
}
