package exam_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
)

var (
	t0    = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	maths = school.Subject{ID: "maths", Name: "Mathematics", Code: "MAT"}
	eng   = school.Subject{ID: "eng", Name: "English", Code: "ENG"}
	types = map[string]exam.ExamType{
		"t1":  {ID: "t1", Name: "Test 1", Slot: exam.Test1, Order: 1, MaxScore: decimal.NewFromInt(100)},
		"mid": {ID: "mid", Name: "Mid Term", Slot: exam.MidTerm, Order: 2, MaxScore: decimal.NewFromInt(100)},
		"end": {ID: "end", Name: "End of Term", Slot: exam.EndOfTerm, Order: 3, MaxScore: decimal.NewFromInt(100)},
		"cat": {ID: "cat", Name: "Quiz", Slot: exam.Other, Order: 4, MaxScore: decimal.NewFromInt(20)},
	}
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func entry(id, student, subject, examType string, value float64, at time.Time) exam.ExamScore {
	s := exam.ExamScore{
		ID:           id,
		StudentID:    student,
		SubjectID:    subject,
		ExamTypeID:   examType,
		AcademicYear: 2024,
		Term:         1,
		RecordedAt:   at,
	}
	if value < 0 {
		s.IsAbsent = true
	} else {
		s.Score = dec(value)
	}
	return s
}

func TestClassifyExamType(t *testing.T) {
	tests := map[string]exam.Slot{
		"Test 1":          exam.Test1,
		"TEST1":           exam.Test1,
		"CAT T1":          exam.Test1,
		"Mid-Term":        exam.MidTerm,
		"Test 2":          exam.MidTerm,
		"End of Term":     exam.EndOfTerm,
		"end term exam":   exam.EndOfTerm,
		"Final":           exam.Other,
		"Weekly homework": exam.Other,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, exam.ClassifyExamType(name))
		})
	}
}

func TestLatestScores(t *testing.T) {
	scores := []exam.ExamScore{
		entry("1", "alice", "maths", "t1", 40, t0),
		entry("2", "alice", "maths", "t1", 60, t0.Add(time.Hour)),
		entry("3", "alice", "maths", "t1", 50, t0.Add(30*time.Minute)),
		// same instant: the greatest ID wins
		entry("4", "bob", "maths", "t1", 70, t0),
		entry("5", "bob", "maths", "t1", 75, t0),
		entry("6", "bob", "maths", "mid", -1, t0),
	}

	got := exam.LatestScores(scores)
	require.Len(t, got, 3)

	byKey := make(map[string]exam.ExamScore)
	for _, s := range got {
		byKey[s.StudentID+"/"+s.ExamTypeID] = s
	}
	assert.Equal(t, "2", byKey["alice/t1"].ID)
	assert.Equal(t, "5", byKey["bob/t1"].ID)
	assert.True(t, byKey["bob/mid"].IsAbsent)
	assert.True(t, byKey["bob/mid"].Value().IsZero())

	assert.Empty(t, exam.LatestScores(nil))
}

func TestBuildSubjectSummary(t *testing.T) {
	scores := []exam.ExamScore{
		entry("1", "alice", "maths", "mid", 90, t0),
		entry("2", "alice", "maths", "t1", 30, t0),
		entry("3", "alice", "maths", "t1", 60, t0.Add(time.Minute)),
		entry("4", "alice", "maths", "cat", 10, t0),
		entry("5", "alice", "eng", "t1", 99, t0),
		entry("6", "bob", "maths", "t1", 99, t0),
	}

	sum := exam.BuildSubjectSummary("alice", "maths", 2024, 1, scores, types)
	require.Len(t, sum.Scores, 3)
	// ordered by exam type
	assert.Equal(t, []string{"t1", "mid", "cat"}, []string{sum.Scores[0].ExamTypeID, sum.Scores[1].ExamTypeID, sum.Scores[2].ExamTypeID})
	assert.True(t, sum.Scores[0].Score.Equal(dec(60)))
	assert.True(t, sum.Scores[2].Percentage.Equal(dec(50)), sum.Scores[2].Percentage.String())
	assert.True(t, sum.Total.Equal(dec(160)), sum.Total.String())
	assert.True(t, sum.Average.Equal(dec(53.33)), sum.Average.String())
	assert.Zero(t, sum.AbsentCount)

	empty := exam.BuildSubjectSummary("carl", "maths", 2024, 1, scores, types)
	assert.Empty(t, empty.Scores)
	assert.True(t, empty.Average.IsZero())
}

func TestBuildStudentTermSummary(t *testing.T) {
	alice := school.Student{ID: "alice", FirstName: "Alice", LastName: "Atieno", AdmissionNo: "A1", GradeID: "g"}
	scores := []exam.ExamScore{
		entry("1", "alice", "maths", "t1", -1, t0), // absent counts as zero
		entry("2", "alice", "maths", "mid", 60, t0),
		entry("3", "alice", "eng", "t1", 70, t0),
		entry("4", "alice", "eng", "mid", 80, t0),
		entry("5", "alice", "eng", "end", 90, t0),
		entry("6", "alice", "eng", "cat", 5, t0), // not a summary slot
		entry("7", "alice", "eng", "end", 30, t0.Add(-time.Hour)),
	}

	sum := exam.BuildStudentTermSummary(alice, 2024, 1, []school.Subject{maths, eng}, scores, types)
	require.Len(t, sum.Subjects, 2)

	// subjects are sorted by name
	english, mathematics := sum.Subjects[0], sum.Subjects[1]
	assert.Equal(t, "ENG", english.ShortCode)
	assert.True(t, english.Average.Equal(dec(80)), english.Average.String())
	assert.True(t, english.Passed)

	assert.True(t, mathematics.Test1.IsAbsent)
	assert.True(t, mathematics.Test1.Recorded)
	assert.Equal(t, "ABS", mathematics.Test1.String())
	// no End of Term score: the slot counts as zero
	assert.False(t, mathematics.EndOfTerm.Recorded)
	assert.True(t, mathematics.EndOfTerm.Score.IsZero())
	assert.Equal(t, "0", mathematics.EndOfTerm.String())
	assert.True(t, mathematics.Average.Equal(dec(20)), mathematics.Average.String())
	assert.False(t, mathematics.Passed)

	assert.True(t, sum.Total.Equal(dec(100)), sum.Total.String())
	assert.True(t, sum.Average.Equal(dec(50)), sum.Average.String())
}

func TestBuildStudentTermSummary_missingExamTypes(t *testing.T) {
	jane := school.Student{ID: "jane", FirstName: "Jane"}
	onlyTest1 := map[string]exam.ExamType{"t1": types["t1"]}
	scores := []exam.ExamScore{entry("1", "jane", "maths", "t1", 60, t0)}

	sum := exam.BuildStudentTermSummary(jane, 2024, 1, []school.Subject{maths}, scores, onlyTest1)
	require.Len(t, sum.Subjects, 1)
	res := sum.Subjects[0]
	assert.True(t, res.Recorded)
	assert.True(t, res.Test1.Score.Equal(dec(60)))
	assert.True(t, res.MidTerm.Score.IsZero())
	assert.True(t, res.EndOfTerm.Score.IsZero())
	assert.True(t, res.Average.Equal(dec(20)), res.Average.String())
	assert.True(t, sum.Average.Equal(dec(20)), sum.Average.String())
}

func TestBuildStudentTermSummary_unrecordedSubject(t *testing.T) {
	alice := school.Student{ID: "alice", FirstName: "Alice"}
	scores := []exam.ExamScore{entry("1", "alice", "eng", "t1", 70, t0)}

	sum := exam.BuildStudentTermSummary(alice, 2024, 1, []school.Subject{maths, eng}, scores, types)
	require.Len(t, sum.Subjects, 2)
	assert.False(t, sum.Subjects[1].Recorded)
	assert.True(t, sum.Subjects[1].Average.IsZero())
	// only recorded subjects count in the overall average
	assert.True(t, sum.Average.Equal(dec(23.33)), sum.Average.String())
}

func TestRankStudents(t *testing.T) {
	summaries := []exam.StudentTermSummary{
		{StudentID: "d", StudentName: "Dan", Average: dec(60)},
		{StudentID: "b", StudentName: "Bob", Average: dec(80)},
		{StudentID: "c", StudentName: "carl", Average: dec(70)},
		{StudentID: "a", StudentName: "Alice", Average: dec(80)},
		{StudentID: "e", StudentName: "Eve", Average: dec(70)},
	}

	exam.RankStudents(summaries)

	var (
		order     []string
		positions []int
	)
	for _, s := range summaries {
		order = append(order, s.StudentID)
		positions = append(positions, s.Position)
		assert.Equal(t, 5, s.OutOf)
	}
	assert.Equal(t, []string{"a", "b", "c", "e", "d"}, order)
	assert.Equal(t, []int{1, 1, 3, 3, 5}, positions)
}

func TestBuildGradeSubjectSummary(t *testing.T) {
	grade := school.Grade{ID: "g", Name: "Form 1"}
	summaries := []exam.StudentTermSummary{
		{StudentID: "a", Subjects: []exam.SubjectResult{
			{SubjectID: "maths", SubjectName: "Mathematics", Recorded: true, Average: dec(80), Passed: true},
		}},
		{StudentID: "b", Subjects: []exam.SubjectResult{
			{SubjectID: "maths", SubjectName: "Mathematics", Recorded: true, Average: dec(40),
				Test1: exam.SlotScore{IsAbsent: true, Recorded: true}},
		}},
		{StudentID: "c", Subjects: []exam.SubjectResult{
			{SubjectID: "maths", SubjectName: "Mathematics"},
		}},
	}

	got := exam.BuildGradeSubjectSummary(grade, 2024, 1, summaries)
	require.Len(t, got.Subjects, 1)
	stats := got.Subjects[0]
	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Absences)
	assert.True(t, stats.Mean.Equal(dec(60)), stats.Mean.String())
	assert.True(t, stats.Highest.Equal(dec(80)))
	assert.True(t, stats.Lowest.Equal(dec(40)))
	assert.True(t, stats.PassRate.Equal(dec(50)), stats.PassRate.String())
}
