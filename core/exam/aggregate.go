package exam

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/school"
)

const places = 2

var hundred = decimal.NewFromInt(100)

// LatestScores keeps, for every (student, subject, exam type, year, term), the entry with the
// latest RecordedAt. Entries recorded at the same instant are told apart by ID (greatest wins).
// The result is sorted by student, subject, year, term then exam type.
func LatestScores(scores []ExamScore) []ExamScore {
	latest := make(map[scoreKey]ExamScore, len(scores))
	for _, s := range scores {
		cur, ok := latest[s.key()]
		if !ok || isLater(s, cur) {
			latest[s.key()] = s
		}
	}

	out := make([]ExamScore, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.StudentID != b.StudentID:
			return a.StudentID < b.StudentID
		case a.SubjectID != b.SubjectID:
			return a.SubjectID < b.SubjectID
		case a.AcademicYear != b.AcademicYear:
			return a.AcademicYear < b.AcademicYear
		case a.Term != b.Term:
			return a.Term < b.Term
		default:
			return a.ExamTypeID < b.ExamTypeID
		}
	})
	return out
}

func isLater(s, than ExamScore) bool {
	if s.RecordedAt.Equal(than.RecordedAt) {
		return s.ID > than.ID
	}
	return s.RecordedAt.After(than.RecordedAt)
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).
		DivRound(decimal.NewFromInt(int64(len(values))), places+4).
		Round(places)
}

// SubjectScore is the authoritative score of one exam type.
type SubjectScore struct {
	ExamTypeID   string          `json:"exam_type_id"`
	ExamTypeName string          `json:"exam_type_name"`
	Slot         Slot            `json:"slot"`
	Score        decimal.Decimal `json:"score"`
	MaxScore     decimal.Decimal `json:"max_score"`
	Percentage   decimal.Decimal `json:"percentage"`
	IsAbsent     bool            `json:"is_absent"`
	Remarks      string          `json:"remarks"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

type SubjectSummary struct {
	StudentID    string          `json:"student_id"`
	SubjectID    string          `json:"subject_id"`
	AcademicYear int             `json:"academic_year"`
	Term         int             `json:"term"`
	Scores       []SubjectScore  `json:"scores"`
	Total        decimal.Decimal `json:"total"`
	Average      decimal.Decimal `json:"average"`
	AbsentCount  int             `json:"absent_count"`
}

// BuildSubjectSummary summarises the latest scores of a student in a subject over a term.
// Exam types unknown to `types` are still counted, with the default max score.
func BuildSubjectSummary(studentID, subjectID string, year, term int, scores []ExamScore, types map[string]ExamType) SubjectSummary {
	sum := SubjectSummary{StudentID: studentID, SubjectID: subjectID, AcademicYear: year, Term: term, Scores: []SubjectScore{}}

	var values []decimal.Decimal
	for _, s := range LatestScores(scores) {
		if s.StudentID != studentID || s.SubjectID != subjectID || s.AcademicYear != year || s.Term != term {
			continue
		}
		et, ok := types[s.ExamTypeID]
		if !ok {
			et = ExamType{ID: s.ExamTypeID, Slot: Other, MaxScore: DefaultMaxScore}
		}
		maxScore := et.MaxScore
		if !maxScore.IsPositive() {
			maxScore = DefaultMaxScore
		}
		ss := SubjectScore{
			ExamTypeID:   s.ExamTypeID,
			ExamTypeName: et.Name,
			Slot:         et.Slot,
			Score:        s.Value(),
			MaxScore:     maxScore,
			Percentage:   s.Value().Mul(hundred).DivRound(maxScore, places),
			IsAbsent:     s.IsAbsent,
			Remarks:      s.Remarks,
			RecordedAt:   s.RecordedAt,
		}
		if s.IsAbsent {
			sum.AbsentCount++
		}
		sum.Scores = append(sum.Scores, ss)
		values = append(values, ss.Score)
	}

	sort.SliceStable(sum.Scores, func(i, j int) bool {
		a, b := types[sum.Scores[i].ExamTypeID], types[sum.Scores[j].ExamTypeID]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return sum.Scores[i].ExamTypeID < sum.Scores[j].ExamTypeID
	})
	sum.Total = decimal.Sum(decimal.Zero, values...)
	sum.Average = mean(values)
	return sum
}

// SlotScore is the score of a term summary slot. A slot without any recorded score
// has Recorded false and a zero score.
type SlotScore struct {
	Score    decimal.Decimal `json:"score"`
	IsAbsent bool            `json:"is_absent"`
	Recorded bool            `json:"recorded"`
}

// AbsentMark stands for an absent score in printed results.
const AbsentMark = "ABS"

func (ss SlotScore) String() string {
	if ss.IsAbsent {
		return AbsentMark
	}
	return ss.Score.StringFixedBank(0)
}

type SubjectResult struct {
	SubjectID   string          `json:"subject_id"`
	SubjectName string          `json:"subject_name"`
	SubjectCode string          `json:"subject_code"`
	ShortCode   string          `json:"short_code"`
	Test1       SlotScore       `json:"test1"`
	MidTerm     SlotScore       `json:"mid_term"`
	EndOfTerm   SlotScore       `json:"end_of_term"`
	Average     decimal.Decimal `json:"average"`
	Recorded    bool            `json:"recorded"`
	Passed      bool            `json:"passed"`
}

func (r *SubjectResult) slot(s Slot) *SlotScore {
	switch s {
	case Test1:
		return &r.Test1
	case MidTerm:
		return &r.MidTerm
	case EndOfTerm:
		return &r.EndOfTerm
	}
	return nil
}

type StudentTermSummary struct {
	StudentID    string          `json:"student_id"`
	StudentName  string          `json:"student_name"`
	AdmissionNo  string          `json:"admission_no"`
	GradeID      string          `json:"grade_id"`
	AcademicYear int             `json:"academic_year"`
	Term         int             `json:"term"`
	Subjects     []SubjectResult `json:"subjects"`
	Total        decimal.Decimal `json:"total"`
	Average      decimal.Decimal `json:"average"`
	Position     int             `json:"position,omitempty"`
	OutOf        int             `json:"out_of,omitempty"`
}

// BuildStudentTermSummary lays out the term results of a student: one row per subject with the
// Test 1, Mid Term and End of Term scores (latest entry of the slot), and their average.
//
// The subject average is taken over the 3 slots: a slot without a recorded score and an absent
// score both count as zero. The overall average is taken over subjects with at least one recorded slot.
// `subjects` lists the subjects to report (eg. the active enrolments), scores of other subjects are ignored.
func BuildStudentTermSummary(
	student school.Student, year, term int, subjects []school.Subject, scores []ExamScore, types map[string]ExamType,
) StudentTermSummary {
	sum := StudentTermSummary{
		StudentID:    student.ID,
		StudentName:  student.FullName(),
		AdmissionNo:  student.AdmissionNo,
		GradeID:      student.GradeID,
		AcademicYear: year,
		Term:         term,
		Subjects:     make([]SubjectResult, 0, len(subjects)),
	}

	// several exam types may share a slot: the latest entry of the slot wins
	type slotKey struct {
		subjectID string
		slot      Slot
	}
	bySlot := make(map[slotKey]ExamScore)
	for _, s := range LatestScores(scores) {
		if s.StudentID != student.ID || s.AcademicYear != year || s.Term != term {
			continue
		}
		et, ok := types[s.ExamTypeID]
		if !ok || et.Slot == Other || et.Slot == "" {
			continue
		}
		k := slotKey{s.SubjectID, et.Slot}
		if cur, ok := bySlot[k]; !ok || isLater(s, cur) {
			bySlot[k] = s
		}
	}

	var averages []decimal.Decimal
	for _, subj := range sortedSubjects(subjects) {
		res := SubjectResult{
			SubjectID:   subj.ID,
			SubjectName: subj.Name,
			SubjectCode: subj.Code,
			ShortCode:   subj.ShortCode(),
		}
		values := make([]decimal.Decimal, 0, len(SummarySlots))
		for _, slot := range SummarySlots {
			s, ok := bySlot[slotKey{subj.ID, slot}]
			if !ok {
				values = append(values, decimal.Zero)
				continue
			}
			*res.slot(slot) = SlotScore{Score: s.Value(), IsAbsent: s.IsAbsent, Recorded: true}
			values = append(values, s.Value())
			res.Recorded = true
		}
		if res.Recorded {
			res.Average = mean(values)
			res.Passed = res.Average.GreaterThanOrEqual(PassMark)
			averages = append(averages, res.Average)
		}
		sum.Subjects = append(sum.Subjects, res)
	}

	sum.Total = decimal.Sum(decimal.Zero, averages...)
	sum.Average = mean(averages)
	return sum
}

func sortedSubjects(subjects []school.Subject) []school.Subject {
	out := make([]school.Subject, len(subjects))
	copy(out, subjects)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

type GradeTermSummary struct {
	GradeID      string               `json:"grade_id"`
	GradeName    string               `json:"grade_name"`
	AcademicYear int                  `json:"academic_year"`
	Term         int                  `json:"term"`
	Students     []StudentTermSummary `json:"students"`
	Average      decimal.Decimal      `json:"average"`
}

// RankStudents sets the Position of every summary using competition ranking ("1224"):
// equal averages share a position and the next one skips accordingly.
// Summaries are sorted by position, then by student name.
func RankStudents(summaries []StudentTermSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if c := summaries[i].Average.Cmp(summaries[j].Average); c != 0 {
			return c > 0
		}
		return strings.ToLower(summaries[i].StudentName) < strings.ToLower(summaries[j].StudentName)
	})
	for i := range summaries {
		summaries[i].OutOf = len(summaries)
		if i > 0 && summaries[i].Average.Equal(summaries[i-1].Average) {
			summaries[i].Position = summaries[i-1].Position
			continue
		}
		summaries[i].Position = i + 1
	}
}

// BuildGradeTermSummary ranks the students of a grade by term average.
func BuildGradeTermSummary(grade school.Grade, year, term int, summaries []StudentTermSummary) GradeTermSummary {
	RankStudents(summaries)
	averages := make([]decimal.Decimal, 0, len(summaries))
	for _, s := range summaries {
		averages = append(averages, s.Average)
	}
	return GradeTermSummary{
		GradeID:      grade.ID,
		GradeName:    grade.DisplayName(),
		AcademicYear: year,
		Term:         term,
		Students:     summaries,
		Average:      mean(averages),
	}
}

// SubjectStats are the statistics of a subject over the students of a grade who have a recorded average.
type SubjectStats struct {
	SubjectID   string          `json:"subject_id"`
	SubjectName string          `json:"subject_name"`
	ShortCode   string          `json:"short_code"`
	Candidates  int             `json:"candidates"`
	Mean        decimal.Decimal `json:"mean"`
	Highest     decimal.Decimal `json:"highest"`
	Lowest      decimal.Decimal `json:"lowest"`
	Passed      int             `json:"passed"`
	PassRate    decimal.Decimal `json:"pass_rate"` // percentage
	Absences    int             `json:"absences"`
}

type GradeSubjectSummary struct {
	GradeID      string         `json:"grade_id"`
	GradeName    string         `json:"grade_name"`
	AcademicYear int            `json:"academic_year"`
	Term         int            `json:"term"`
	Subjects     []SubjectStats `json:"subjects"`
}

// BuildGradeSubjectSummary computes per subject statistics from the students' term summaries.
func BuildGradeSubjectSummary(grade school.Grade, year, term int, summaries []StudentTermSummary) GradeSubjectSummary {
	type acc struct {
		stats  SubjectStats
		values []decimal.Decimal
	}
	bySubject := make(map[string]*acc)
	var order []string

	for _, st := range summaries {
		for _, res := range st.Subjects {
			a, ok := bySubject[res.SubjectID]
			if !ok {
				a = &acc{stats: SubjectStats{SubjectID: res.SubjectID, SubjectName: res.SubjectName, ShortCode: res.ShortCode}}
				bySubject[res.SubjectID] = a
				order = append(order, res.SubjectID)
			}
			for _, slot := range []SlotScore{res.Test1, res.MidTerm, res.EndOfTerm} {
				if slot.IsAbsent {
					a.stats.Absences++
				}
			}
			if !res.Recorded {
				continue
			}
			a.values = append(a.values, res.Average)
			if res.Passed {
				a.stats.Passed++
			}
		}
	}

	out := GradeSubjectSummary{
		GradeID:      grade.ID,
		GradeName:    grade.DisplayName(),
		AcademicYear: year,
		Term:         term,
		Subjects:     make([]SubjectStats, 0, len(order)),
	}
	for _, id := range order {
		a := bySubject[id]
		a.stats.Candidates = len(a.values)
		if len(a.values) > 0 {
			a.stats.Mean = mean(a.values)
			a.stats.Highest = decimal.Max(a.values[0], a.values[1:]...)
			a.stats.Lowest = decimal.Min(a.values[0], a.values[1:]...)
			a.stats.PassRate = decimal.NewFromInt(int64(a.stats.Passed)).
				Mul(hundred).
				DivRound(decimal.NewFromInt(int64(a.stats.Candidates)), places)
		}
		out.Subjects = append(out.Subjects, a.stats)
	}
	sort.SliceStable(out.Subjects, func(i, j int) bool {
		return strings.ToLower(out.Subjects[i].SubjectName) < strings.ToLower(out.Subjects[j].SubjectName)
	})
	return out
}
