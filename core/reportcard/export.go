package reportcard

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/trezcool/shule/core/exam"
)

// WriteGradebook writes the grade term summary as CSV: one row per student, ranked,
// with the Test 1, Mid Term & End of Term scores and the average of every subject.
func WriteGradebook(w io.Writer, summary exam.GradeTermSummary) error {
	// columns follow the subjects of the first student reporting them
	type column struct{ id, code string }
	var columns []column
	seen := make(map[string]struct{})
	for _, st := range summary.Students {
		for _, res := range st.Subjects {
			if _, ok := seen[res.SubjectID]; !ok {
				seen[res.SubjectID] = struct{}{}
				columns = append(columns, column{res.SubjectID, res.ShortCode})
			}
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"position", "admission_no", "student"}
	for _, col := range columns {
		header = append(header, col.code+" T1", col.code+" T2", col.code+" ET", col.code+" AVG")
	}
	header = append(header, "total", "average")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, st := range summary.Students {
		results := make(map[string]exam.SubjectResult, len(st.Subjects))
		for _, res := range st.Subjects {
			results[res.SubjectID] = res
		}

		row := []string{strconv.Itoa(st.Position), st.AdmissionNo, st.StudentName}
		for _, col := range columns {
			res, ok := results[col.id]
			if !ok || !res.Recorded {
				row = append(row, "", "", "", "")
				continue
			}
			row = append(row, cell(res.Test1), cell(res.MidTerm), cell(res.EndOfTerm), res.Average.StringFixed(2))
		}
		row = append(row, st.Total.StringFixed(2), st.Average.StringFixed(2))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(s exam.SlotScore) string {
	if s.IsAbsent {
		return exam.AbsentMark
	}
	return s.Score.String()
}
