package pdfsvc

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
)

const (
	font       = "Helvetica"
	rowHeight  = 7.0
	dateLayout = "02 Jan 2006 15:04"
)

// renderer draws the documents with the core fonts of fpdf: text is translated to cp1252.
type renderer struct{}

var _ reportcard.Renderer = (*renderer)(nil)

func NewRenderer() reportcard.Renderer {
	return &renderer{}
}

type page struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newPage(orientation, title string) *page {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("shule", true)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont(font, "I", 7)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return &page{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (p *page) width() float64 {
	w, _ := p.GetPageSize()
	left, _, right, _ := p.GetMargins()
	return w - left - right
}

func (p *page) cell(w float64, txt, border, align string, fill bool) {
	p.CellFormat(w, rowHeight, p.tr(txt), border, 0, align, fill, 0, "")
}

func (p *page) header(schoolName, title, subtitle string) {
	p.SetFont(font, "B", 16)
	p.CellFormat(0, 9, p.tr(schoolName), "", 1, "C", false, 0, "")
	p.SetFont(font, "B", 12)
	p.CellFormat(0, 7, p.tr(title), "", 1, "C", false, 0, "")
	if subtitle != "" {
		p.SetFont(font, "", 10)
		p.CellFormat(0, 6, p.tr(subtitle), "", 1, "C", false, 0, "")
	}
	p.Ln(4)
}

// tableHeader prints a bold, shaded row.
func (p *page) tableHeader(widths []float64, labels []string) {
	p.SetFont(font, "B", 9)
	p.SetFillColor(225, 225, 225)
	for i, label := range labels {
		p.cell(widths[i], label, "1", "C", true)
	}
	p.Ln(-1)
	p.SetFont(font, "", 9)
}

func (p *page) output(w io.Writer) error {
	if err := p.Error(); err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return errors.Wrap(p.Output(w), "writing pdf")
}

func period(year, term int) string {
	return fmt.Sprintf("Term %d, %d", term, year)
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (r *renderer) ReportCards(w io.Writer, docs ...reportcard.Document) error {
	if len(docs) == 0 {
		return errors.New("no report cards to render")
	}
	title := "Report Cards"
	if len(docs) == 1 {
		title = "Report Card - " + docs[0].Student.FullName()
	}
	p := newPage("P", title)
	for _, doc := range docs {
		r.reportCard(p, doc)
	}
	return p.output(w)
}

func (r *renderer) reportCard(p *page, doc reportcard.Document) {
	card, sum := doc.Card, doc.Card.Summary
	p.AddPage()
	p.header(doc.SchoolName, "Report Card", period(card.AcademicYear, card.Term))

	// student details
	half := p.width() / 2
	info := [][2]string{
		{"Student: " + doc.Student.FullName(), "Admission No: " + doc.Student.AdmissionNo},
		{"Grade: " + doc.Grade.DisplayName(), "Position: " + position(sum)},
	}
	p.SetFont(font, "", 10)
	for _, row := range info {
		p.cell(half, row[0], "", "L", false)
		p.cell(half, row[1], "", "L", false)
		p.Ln(-1)
	}
	p.Ln(3)

	// results
	widths := []float64{56, 24, 24, 24, 24, 0}
	widths[5] = p.width() - 152
	p.tableHeader(widths, []string{"Subject", "Test 1", "Mid Term", "End of Term", "Average", "Remark"})
	for _, res := range sum.Subjects {
		remark, avg := "-", "-"
		if res.Recorded {
			avg = fixed(res.Average)
			remark = "Fail"
			if res.Passed {
				remark = "Pass"
			}
		}
		p.cell(widths[0], res.SubjectName, "1", "L", false)
		p.cell(widths[1], res.Test1.String(), "1", "C", false)
		p.cell(widths[2], res.MidTerm.String(), "1", "C", false)
		p.cell(widths[3], res.EndOfTerm.String(), "1", "C", false)
		p.cell(widths[4], avg, "1", "C", false)
		p.cell(widths[5], remark, "1", "C", false)
		p.Ln(-1)
	}
	p.SetFont(font, "B", 9)
	p.cell(widths[0]+widths[1]+widths[2]+widths[3], "Total / Average", "1", "R", false)
	p.cell(widths[4], fixed(sum.Total), "1", "C", false)
	p.cell(widths[5], fixed(sum.Average), "1", "C", false)
	p.Ln(-1)
	p.Ln(6)

	// remarks
	for _, rm := range [][2]string{
		{"Class teacher's remarks", card.TeacherRemarks},
		{"Homeroom teacher's remarks", card.HomeroomRemarks},
	} {
		p.SetFont(font, "B", 10)
		p.CellFormat(0, 6, p.tr(rm[0]), "", 1, "L", false, 0, "")
		p.SetFont(font, "", 10)
		txt := rm[1]
		if txt == "" {
			txt = "-"
		}
		p.MultiCell(0, 5, p.tr(txt), "", "L", false)
		p.Ln(3)
	}

	p.SetFont(font, "I", 8)
	p.CellFormat(0, 5, "Generated on "+card.GeneratedAt.Format(dateLayout), "", 1, "R", false, 0, "")
}

func position(sum exam.StudentTermSummary) string {
	if sum.Position == 0 {
		return "-"
	}
	return fmt.Sprintf("%d of %d", sum.Position, sum.OutOf)
}

type column struct {
	id, code string
}

// subjectColumns lists the subjects reported in a grade summary, by short code.
func subjectColumns(summary exam.GradeTermSummary) []column {
	var cols []column
	seen := make(map[string]struct{})
	for _, st := range summary.Students {
		for _, res := range st.Subjects {
			if _, ok := seen[res.SubjectID]; !ok {
				seen[res.SubjectID] = struct{}{}
				cols = append(cols, column{res.SubjectID, res.ShortCode})
			}
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].code < cols[j].code })
	return cols
}

// MarkSchedule prints the ranked subject averages of every student of the grade.
func (r *renderer) MarkSchedule(w io.Writer, schoolName string, summary exam.GradeTermSummary) error {
	p := newPage("L", "Mark Schedule - "+summary.GradeName)
	p.AddPage()
	p.header(schoolName, "Mark Schedule - "+summary.GradeName, period(summary.AcademicYear, summary.Term))

	cols := subjectColumns(summary)
	const posW, admW, nameW, totW, avgW = 10.0, 22.0, 48.0, 18.0, 16.0
	subjW := 14.0
	if len(cols) > 0 {
		subjW = (p.width() - posW - admW - nameW - totW - avgW) / float64(len(cols))
		if subjW > 20 {
			subjW = 20
		}
	}

	widths := []float64{posW, admW, nameW}
	labels := []string{"Pos", "Adm No", "Student"}
	for _, col := range cols {
		widths = append(widths, subjW)
		labels = append(labels, col.code)
	}
	widths = append(widths, totW, avgW)
	labels = append(labels, "Total", "Avg")
	p.tableHeader(widths, labels)

	if len(summary.Students) == 0 {
		p.cell(p.width(), "No students", "1", "C", false)
		p.Ln(-1)
	}
	for _, st := range summary.Students {
		results := make(map[string]exam.SubjectResult, len(st.Subjects))
		for _, res := range st.Subjects {
			results[res.SubjectID] = res
		}

		p.cell(posW, strconv.Itoa(st.Position), "1", "C", false)
		p.cell(admW, st.AdmissionNo, "1", "L", false)
		p.cell(nameW, st.StudentName, "1", "L", false)
		for _, col := range cols {
			txt := "-"
			if res, ok := results[col.id]; ok && res.Recorded {
				txt = res.Average.StringFixed(1)
			}
			p.cell(subjW, txt, "1", "C", false)
		}
		p.cell(totW, fixed(st.Total), "1", "C", false)
		p.cell(avgW, fixed(st.Average), "1", "C", false)
		p.Ln(-1)
	}

	p.Ln(3)
	p.SetFont(font, "B", 9)
	p.CellFormat(0, 6, "Class average: "+fixed(summary.Average), "", 1, "L", false, 0, "")
	return p.output(w)
}

const topStudents = 10

// ExamAnalysis prints the per subject statistics of the grade, followed by its best students.
func (r *renderer) ExamAnalysis(w io.Writer, schoolName string, summary exam.GradeTermSummary, stats exam.GradeSubjectSummary) error {
	p := newPage("P", "Exam Analysis - "+summary.GradeName)
	p.AddPage()
	p.header(schoolName, "Exam Analysis - "+summary.GradeName, period(summary.AcademicYear, summary.Term))

	p.SetFont(font, "", 10)
	p.CellFormat(0, 6, fmt.Sprintf("Students: %d    Class average: %s", len(summary.Students), fixed(summary.Average)),
		"", 1, "L", false, 0, "")
	p.Ln(2)

	widths := []float64{50, 22, 20, 20, 20, 16, 20, 0}
	var used float64
	for _, cw := range widths {
		used += cw
	}
	widths[7] = p.width() - used
	p.tableHeader(widths, []string{"Subject", "Candidates", "Mean", "Highest", "Lowest", "Passed", "Pass rate", "Absences"})
	for _, s := range stats.Subjects {
		mean, high, low, rate := "-", "-", "-", "-"
		if s.Candidates > 0 {
			mean, high, low = fixed(s.Mean), fixed(s.Highest), fixed(s.Lowest)
			rate = fixed(s.PassRate) + "%"
		}
		p.cell(widths[0], s.SubjectName, "1", "L", false)
		p.cell(widths[1], strconv.Itoa(s.Candidates), "1", "C", false)
		p.cell(widths[2], mean, "1", "C", false)
		p.cell(widths[3], high, "1", "C", false)
		p.cell(widths[4], low, "1", "C", false)
		p.cell(widths[5], strconv.Itoa(s.Passed), "1", "C", false)
		p.cell(widths[6], rate, "1", "C", false)
		p.cell(widths[7], strconv.Itoa(s.Absences), "1", "C", false)
		p.Ln(-1)
	}

	p.Ln(6)
	p.SetFont(font, "B", 11)
	p.CellFormat(0, 7, "Top students", "", 1, "L", false, 0, "")
	top := []float64{16, 30, 0, 30}
	top[2] = p.width() - 76
	p.tableHeader(top, []string{"Pos", "Adm No", "Student", "Average"})
	for i, st := range summary.Students {
		if i == topStudents {
			break
		}
		p.cell(top[0], strconv.Itoa(st.Position), "1", "C", false)
		p.cell(top[1], st.AdmissionNo, "1", "L", false)
		p.cell(top[2], st.StudentName, "1", "L", false)
		p.cell(top[3], fixed(st.Average), "1", "C", false)
		p.Ln(-1)
	}
	return p.output(w)
}
