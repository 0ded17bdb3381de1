// Package export renders project and requirement reports as PDF and CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

const (
	dateFmt = "2006-01-02"
	lineH   = 6.0
)

// Meta is stamped on every document.
type Meta struct {
	AppName     string
	GeneratedAt time.Time
	GeneratedBy string
}

// document wraps fpdf with the page setup shared by every report.
type document struct {
	*fpdf.Fpdf
	tr    func(string) string
	width float64
}

func newDocument(title string, m Meta) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator(m.AppName, true)
	pdf.SetAuthor(m.GeneratedBy, true)
	pdf.SetCreationDate(m.GeneratedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	d := &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	d.width = pageW - left - right

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		footer := fmt.Sprintf("%s - generated %s", m.AppName, m.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
		pdf.CellFormat(d.width/2, 6, d.tr(footer), "", 0, "L", false, 0, "")
		pdf.CellFormat(d.width/2, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()
	return d
}

func (d *document) heading(text string) {
	d.SetFont("Helvetica", "B", 16)
	d.SetTextColor(20, 20, 20)
	d.MultiCell(d.width, 8, d.tr(text), "", "L", false)
	d.Ln(2)
}

func (d *document) section(text string) {
	d.Ln(3)
	d.SetFont("Helvetica", "B", 12)
	d.SetTextColor(40, 40, 40)
	d.CellFormat(d.width, 7, d.tr(text), "B", 1, "L", false, 0, "")
	d.Ln(1)
}

func (d *document) field(label, value string) {
	if value == "" {
		return
	}
	d.SetFont("Helvetica", "B", 10)
	d.CellFormat(40, lineH, d.tr(label), "", 0, "L", false, 0, "")
	d.SetFont("Helvetica", "", 10)
	d.MultiCell(d.width-40, lineH, d.tr(value), "", "L", false)
}

func (d *document) paragraph(text string) {
	d.SetFont("Helvetica", "", 10)
	d.SetTextColor(40, 40, 40)
	d.MultiCell(d.width, 5, d.tr(text), "", "L", false)
}

// table draws a header row followed by rows; widths are fractions of the
// printable width.
func (d *document) table(cols []string, widths []float64, rows [][]string) {
	d.SetFont("Helvetica", "B", 9)
	d.SetFillColor(230, 234, 240)
	for i, c := range cols {
		d.CellFormat(widths[i]*d.width, 7, d.tr(c), "1", 0, "L", true, 0, "")
	}
	d.Ln(-1)
	d.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, v := range row {
			w := widths[i] * d.width
			d.CellFormat(w, lineH, d.tr(fit(d, v, w)), "1", 0, "L", false, 0, "")
		}
		d.Ln(-1)
	}
	if len(rows) == 0 {
		d.SetFont("Helvetica", "I", 9)
		d.CellFormat(d.width, lineH, "No requirements.", "1", 1, "C", false, 0, "")
	}
}

func (d *document) write(w io.Writer) error {
	if err := d.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return d.Output(w)
}

// fit truncates s so it prints within width w.
func fit(d *document, s string, w float64) string {
	const pad = 2
	if d.GetStringWidth(s) <= w-pad {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && d.GetStringWidth(string(r)+"...") > w-pad {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

var requirementCols = []string{"Title", "Category", "Priority", "Status", "Assignee", "Due"}
var requirementWidths = []float64{0.34, 0.14, 0.11, 0.13, 0.16, 0.12}

func requirementRow(r service.RequirementView) []string {
	return []string{r.Title, label(string(r.Category)), label(string(r.Priority)), label(string(r.Status)), refName(r.AssignedTo), date(r.DueDate)}
}

// ProjectReport writes a PDF with the project header and its requirements.
func ProjectReport(w io.Writer, p service.ProjectDetail, reqs []service.RequirementView, m Meta) error {
	d := newDocument("Project report: "+p.Name, m)
	d.heading(p.Name)
	d.field("Status", label(string(p.Status)))
	d.field("Priority", label(string(p.Priority)))
	d.field("Client", clientLine(p))
	d.field("Start date", date(p.StartDate))
	d.field("Deadline", date(p.Deadline))
	if len(p.Team) > 0 {
		names := make([]string, 0, len(p.Team))
		for _, u := range p.Team {
			names = append(names, u.Name)
		}
		d.field("Team", strings.Join(names, ", "))
	}
	d.field("Tags", strings.Join(p.Tags, ", "))
	if p.Description != "" {
		d.section("Description")
		d.paragraph(p.Description)
	}

	d.section("Requirement summary")
	for _, s := range model.RequirementStatuses {
		d.field(label(string(s)), fmt.Sprint(p.RequirementCounts[string(s)]))
	}

	d.section(fmt.Sprintf("Requirements (%d)", len(reqs)))
	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, requirementRow(r))
	}
	d.table(requirementCols, requirementWidths, rows)
	return d.write(w)
}

// RequirementsList writes a PDF table of reqs. filters describe the query
// the list was produced from and are printed under the title.
func RequirementsList(w io.Writer, reqs []service.RequirementView, filters map[string]string, m Meta) error {
	d := newDocument("Requirements", m)
	d.heading("Requirements")
	for _, k := range []string{"project", "status", "category", "priority", "search"} {
		d.field(label(k), filters[k])
	}
	d.Ln(2)

	cols := append([]string{"Project"}, requirementCols...)
	widths := []float64{0.16, 0.26, 0.12, 0.1, 0.12, 0.14, 0.1}
	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		project := ""
		if r.Project != nil {
			project = r.Project.Name
		}
		rows = append(rows, append([]string{project}, requirementRow(r)...))
	}
	d.table(cols, widths, rows)
	return d.write(w)
}

// RequirementDetail writes a PDF for one requirement with its acceptance
// criteria, comments and attachments.
func RequirementDetail(w io.Writer, r service.RequirementView, m Meta) error {
	d := newDocument("Requirement: "+r.Title, m)
	d.heading(r.Title)
	if r.Project != nil {
		d.field("Project", r.Project.Name)
	}
	d.field("Category", label(string(r.Category)))
	d.field("Priority", label(string(r.Priority)))
	d.field("Status", label(string(r.Status)))
	d.field("Created by", refName(r.CreatedBy))
	d.field("Assigned to", refName(r.AssignedTo))
	d.field("Due date", date(r.DueDate))
	d.field("Created", r.CreatedAt.UTC().Format(dateFmt))
	d.field("Tags", strings.Join(r.Tags, ", "))

	d.section("Description")
	d.paragraph(r.Description)

	if len(r.AcceptanceCriteria) > 0 {
		d.section("Acceptance criteria")
		for i, c := range r.AcceptanceCriteria {
			d.paragraph(fmt.Sprintf("%d. %s", i+1, c))
		}
	}
	if len(r.Comments) > 0 {
		d.section(fmt.Sprintf("Comments (%d)", len(r.Comments)))
		for _, c := range r.Comments {
			d.SetFont("Helvetica", "B", 9)
			d.CellFormat(d.width, 5, d.tr(refName(c.User)+"  "+c.CreatedAt.UTC().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
			d.paragraph(c.Text)
			d.Ln(1)
		}
	}
	if len(r.Attachments) > 0 {
		d.section("Attachments")
		for _, a := range r.Attachments {
			d.field(a.UploadedAt.UTC().Format(dateFmt), a.Filename)
		}
	}
	return d.write(w)
}

var csvHeader = []string{"ID", "Title", "Description", "Category", "Priority", "Status", "Created By", "Assigned To", "Due Date", "Acceptance Criteria", "Tags", "Comments", "Created At"}

// ProjectCSV writes one row per requirement.
func ProjectCSV(w io.Writer, reqs []service.RequirementView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range reqs {
		row := []string{
			r.ID.Hex(),
			r.Title,
			r.Description,
			string(r.Category),
			string(r.Priority),
			string(r.Status),
			refName(r.CreatedBy),
			refName(r.AssignedTo),
			date(r.DueDate),
			strings.Join(r.AcceptanceCriteria, "; "),
			strings.Join(r.Tags, ", "),
			fmt.Sprint(len(r.Comments)),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// Filename builds a download name like "project-acme-portal.pdf".
func Filename(prefix, name, ext string) string {
	slug := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return prefix + "." + ext
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return prefix + "-" + slug + "." + ext
}

// label turns an enum value like "in_progress" into "In progress".
func label(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "_", " ")
	return strings.ToUpper(v[:1]) + v[1:]
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateFmt)
}

func refName(u *model.UserRef) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func clientLine(p service.ProjectDetail) string {
	name := p.ClientInfo.Name
	if p.Client != nil {
		name = p.Client.Name
	}
	parts := []string{}
	for _, s := range []string{name, p.ClientInfo.Company, p.ClientInfo.Email} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
