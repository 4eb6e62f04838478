// importer/xlsx.go - Spreadsheet reader
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"studyhub/apperrors"
	"studyhub/models"

	"github.com/xuri/excelize/v2"
)

// Sheet names read by ParseXLSX. Only Lessons is mandatory.
const (
	SheetCourses   = "Courses"
	SheetLessons   = "Lessons"
	SheetExercises = "Exercises"
)

// listSeparator splits multi-value cells such as options, hints and requires.
const listSeparator = "|"

// Header rows for each sheet, in the column order WriteTemplate lays out.
var (
	CourseColumns   = []string{"name", "description", "color", "icon", "order"}
	LessonColumns   = []string{"course", "key", "title", "order", "category", "level", "mastery_threshold", "xp_reward", "difficulty_level", "is_checkpoint", "requires", "theory_content"}
	ExerciseColumns = []string{"lesson", "prompt", "type", "options", "correct_answer", "explanation", "difficulty", "order", "hints"}
)

// header maps lower-cased column titles to their index in a row.
type header map[string]int

func newHeader(row []string) header {
	h := make(header, len(row))
	for i, title := range row {
		h[strings.ToLower(strings.TrimSpace(title))] = i
	}
	return h
}

func (h header) cell(row []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h header) intCell(row []string, column string) (int, error) {
	v := h.cell(row, column)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number, got %q", column, v)
	}
	return n, nil
}

func (h header) floatCell(row []string, column string) (float64, error) {
	v := h.cell(row, column)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", column, v)
	}
	return n, nil
}

func (h header) boolCell(row []string, column string) (bool, error) {
	v := h.cell(row, column)
	if v == "" {
		return false, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "x":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("%s must be true or false, got %q", column, v)
}

func (h header) listCell(row []string, column string) []string {
	v := h.cell(row, column)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseXLSX reads a workbook with Courses, Lessons and Exercises sheets. The
// first row of each sheet is a header; columns are matched by title. Every
// malformed row is reported, prefixed with its sheet and row number.
func ParseXLSX(r io.Reader) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}
	if !sheets[SheetLessons] {
		return nil, apperrors.Validation("Invalid workbook", fmt.Sprintf("sheet %q is missing", SheetLessons))
	}

	b := &xlsxBuilder{
		cat:     &Catalog{},
		courses: make(map[string]int),
		lessons: make(map[string]*LessonDoc),
	}

	if sheets[SheetCourses] {
		if err := b.readSheet(f, SheetCourses, b.courseRow); err != nil {
			return nil, err
		}
	}
	if err := b.readSheet(f, SheetLessons, b.lessonRow); err != nil {
		return nil, err
	}
	// Lesson pointers are only stable once every lesson row is appended.
	b.indexLessons()
	if sheets[SheetExercises] {
		if err := b.readSheet(f, SheetExercises, b.exerciseRow); err != nil {
			return nil, err
		}
	}

	if len(b.errors) > 0 {
		return nil, apperrors.Validation("Invalid workbook", strings.Join(b.errors, "; "))
	}
	return b.cat, nil
}

type xlsxBuilder struct {
	cat     *Catalog
	courses map[string]int
	lessons map[string]*LessonDoc
	errors  []string
}

func (b *xlsxBuilder) readSheet(f *excelize.File, sheet string, fn func(header, []string) error) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil
	}

	h := newHeader(rows[0])
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		if err := fn(h, row); err != nil {
			// i+2: one for the header, one for 1-based rows
			b.errors = append(b.errors, fmt.Sprintf("%s row %d: %v", sheet, i+2, err))
		}
	}
	return nil
}

func (b *xlsxBuilder) course(name string) *CourseDoc {
	key := strings.ToLower(name)
	if i, ok := b.courses[key]; ok {
		return &b.cat.Courses[i]
	}
	b.cat.Courses = append(b.cat.Courses, CourseDoc{Name: name})
	b.courses[key] = len(b.cat.Courses) - 1
	return &b.cat.Courses[len(b.cat.Courses)-1]
}

func (b *xlsxBuilder) courseRow(h header, row []string) error {
	name := h.cell(row, "name")
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if _, ok := b.courses[strings.ToLower(name)]; ok {
		return fmt.Errorf("course %q listed twice", name)
	}
	order, err := h.intCell(row, "order")
	if err != nil {
		return err
	}
	c := b.course(name)
	c.Description = h.cell(row, "description")
	c.Color = h.cell(row, "color")
	c.Icon = h.cell(row, "icon")
	c.Order = order
	return nil
}

func (b *xlsxBuilder) lessonRow(h header, row []string) error {
	lesson := LessonDoc{
		Key:           h.cell(row, "key"),
		Title:         h.cell(row, "title"),
		TheoryContent: h.cell(row, "theory_content"),
		Category:      h.cell(row, "category"),
		Level:         h.cell(row, "level"),
		Requires:      h.listCell(row, "requires"),
	}
	if lesson.Title == "" {
		return fmt.Errorf("title is required")
	}

	var err error
	if lesson.Order, err = h.intCell(row, "order"); err != nil {
		return err
	}
	if lesson.MasteryThreshold, err = h.floatCell(row, "mastery_threshold"); err != nil {
		return err
	}
	if lesson.XPReward, err = h.intCell(row, "xp_reward"); err != nil {
		return err
	}
	if lesson.DifficultyLevel, err = h.intCell(row, "difficulty_level"); err != nil {
		return err
	}
	if lesson.IsCheckpoint, err = h.boolCell(row, "is_checkpoint"); err != nil {
		return err
	}

	if name := h.cell(row, "course"); name != "" {
		c := b.course(name)
		c.Lessons = append(c.Lessons, lesson)
	} else {
		b.cat.Lessons = append(b.cat.Lessons, lesson)
	}
	return nil
}

func (b *xlsxBuilder) indexLessons() {
	b.cat.eachLesson(func(_ *CourseDoc, l *LessonDoc) {
		if _, ok := b.lessons[l.LessonKey()]; !ok {
			b.lessons[l.LessonKey()] = l
		}
	})
}

func (b *xlsxBuilder) exerciseRow(h header, row []string) error {
	key := h.cell(row, "lesson")
	lesson, ok := b.lessons[key]
	if !ok {
		return fmt.Errorf("unknown lesson %q", key)
	}

	ex := ExerciseDoc{
		Prompt:        h.cell(row, "prompt"),
		Type:          models.ExerciseType(strings.ToLower(h.cell(row, "type"))),
		Options:       h.listCell(row, "options"),
		CorrectAnswer: h.cell(row, "correct_answer"),
		Explanation:   h.cell(row, "explanation"),
		Difficulty:    strings.ToLower(h.cell(row, "difficulty")),
	}
	order, err := h.intCell(row, "order")
	if err != nil {
		return err
	}
	ex.Order = order
	for i, content := range h.listCell(row, "hints") {
		ex.Hints = append(ex.Hints, HintDoc{Content: content, Level: i + 1})
	}

	lesson.Exercises = append(lesson.Exercises, ex)
	return nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteTemplate writes an empty workbook with the three sheets and their
// header rows.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCourses); err != nil {
		return err
	}
	for _, name := range []string{SheetLessons, SheetExercises} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	for sheet, cols := range map[string][]string{
		SheetCourses:   CourseColumns,
		SheetLessons:   LessonColumns,
		SheetExercises: ExerciseColumns,
	} {
		if err := f.SetSheetRow(sheet, "A1", &cols); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
