package service

import "github.com/noah-isme/sma-enrollment-wizard/internal/models"

// cascadeRules lists the identifier fields invalidated by a change of each
// hierarchy selector. Monetary fields are never listed.
var cascadeRules = map[FieldPath][]FieldPath{
	FieldAcademicPeriod: {FieldCourse, FieldLevel, FieldClass, FieldContract},
	FieldCourse:         {FieldLevel, FieldClass, FieldContract},
	FieldLevel:          {FieldClass, FieldContract},
}

// DownstreamOf returns the fields cleared when path changes.
func DownstreamOf(path FieldPath) []FieldPath {
	return append([]FieldPath(nil), cascadeRules[path]...)
}

// CascadeListener keeps the period > course > level > class hierarchy
// consistent by clearing downstream selections whenever a user changes an
// upstream one.
func CascadeListener() FormListener {
	return func(form *WizardForm, change FieldChange) {
		if change.Source != SourceUser || !change.Changed {
			return
		}
		if downstream, ok := cascadeRules[change.Path]; ok {
			form.ClearDownstream(downstream...)
		}
	}
}

// SelectionTag is the hierarchy selection active when a catalog lookup was issued.
type SelectionTag struct {
	PeriodID string `json:"periodId"`
	CourseID string `json:"courseId"`
	LevelID  string `json:"levelId"`
}

// SelectionOf extracts the current selection from billing data.
func SelectionOf(b models.Billing) SelectionTag {
	return SelectionTag{PeriodID: b.AcademicPeriodID, CourseID: b.CourseID, LevelID: b.LevelID}
}

// Matches reports whether a result tagged with t still applies to billing b.
func (t SelectionTag) Matches(b models.Billing) bool {
	return t == SelectionOf(b)
}

// CoursesEnabled reports whether course options can be looked up.
func (t SelectionTag) CoursesEnabled() bool { return t.PeriodID != "" }

// LevelsEnabled reports whether level options can be derived.
func (t SelectionTag) LevelsEnabled() bool { return t.PeriodID != "" && t.CourseID != "" }

// ClassesEnabled reports whether class options can be looked up.
func (t SelectionTag) ClassesEnabled() bool { return t.LevelsEnabled() && t.LevelID != "" }

// CatalogSnapshot is the catalog data fetched for one selection.
type CatalogSnapshot struct {
	Tag     SelectionTag
	Periods []models.AcademicPeriod
	Courses []models.Course
	Classes []models.ClassGroup
}

// CascadeOptions are the selectable values for each hierarchy level.
type CascadeOptions struct {
	Tag      SelectionTag            `json:"tag"`
	Periods  []models.AcademicPeriod `json:"periods"`
	Courses  []models.Course         `json:"courses"`
	Levels   []models.Level          `json:"levels"`
	Classes  []models.ClassGroup     `json:"classes"`
	Degraded bool                    `json:"degraded"`
}

// ResolveOptions narrows snapshot to the option sets valid for sel. Levels are
// taken from the selected course; nothing is fetched here.
func ResolveOptions(snapshot CatalogSnapshot, sel SelectionTag) CascadeOptions {
	opts := CascadeOptions{
		Tag:     sel,
		Periods: append([]models.AcademicPeriod{}, snapshot.Periods...),
		Courses: []models.Course{},
		Levels:  []models.Level{},
		Classes: []models.ClassGroup{},
	}
	if !sel.CoursesEnabled() {
		return opts
	}
	for _, course := range snapshot.Courses {
		if course.PeriodID != sel.PeriodID {
			continue
		}
		opts.Courses = append(opts.Courses, course)
		if course.ID == sel.CourseID {
			opts.Levels = append(opts.Levels, course.Levels...)
		}
	}
	if !sel.ClassesEnabled() || !containsLevel(opts.Levels, sel.LevelID) {
		return opts
	}
	for _, class := range snapshot.Classes {
		if class.LevelID == sel.LevelID && class.PeriodID == sel.PeriodID {
			opts.Classes = append(opts.Classes, class)
		}
	}
	return opts
}

// FindLevel returns the level with id among the course options.
func FindLevel(courses []models.Course, courseID, levelID string) (models.Level, bool) {
	for _, course := range courses {
		if course.ID != courseID {
			continue
		}
		for _, level := range course.Levels {
			if level.ID == levelID {
				return level, true
			}
		}
	}
	return models.Level{}, false
}

func containsLevel(levels []models.Level, id string) bool {
	for _, l := range levels {
		if l.ID == id {
			return true
		}
	}
	return false
}
