package catalog

import (
	"fmt"
	"strings"
)

const (
	fieldCourseTitle  = "course_title"
	fieldLessonNumber = "lesson_number"
	opAnd             = "$and"
)

// Filter is an equality filter over chunk metadata: {"course_title": X},
// {"lesson_number": N} or {"$and": [{...}, {...}]}. A nil Filter matches all.
type Filter map[string]any

// BuildFilter returns nil when both arguments are absent, a single predicate
// when one is present and a conjunction when both are.
func BuildFilter(courseTitle string, lessonNumber *int) Filter {
	switch {
	case courseTitle == "" && lessonNumber == nil:
		return nil
	case courseTitle != "" && lessonNumber == nil:
		return Filter{fieldCourseTitle: courseTitle}
	case courseTitle == "" && lessonNumber != nil:
		return Filter{fieldLessonNumber: *lessonNumber}
	default:
		return Filter{opAnd: []Filter{
			{fieldCourseTitle: courseTitle},
			{fieldLessonNumber: *lessonNumber},
		}}
	}
}

// Matches evaluates the filter against one chunk's metadata.
func (f Filter) Matches(meta ChunkMetadata) bool {
	for key, want := range f {
		switch key {
		case opAnd:
			clauses, _ := want.([]Filter)
			for _, clause := range clauses {
				if !clause.Matches(meta) {
					return false
				}
			}
		case fieldCourseTitle:
			title, _ := want.(string)
			if meta.CourseTitle != title {
				return false
			}
		case fieldLessonNumber:
			n, ok := want.(int)
			if !ok || meta.LessonNumber == nil || *meta.LessonNumber != n {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// sqlWhere renders the filter as a SQL predicate over course_content.
// Placeholders are numbered from next.
func (f Filter) sqlWhere(next int) (string, []any, error) {
	if len(f) == 0 {
		return "TRUE", nil, nil
	}
	var (
		parts []string
		args  []any
	)
	for key, want := range f {
		switch key {
		case opAnd:
			clauses, ok := want.([]Filter)
			if !ok {
				return "", nil, fmt.Errorf("invalid %s clause", opAnd)
			}
			for _, clause := range clauses {
				part, clauseArgs, err := clause.sqlWhere(next + len(args))
				if err != nil {
					return "", nil, err
				}
				parts = append(parts, part)
				args = append(args, clauseArgs...)
			}
		case fieldCourseTitle:
			args = append(args, want)
			parts = append(parts, fmt.Sprintf("course_title = $%d", next+len(args)-1))
		case fieldLessonNumber:
			args = append(args, want)
			parts = append(parts, fmt.Sprintf("lesson_number = $%d", next+len(args)-1))
		default:
			return "", nil, fmt.Errorf("unsupported filter field %q", key)
		}
	}
	return strings.Join(parts, " AND "), args, nil
}
