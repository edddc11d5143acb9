package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"frameworks/coursebook/internal/catalog"
)

var (
	titlePattern      = regexp.MustCompile(`(?i)^Course Title:\s*(.+)$`)
	linkPattern       = regexp.MustCompile(`(?i)^Course Link:\s*(.+)$`)
	instructorPattern = regexp.MustCompile(`(?i)^Course Instructor:\s*(.+)$`)
	lessonPattern     = regexp.MustCompile(`(?i)^Lesson\s+(\d+):\s*(.+)$`)
	lessonLinkPattern = regexp.MustCompile(`(?i)^Lesson Link:\s*(.+)$`)
)

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Supported reports whether path has an extension the processor reads.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Processor turns course documents into a Course and its content chunks.
type Processor struct {
	chunker *Chunker
}

func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{chunker: NewChunker(chunkSize, chunkOverlap)}
}

func (p *Processor) ProcessFile(path string) (*catalog.Course, []catalog.CourseChunk, error) {
	if !Supported(path) {
		return nil, nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	course, chunks := p.Parse(filepath.Base(path), string(data))
	return course, chunks, nil
}

type lessonBlock struct {
	number int
	title  string
	link   string
	lines  []string
}

// Parse reads the three header lines and the "Lesson N: title" blocks that
// follow. The file name is the title when the header has none.
func (p *Processor) Parse(fileName, content string) (*catalog.Course, []catalog.CourseChunk) {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(content), "\r\n", "\n"), "\n")

	course := &catalog.Course{Title: fileName}
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		first := strings.TrimSpace(lines[0])
		if m := titlePattern.FindStringSubmatch(first); m != nil {
			course.Title = strings.TrimSpace(m[1])
		} else {
			course.Title = first
		}
	}
	for i := 1; i < len(lines) && i < 4; i++ {
		line := strings.TrimSpace(lines[i])
		if m := linkPattern.FindStringSubmatch(line); m != nil {
			course.CourseLink = strings.TrimSpace(m[1])
		} else if m := instructorPattern.FindStringSubmatch(line); m != nil {
			course.Instructor = strings.TrimSpace(m[1])
		}
	}

	start := 3
	if len(lines) > 3 && strings.TrimSpace(lines[3]) == "" {
		start = 4
	}
	if start > len(lines) {
		start = len(lines)
	}

	var blocks []*lessonBlock
	var current *lessonBlock
	var preamble []string
	body := lines[start:]
	for i := 0; i < len(body); i++ {
		line := body[i]
		if m := lessonPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			number, _ := strconv.Atoi(m[1])
			current = &lessonBlock{number: number, title: strings.TrimSpace(m[2])}
			if i+1 < len(body) {
				if lm := lessonLinkPattern.FindStringSubmatch(strings.TrimSpace(body[i+1])); lm != nil {
					current.link = strings.TrimSpace(lm[1])
					i++
				}
			}
			blocks = append(blocks, current)
			continue
		}
		if current == nil {
			preamble = append(preamble, line)
			continue
		}
		current.lines = append(current.lines, line)
	}

	var chunks []catalog.CourseChunk
	if len(blocks) == 0 {
		text := strings.TrimSpace(strings.Join(preamble, "\n"))
		for _, piece := range p.chunker.Chunk(text) {
			chunks = append(chunks, catalog.CourseChunk{
				Content:     piece,
				CourseTitle: course.Title,
				ChunkIndex:  len(chunks),
			})
		}
		return course, chunks
	}

	for idx, block := range blocks {
		text := strings.TrimSpace(strings.Join(block.lines, "\n"))
		if text == "" {
			continue
		}
		course.Lessons = append(course.Lessons, catalog.Lesson{
			Number: block.number,
			Title:  block.title,
			Link:   block.link,
		})
		last := idx == len(blocks)-1
		for i, piece := range p.chunker.Chunk(text) {
			switch {
			case last:
				piece = fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, block.number, piece)
			case i == 0:
				piece = fmt.Sprintf("Lesson %d content: %s", block.number, piece)
			}
			chunks = append(chunks, catalog.CourseChunk{
				Content:      piece,
				CourseTitle:  course.Title,
				LessonNumber: catalog.IntPtr(block.number),
				ChunkIndex:   len(chunks),
			})
		}
	}
	return course, chunks
}
