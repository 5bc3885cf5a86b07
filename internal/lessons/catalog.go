package lessons

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sqlquest/internal/sqlrow"
)

var (
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrCategoryNotFound = errors.New("category not found")
)

//go:embed lessons.yaml
var builtinCatalog []byte

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

type Category struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Icon        string `yaml:"icon" json:"icon"`
	Description string `yaml:"description" json:"description"`
	Order       int    `yaml:"order" json:"order"`
}

// Lesson is one exercise. Schema holds the DDL and seed statements the
// learner's query runs against; Solution is the reference query.
type Lesson struct {
	ID               string       `yaml:"id"`
	Title            string       `yaml:"title"`
	Category         string       `yaml:"category"`
	Difficulty       Difficulty   `yaml:"difficulty"`
	Description      string       `yaml:"description"`
	Hint             string       `yaml:"hint"`
	Task             string       `yaml:"task"`
	Solution         string       `yaml:"solution"`
	ExpectedColumns  []string     `yaml:"expected_columns"`
	ExpectedRowCount *int         `yaml:"expected_row_count"`
	ExpectedOutput   []sqlrow.Row `yaml:"expected_output"`
	Explanation      string       `yaml:"explanation"`
	Schema           string       `yaml:"schema"`
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
	Lessons    []Lesson   `yaml:"lessons"`
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	categories    []Category
	lessons       []Lesson
	lessonIndex   map[string]int
	categoryIndex map[string]int
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtinCatalog)
}

// MustBuiltin is Builtin for process start-up and tests.
func MustBuiltin() *Catalog {
	catalog, err := Builtin()
	if err != nil {
		panic(err)
	}
	return catalog
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode lesson catalog: %w", err)
	}
	return New(file.Categories, file.Lessons)
}

func New(categories []Category, lessons []Lesson) (*Catalog, error) {
	catalog := &Catalog{
		categories:    make([]Category, len(categories)),
		lessons:       make([]Lesson, len(lessons)),
		lessonIndex:   make(map[string]int, len(lessons)),
		categoryIndex: make(map[string]int, len(categories)),
	}
	copy(catalog.categories, categories)
	copy(catalog.lessons, lessons)

	sort.SliceStable(catalog.categories, func(i, j int) bool {
		return catalog.categories[i].Order < catalog.categories[j].Order
	})

	for idx, category := range catalog.categories {
		if strings.TrimSpace(category.ID) == "" {
			return nil, fmt.Errorf("category #%d has no id", idx)
		}
		if _, dup := catalog.categoryIndex[category.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", category.ID)
		}
		catalog.categoryIndex[category.ID] = idx
	}

	for idx, lesson := range catalog.lessons {
		if strings.TrimSpace(lesson.ID) == "" {
			return nil, fmt.Errorf("lesson #%d has no id", idx)
		}
		if _, dup := catalog.lessonIndex[lesson.ID]; dup {
			return nil, fmt.Errorf("duplicate lesson id %q", lesson.ID)
		}
		if _, ok := catalog.categoryIndex[lesson.Category]; !ok {
			return nil, fmt.Errorf("lesson %q: unknown category %q", lesson.ID, lesson.Category)
		}
		if !lesson.Difficulty.Valid() {
			return nil, fmt.Errorf("lesson %q: invalid difficulty %q", lesson.ID, lesson.Difficulty)
		}
		if strings.TrimSpace(lesson.Schema) == "" || strings.TrimSpace(lesson.Solution) == "" {
			return nil, fmt.Errorf("lesson %q: schema and solution are required", lesson.ID)
		}
		catalog.lessonIndex[lesson.ID] = idx
	}

	return catalog, nil
}

func (c *Catalog) LessonByID(id string) (Lesson, bool) {
	idx, ok := c.lessonIndex[id]
	if !ok {
		return Lesson{}, false
	}
	return c.lessons[idx], true
}

// LessonsByCategory keeps catalog order. An unknown category yields an empty slice.
func (c *Catalog) LessonsByCategory(categoryID string) []Lesson {
	out := make([]Lesson, 0)
	for _, lesson := range c.lessons {
		if lesson.Category == categoryID {
			out = append(out, lesson)
		}
	}
	return out
}

func (c *Catalog) CategoryByID(id string) (Category, bool) {
	idx, ok := c.categoryIndex[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[idx], true
}

// Categories are returned sorted by Order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

func (c *Catalog) Lessons() []Lesson {
	out := make([]Lesson, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// Next returns the lesson after id in catalog order.
func (c *Catalog) Next(id string) (Lesson, bool) {
	idx, ok := c.lessonIndex[id]
	if !ok || idx+1 >= len(c.lessons) {
		return Lesson{}, false
	}
	return c.lessons[idx+1], true
}
