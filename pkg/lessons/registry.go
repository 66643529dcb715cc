package lessons

import (
	"embed"
	"path"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalog embed.FS

// Category groups lessons under a heading
type Category struct {
	Name    string    `yaml:"category"`
	Lessons []*Lesson `yaml:"lessons"`
}

// Registry holds every lesson, ordered by category
type Registry struct {
	categories []*Category
	byID       map[string]*Lesson
}

// ParseCategory decodes one catalog document
func ParseCategory(data []byte) (*Category, error) {
	var cat Category
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrap(err, "decode lesson catalog")
	}
	if cat.Name == "" {
		return nil, errors.New("lesson catalog without a category name")
	}
	return &cat, nil
}

// NewRegistry validates the categories and indexes their lessons by id
func NewRegistry(categories ...*Category) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Lesson)}
	for _, cat := range categories {
		for _, lesson := range cat.Lessons {
			if err := lesson.validate(); err != nil {
				return nil, err
			}
			if _, dup := r.byID[lesson.ID]; dup {
				return nil, errors.Errorf("duplicate lesson id %s", lesson.ID)
			}
			lesson.Category = cat.Name
			r.byID[lesson.ID] = lesson
		}
		r.categories = append(r.categories, cat)
	}
	return r, nil
}

// LoadRegistry builds the registry from the embedded catalog, one file per category in file name order
func LoadRegistry() (*Registry, error) {
	entries, err := catalog.ReadDir("catalog")
	if err != nil {
		return nil, errors.Wrap(err, "read lesson catalog")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	categories := make([]*Category, 0, len(names))
	for _, name := range names {
		data, err := catalog.ReadFile(path.Join("catalog", name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		cat, err := ParseCategory(data)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		categories = append(categories, cat)
	}
	return NewRegistry(categories...)
}

// Get looks a lesson up by its case-sensitive id
func (r *Registry) Get(id string) (*Lesson, bool) {
	lesson, ok := r.byID[id]
	return lesson, ok
}

// Categories returns the categories in catalog order
func (r *Registry) Categories() []*Category {
	return r.categories
}

// Lessons returns every lesson in catalog order
func (r *Registry) Lessons() []*Lesson {
	out := make([]*Lesson, 0, len(r.byID))
	for _, cat := range r.categories {
		out = append(out, cat.Lessons...)
	}
	return out
}
