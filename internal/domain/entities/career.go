package entities

import "time"

// CareerType distinguishes main and secondary career paths.
type CareerType string

const (
	CareerMain CareerType = "main"
	CareerSub  CareerType = "sub"
)

// IsValid reports whether the career type is known.
func (t CareerType) IsValid() bool {
	return t == CareerMain || t == CareerSub
}

// CareerStage is one level of a career progression.
type CareerStage struct {
	Level       int    `json:"level" yaml:"level"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Career is a progression track defined per project.
type Career struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Name        string        `json:"name"`
	Type        CareerType    `json:"type"`
	Description string        `json:"description,omitempty"`
	Stages      []CareerStage `json:"stages,omitempty"`
	MaxStage    int           `json:"max_stage"`
	CreatedAt   time.Time     `json:"created_at"`
}

// StageName returns the name of the given stage level, or "" if the career
// does not define it.
func (c *Career) StageName(level int) string {
	for _, s := range c.Stages {
		if s.Level == level {
			return s.Name
		}
	}
	return ""
}
