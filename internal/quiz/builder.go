package quiz

// Builder collects a quiz piece by piece and validates it once in Build.
type Builder struct {
	def Definition
}

func NewBuilder(title, description string) *Builder {
	return &Builder{def: Definition{Title: title, Description: description}}
}

func (b *Builder) ID(id string) *Builder {
	b.def.ID = id
	return b
}

// TimeLimitMinutes sets the limit the way the authoring form asks for it.
func (b *Builder) TimeLimitMinutes(minutes int) *Builder {
	b.def.TimeLimit = minutes * 60
	return b
}

func (b *Builder) TimeLimitSeconds(seconds int) *Builder {
	b.def.TimeLimit = seconds
	return b
}

func (b *Builder) AddQuestion(text string, options []string, correct, points int, category string) *Builder {
	b.def.Questions = append(b.def.Questions, Question{
		Text:     text,
		Options:  append([]string(nil), options...),
		Correct:  correct,
		Points:   points,
		Category: category,
	})
	return b
}

// Build returns a validated copy of the collected definition.
func (b *Builder) Build() (*Definition, error) {
	d := b.def.Clone()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
