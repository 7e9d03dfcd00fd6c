package nest

// Row is one flat input record: column name -> scalar value. A nil value
// marks the column as absent for that row. Rows are never modified.
type Row map[string]any

// Entry is one hydrated object: field name -> scalar, Entry, []Entry or nil.
type Entry map[string]any

// Property is a schema node. It is implemented only by Scalar, Single and
// Collection (and pointers to them).
type Property interface {
	PropertyName() string
	property()
}

// Scalar maps Column of the input row to the Name field of the entry.
type Scalar struct {
	Name       string
	Column     string
	Identifier bool
}

// Single is a nested object built from the current row only.
type Single struct {
	Name       string
	Properties []Property
}

// Collection is a nested list of objects deduplicated by the identifier
// scalars among Properties.
type Collection struct {
	Name       string
	Properties []Property
}

func (s Scalar) PropertyName() string     { return s.Name }
func (s Single) PropertyName() string     { return s.Name }
func (c Collection) PropertyName() string { return c.Name }

func (Scalar) property()     {}
func (Single) property()     {}
func (Collection) property() {}

// ID declares an identifier scalar.
func ID(name, column string) Scalar {
	return Scalar{Name: name, Column: column, Identifier: true}
}

// Column declares a plain scalar.
func Column(name, column string) Scalar {
	return Scalar{Name: name, Column: column}
}

// HasOne declares a nested single object.
func HasOne(name string, props ...Property) Single {
	return Single{Name: name, Properties: props}
}

// HasMany declares a nested collection.
func HasMany(name string, props ...Property) Collection {
	return Collection{Name: name, Properties: props}
}

// Identifiers returns the identifier scalars among props, in declaration
// order. The result may be empty.
func Identifiers(props []Property) []Scalar {
	var ids []Scalar
	for _, p := range props {
		s, ok := asScalar(p)
		if ok && s.Identifier {
			ids = append(ids, s)
		}
	}
	return ids
}

// asScalar accepts both Scalar and a non-nil *Scalar.
func asScalar(p Property) (Scalar, bool) {
	switch v := p.(type) {
	case Scalar:
		return v, true
	case *Scalar:
		if v != nil {
			return *v, true
		}
	}
	return Scalar{}, false
}
