package dao

// Parameter is a named List filter, e.g. NewParameter("PID", "0x2a").
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
