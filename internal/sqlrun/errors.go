package sqlrun

type Kind string

const (
	KindSchemaLoad Kind = "schema_load"
	KindExecution  Kind = "execution"
	KindTimeout    Kind = "timeout"
)

// ExecError is a failure reported by the engine while loading a schema or
// running the learner's statement. Error returns the engine message as is,
// since that is what learners see.
type ExecError struct {
	Kind Kind
	Err  error
}

func (e *ExecError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
