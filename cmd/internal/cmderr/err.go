package cmderr

// CmdErr wraps an error already reported to the user (as opposed to a CLI
// parsing error from cobra/pflag). Used to decide whether to print usage
// on exit.
type CmdErr struct {
	Err error
}

func (e CmdErr) Error() string {
	return e.Err.Error()
}

// github.com/pkg/errors causer interface
func (e CmdErr) Cause() error {
	return e.Err
}

// github.com/pkg/errors Unwrap interface
func (e CmdErr) Unwrap() error {
	return e.Err
}
