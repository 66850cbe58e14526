// Package protoerr models the closed set of wire-visible outcomes the
// beanstalkd text protocol can report, the way the beanstalkd client
// library models its server errors as typed values instead of raw
// strings (see compmaniak-go-beanstalk's err.go / ConnError).
package protoerr

// Code is a wire-visible protocol error or status. It is distinct from
// a Go error: some Code values are not failures (e.g. TimedOut and
// Buried are ordinary outcomes), they are simply replies that are not a
// bare "OK"-shaped value.
type Code string

const (
	BadFormat    Code = "BAD_FORMAT"
	UnknownCmd   Code = "UNKNOWN_COMMAND"
	OutOfMemory  Code = "OUT_OF_MEMORY"
	InternalErr  Code = "INTERNAL_ERROR"
	Draining     Code = "DRAINING"
	JobTooBig    Code = "JOB_TOO_BIG"
	ExpectedCRLF Code = "EXPECTED_CRLF"
	NotFound     Code = "NOT_FOUND"
	NotIgnored   Code = "NOT_IGNORED"
	TimedOut     Code = "TIMED_OUT"
	DeadlineSoon Code = "DEADLINE_SOON"
	Buried       Code = "BURIED"
)

// Error adapts a Code to the error interface so handlers can return it
// through normal Go error-plumbing (e.g. wrapped with fmt.Errorf %w)
// while the dispatcher still recovers the original Code for framing.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Msg
}

func New(c Code) *Error { return &Error{Code: c} }

func Newf(c Code, msg string) *Error { return &Error{Code: c, Msg: msg} }

// NameError reports a malformed tube name, mirroring CheckName's
// NameError from compmaniak-go-beanstalk's name.go.
type NameError struct {
	Name string
	Err  error
}

func (e *NameError) Error() string { return e.Err.Error() + ": " + e.Name }

func (e *NameError) Unwrap() error { return e.Err }
