package wire

import (
	"errors"
	"strings"

	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
)

// NameChars are the characters allowed in a tube name, per spec.md §6.
const NameChars = `-+/;.$_()0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz`

const maxNameLen = 200

var (
	errNameEmpty    = errors.New("name is empty")
	errNameBadChar  = errors.New("name has a character outside the allowed charset")
	errNameTooLong  = errors.New("name exceeds 200 bytes")
	errNameBadStart = errors.New("name must not begin with '-'")
)

// CheckTubeName validates s against spec.md §6: 1-200 bytes, charset
// `[A-Za-z0-9\-+/;.$_()]`, must not begin with '-'. Adapted from
// compmaniak-go-beanstalk's CheckName, generalized to also reject a
// leading hyphen (the wire protocol reserves it to disambiguate from
// negative numbers in the same argument position).
func CheckTubeName(s string) error {
	switch {
	case len(s) == 0:
		return &protoerr.NameError{Name: s, Err: errNameEmpty}
	case len(s) > maxNameLen:
		return &protoerr.NameError{Name: s, Err: errNameTooLong}
	case s[0] == '-':
		return &protoerr.NameError{Name: s, Err: errNameBadStart}
	case !containsOnly(s, NameChars):
		return &protoerr.NameError{Name: s, Err: errNameBadChar}
	}
	return nil
}

func containsOnly(s, chars string) bool {
	for _, c := range s {
		if !strings.ContainsRune(chars, c) {
			return false
		}
	}
	return true
}
