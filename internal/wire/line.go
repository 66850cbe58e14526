// Package wire implements the beanstalkd line protocol's byte-level framing:
// reading CRLF-terminated command lines and length-prefixed job bodies, and
// writing CRLF-terminated replies. The strict-CRLF bufio.Reader line-reading
// idiom is adapted from the teacher's internal/http10.ParseRequest, which
// read an HTTP/1.0 request line the same way; this package generalizes it
// from a one-shot request line to a persistent stream of commands.
package wire

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
)

// MaxCommandLine is the longest a command line (including the trailing
// CRLF) may be before it is rejected as BAD_FORMAT (spec.md §5).
const MaxCommandLine = 224

// ErrLineTooLong marks a command line that exceeded MaxCommandLine.
var ErrLineTooLong = errors.New("command line exceeds 224 bytes")

// ReadLine reads one CRLF-terminated line from r, stripping the trailing
// CRLF. Mirrors http10.ParseRequest's strict suffix check: a line ending in
// bare "\n" without a preceding "\r" is EXPECTED_CRLF, not BAD_FORMAT,
// because the client spoke some other framing entirely (spec.md §5).
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if len(line) > MaxCommandLine {
			return "", ErrLineTooLong
		}
		return "", err
	}
	if len(line) > MaxCommandLine {
		return "", ErrLineTooLong
	}
	if !strings.HasSuffix(line, "\r\n") {
		return "", protoerr.New(protoerr.ExpectedCRLF)
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

// ReadBody reads exactly n body bytes followed by a CRLF terminator, the
// shape every put command's payload takes (spec.md §4.1). A malformed
// terminator is EXPECTED_CRLF; per spec.md §4.3 the stream is resynchronized
// by discarding up to the next CRLF before returning that error, so the
// caller's next ReadLine starts on a real command line again. A non-nil,
// non-*protoerr.Error return (e.g. the stream closed mid-body or mid-resync)
// means resynchronization itself failed and the connection must be closed.
func ReadBody(r *bufio.Reader, n int) ([]byte, error) {
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	var crlf [2]byte
	if _, err := io.ReadFull(r, crlf[:]); err != nil {
		return body, err
	}
	if crlf != [2]byte{'\r', '\n'} {
		if err := resyncToCRLF(r, crlf[1] == '\r'); err != nil {
			return body, err
		}
		return body, protoerr.New(protoerr.ExpectedCRLF)
	}
	return body, nil
}

// resyncToCRLF discards bytes up to and including the next CRLF pair.
// prevCR carries whether the byte just consumed by the caller was '\r', so a
// CRLF split across the caller's read and this scan is still recognized.
func resyncToCRLF(r *bufio.Reader, prevCR bool) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' && prevCR {
			return nil
		}
		prevCR = b == '\r'
	}
}
