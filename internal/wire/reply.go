package wire

import (
	"bufio"
	"strconv"

	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
)

// WriteLine writes s followed by CRLF, the bare-word reply shape used for
// INSERTED, OK-without-a-body, and error replies alike (spec.md §5).
// Mirrors http10.write's role as the one place every reply funnels through.
func WriteLine(w *bufio.Writer, s string) error {
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// WriteErr writes the wire text for a protoerr.Code, ignoring any attached
// Msg: the text protocol's error replies are bare status words, never
// free-form detail (spec.md §5).
func WriteErr(w *bufio.Writer, e *protoerr.Error) error {
	return WriteLine(w, string(e.Code))
}

// WriteJob writes a reply that carries a job body: "<word> <id> <bytes>\r\n"
// followed by body and a trailing CRLF, the shape RESERVED/FOUND replies
// share (spec.md §5).
func WriteJob(w *bufio.Writer, word string, id uint64, body []byte) error {
	if _, err := w.WriteString(word); err != nil {
		return err
	}
	if _, err := w.WriteString(" "); err != nil {
		return err
	}
	if _, err := w.WriteString(strconv.FormatUint(id, 10)); err != nil {
		return err
	}
	if _, err := w.WriteString(" "); err != nil {
		return err
	}
	if _, err := w.WriteString(strconv.Itoa(len(body))); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// WriteYAML writes an "OK <bytes>\r\n<doc>\r\n" reply, the shape stats and
// list-tubes* replies share (spec.md §4.5); doc is a YAML document without
// its own trailing CRLF.
func WriteYAML(w *bufio.Writer, doc []byte) error {
	if _, err := w.WriteString("OK "); err != nil {
		return err
	}
	if _, err := w.WriteString(strconv.Itoa(len(doc))); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(doc); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
