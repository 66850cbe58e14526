// Package conn runs the per-connection protocol state machine: read a
// command line, dispatch it against the registry, write a reply, repeat
// (spec.md §5). It generalizes the teacher's internal/server.HandleConn from
// a one-shot "parse one HTTP/1.0 request, write one response, close" flow
// into a persistent serial command loop, the way a beanstalkd connection
// stays open across many commands instead of one request per TCP connection.
package conn

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	"github.com/beanstalkd-core/beanstalkd/internal/job"
	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
	"github.com/beanstalkd-core/beanstalkd/internal/registry"
	"github.com/beanstalkd-core/beanstalkd/internal/wire"
)

// Conn is one client's protocol state, mirroring the fields HandleConn kept
// as locals (trace id, reader/writer) plus the beanstalkd-specific session
// state the original handler had no equivalent for: the used tube and watch
// list (spec.md §4.3).
type Conn struct {
	id  job.ConnID
	nc  net.Conn
	r   *bufio.Reader
	w   *bufio.Writer
	reg *registry.Registry
	log *logrus.Entry

	using      string
	watch      map[string]bool
	isProducer bool
	isWorker   bool
}

// New wraps nc for service by Serve.
func New(nc net.Conn, reg *registry.Registry, log *logrus.Entry) *Conn {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.UUID{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Conn{
		id:    id,
		nc:    nc,
		r:     bufio.NewReader(nc),
		w:     bufio.NewWriter(nc),
		reg:   reg,
		log:   log.WithField("conn_id", id.String()),
		using: registry.DefaultTube,
		watch: map[string]bool{registry.DefaultTube: true},
	}
}

// Serve runs the command loop until the connection closes or a fatal I/O
// error occurs. It always releases the connection's reservations and
// pending reserve on the way out (spec.md §4.3).
func (c *Conn) Serve() {
	defer c.nc.Close()
	c.reg.ConnectionOpened()
	defer c.reg.ConnectionClosed()
	defer c.reg.ReleaseConnection(c.id)
	defer func() {
		if c.isProducer {
			c.reg.UnmarkProducer()
		}
		if c.isWorker {
			c.reg.UnmarkWorker()
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			c.log.WithField("panic", p).Error("connection aborted by panic")
			wire.WriteErr(c.w, protoerr.New(protoerr.InternalErr))
		}
	}()

	c.log.Debug("connection opened")
	for {
		line, err := wire.ReadLine(c.r)
		if err != nil {
			c.handleReadErr(err)
			return
		}
		if !c.dispatch(line) {
			return
		}
	}
}

// disconnectPollInterval bounds how promptly waitForReserve notices a
// half-closed receive side (spec.md §4.3); it is a polling period, not a
// deadline on the reserve itself.
const disconnectPollInterval = time.Second

// waitForReserve blocks on pending until a job is matched, the registry
// delivers a TIMED_OUT/DEADLINE_SOON outcome, or the client half-closes its
// send side. A background watcher owns c.r/c.nc exclusively while this runs;
// ReadLine's next call only happens after waitForReserve returns, by which
// point the watcher has fully exited (the pending-wins branch waits on
// watchDone before returning), so the two never touch the same bufio.Reader
// at once — the hazard a plain read-ahead goroutine would otherwise create.
func (c *Conn) waitForReserve(pending <-chan registry.WaitResult) registry.WaitResult {
	stop := make(chan struct{})
	watchDone := make(chan error, 1)
	go c.watchForDisconnect(stop, watchDone)

	select {
	case wr := <-pending:
		close(stop)
		c.nc.SetReadDeadline(time.Now())
		<-watchDone
		c.nc.SetReadDeadline(time.Time{})
		return wr
	case err := <-watchDone:
		if err == nil {
			// Peek found data already buffered ahead of this connection's
			// turn rather than a disconnect; leave it and keep waiting.
			return <-pending
		}
		c.reg.CancelWait(c.id)
		return <-pending
	}
}

// watchForDisconnect peeks at c's read side until told to stop or until Peek
// reports something other than a timeout. It sends exactly once to done,
// always, so waitForReserve can join it deterministically.
func (c *Conn) watchForDisconnect(stop chan struct{}, done chan<- error) {
	for {
		select {
		case <-stop:
			done <- nil
			return
		default:
		}
		c.nc.SetReadDeadline(time.Now().Add(disconnectPollInterval))
		if _, err := c.r.Peek(1); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			done <- err
			return
		}
		done <- nil
		return
	}
}

func (c *Conn) handleReadErr(err error) {
	var perr *protoerr.Error
	if errors.As(err, &perr) {
		wire.WriteErr(c.w, perr)
		return
	}
	if errors.Is(err, wire.ErrLineTooLong) {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return
	}
	if err != io.EOF {
		c.log.WithError(err).Debug("connection read error")
	}
}

// dispatch handles one command line; its bool return is false when the
// connection should close (quit, or an unrecoverable framing error).
func (c *Conn) dispatch(line string) bool {
	args := wire.SplitArgs(line)
	if len(args) == 0 || args[0] == "" {
		wire.WriteErr(c.w, protoerr.New(protoerr.UnknownCmd))
		return true
	}
	cmd := args[0]
	rest := args[1:]
	log := c.log.WithField("cmd", cmd)

	switch cmd {
	case "put":
		return c.cmdPut(rest)
	case "reserve":
		return c.cmdReserve()
	case "reserve-with-timeout":
		return c.cmdReserveWithTimeout(rest)
	case "reserve-job":
		return c.cmdReserveJob(rest)
	case "delete":
		return c.cmdDelete(rest)
	case "release":
		return c.cmdRelease(rest)
	case "bury":
		return c.cmdBury(rest)
	case "touch":
		return c.cmdTouch(rest)
	case "use":
		return c.cmdUse(rest)
	case "watch":
		return c.cmdWatch(rest)
	case "ignore":
		return c.cmdIgnore(rest)
	case "peek":
		return c.cmdPeek(rest)
	case "peek-ready":
		return c.cmdPeekReady()
	case "peek-delayed":
		return c.cmdPeekDelayed()
	case "peek-buried":
		return c.cmdPeekBuried()
	case "kick":
		return c.cmdKick(rest)
	case "kick-job":
		return c.cmdKickJob(rest)
	case "stats-job":
		return c.cmdStatsJob(rest)
	case "stats-tube":
		return c.cmdStatsTube(rest)
	case "stats":
		return c.cmdStats()
	case "list-tubes":
		return c.cmdListTubes()
	case "list-tube-used":
		return c.cmdListTubeUsed()
	case "list-tubes-watched":
		return c.cmdListTubesWatched()
	case "pause-tube":
		return c.cmdPauseTube(rest)
	case "quit":
		return false
	default:
		log.Debug("unknown command")
		wire.WriteErr(c.w, protoerr.New(protoerr.UnknownCmd))
		return true
	}
}

func parseUint(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

func parseUint32(s string) (uint32, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err == nil
}

func parseSeconds(s string) (time.Duration, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

func (c *Conn) watchList() []string {
	names := make([]string, 0, len(c.watch))
	for name := range c.watch {
		names = append(names, name)
	}
	return names
}

