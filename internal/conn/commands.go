package conn

import (
	"errors"
	"strconv"

	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
	"github.com/beanstalkd-core/beanstalkd/internal/registry"
	"github.com/beanstalkd-core/beanstalkd/internal/wire"
)

func (c *Conn) markProducer() {
	if !c.isProducer {
		c.isProducer = true
		c.reg.MarkProducer()
	}
}

// replyBodyReadErr reports a wire.ReadBody failure: a resynchronized
// EXPECTED_CRLF keeps the connection open (its bool is true), but any other
// error means resynchronization itself failed, so the connection must be
// closed per spec.md §5.
func (c *Conn) replyBodyReadErr(err error) bool {
	var perr *protoerr.Error
	if !errors.As(err, &perr) {
		return false
	}
	wire.WriteErr(c.w, perr)
	return true
}

func (c *Conn) markWorker() {
	if !c.isWorker {
		c.isWorker = true
		c.reg.MarkWorker()
	}
}

// cmdPut implements "put <pri> <delay> <ttr> <bytes>\r\n<data>\r\n"
// (spec.md §4.1).
func (c *Conn) cmdPut(args []string) bool {
	c.markProducer()
	if len(args) != 4 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	pri, ok1 := parseUint32(args[0])
	delay, ok2 := parseSeconds(args[1])
	ttr, ok3 := parseSeconds(args[2])
	n, ok4 := parseUint(args[3])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if int(n) > c.reg.MaxJobSize() {
		// Body must still be drained off the wire before replying, so the
		// next command line starts where the client expects (spec.md §5).
		if _, err := wire.ReadBody(c.r, int(n)); err != nil {
			return c.replyBodyReadErr(err)
		}
		wire.WriteErr(c.w, protoerr.New(protoerr.JobTooBig))
		return true
	}
	body, err := wire.ReadBody(c.r, int(n))
	if err != nil {
		return c.replyBodyReadErr(err)
	}
	id, buried, perr := c.reg.Put(c.using, pri, delay, ttr, body, nil)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	if buried {
		wire.WriteJob(c.w, "BURIED", id, nil)
		return true
	}
	wire.WriteLine(c.w, "INSERTED "+itoa(id))
	return true
}

func (c *Conn) cmdReserve() bool {
	c.markWorker()
	res := c.reg.Reserve(c.id, c.watchList(), false, 0)
	return c.finishReserve(res)
}

func (c *Conn) cmdReserveWithTimeout(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	d, ok := parseSeconds(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	c.markWorker()
	res := c.reg.Reserve(c.id, c.watchList(), true, d)
	return c.finishReserve(res)
}

func (c *Conn) cmdReserveJob(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	c.markWorker()
	if perr := c.reg.ReserveJob(c.id, id); perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	jv, perr := c.reg.Peek(id)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	wire.WriteJob(c.w, "RESERVED", jv.ID, jv.Body)
	return true
}

// finishReserve waits on res.Pending until the scheduler or another command
// matches a job, times it out, delivers DEADLINE_SOON, or the client
// half-closes its send side (spec.md §4.2-4.3); waitForReserve is what
// watches for the last case.
func (c *Conn) finishReserve(res registry.ReserveResult) bool {
	if res.Err != nil {
		wire.WriteErr(c.w, res.Err)
		return true
	}
	if res.Job != nil {
		wire.WriteJob(c.w, "RESERVED", res.Job.ID, res.Job.Body)
		return true
	}

	wr := c.waitForReserve(res.Pending)
	if wr.Err != nil {
		wire.WriteErr(c.w, wr.Err)
		return true
	}
	wire.WriteJob(c.w, "RESERVED", wr.Job.ID, wr.Job.Body)
	return true
}

func (c *Conn) cmdDelete(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if perr := c.reg.Delete(c.id, id); perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	wire.WriteLine(c.w, "DELETED")
	return true
}

func (c *Conn) cmdRelease(args []string) bool {
	if len(args) != 3 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok1 := parseUint(args[0])
	pri, ok2 := parseUint32(args[1])
	delay, ok3 := parseSeconds(args[2])
	if !ok1 || !ok2 || !ok3 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	perr, buried := c.reg.Release(c.id, id, pri, delay, nil)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	if buried {
		wire.WriteLine(c.w, "BURIED")
		return true
	}
	wire.WriteLine(c.w, "RELEASED")
	return true
}

func (c *Conn) cmdBury(args []string) bool {
	if len(args) != 2 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok1 := parseUint(args[0])
	pri, ok2 := parseUint32(args[1])
	if !ok1 || !ok2 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if perr := c.reg.Bury(c.id, id, pri); perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	wire.WriteLine(c.w, "BURIED")
	return true
}

func (c *Conn) cmdTouch(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if perr := c.reg.Touch(c.id, id); perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	wire.WriteLine(c.w, "TOUCHED")
	return true
}

func (c *Conn) cmdUse(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if err := wire.CheckTubeName(args[0]); err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	old := c.using
	c.using = args[0]
	c.reg.SetUsedTube(old, c.using)
	wire.WriteLine(c.w, "USING "+c.using)
	return true
}

func (c *Conn) cmdWatch(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if err := wire.CheckTubeName(args[0]); err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if !c.watch[args[0]] {
		c.watch[args[0]] = true
		c.reg.Watch(args[0])
	}
	wire.WriteLine(c.w, "WATCHING "+itoa(uint64(len(c.watch))))
	return true
}

func (c *Conn) cmdIgnore(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if len(c.watch) == 1 && c.watch[args[0]] {
		wire.WriteErr(c.w, protoerr.New(protoerr.NotIgnored))
		return true
	}
	if c.watch[args[0]] {
		delete(c.watch, args[0])
		c.reg.Unwatch(args[0])
	}
	wire.WriteLine(c.w, "WATCHING "+itoa(uint64(len(c.watch))))
	return true
}

// Every peek variant replies with the same "FOUND" word regardless of the
// job's state (spec.md §4.5); only the selection differs.
func (c *Conn) writeJobView(jv registry.JobView) {
	wire.WriteJob(c.w, "FOUND", jv.ID, jv.Body)
}

func (c *Conn) cmdPeek(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	jv, perr := c.reg.Peek(id)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	c.writeJobView(jv)
	return true
}

func (c *Conn) cmdPeekReady() bool {
	jv, perr := c.reg.PeekReady(c.using)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	c.writeJobView(jv)
	return true
}

func (c *Conn) cmdPeekDelayed() bool {
	jv, perr := c.reg.PeekDelayed(c.using)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	c.writeJobView(jv)
	return true
}

func (c *Conn) cmdPeekBuried() bool {
	jv, perr := c.reg.PeekBuried(c.using)
	if perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	c.writeJobView(jv)
	return true
}

func (c *Conn) cmdKick(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	bound, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	n := c.reg.Kick(c.using, int(bound))
	wire.WriteLine(c.w, "KICKED "+itoa(uint64(n)))
	return true
}

func (c *Conn) cmdKickJob(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if perr := c.reg.KickJob(id); perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	wire.WriteLine(c.w, "KICKED")
	return true
}

func (c *Conn) cmdPauseTube(args []string) bool {
	if len(args) != 2 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	d, ok := parseSeconds(args[1])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	if perr := c.reg.PauseTube(args[0], d); perr != nil {
		wire.WriteErr(c.w, perr)
		return true
	}
	wire.WriteLine(c.w, "PAUSED")
	return true
}

func itoa(n uint64) string {
	return strconv.FormatUint(n, 10)
}
