package conn

import (
	"github.com/beanstalkd-core/beanstalkd/internal/protoerr"
	"github.com/beanstalkd-core/beanstalkd/internal/stats"
	"github.com/beanstalkd-core/beanstalkd/internal/wire"
)

func (c *Conn) cmdStats() bool {
	g := c.reg.GlobalStats()
	doc := stats.Global{
		CmdPut:                g.Counters.CmdPut,
		CmdPeek:               g.Counters.CmdPeek,
		CmdPeekReady:          g.Counters.CmdPeekReady,
		CmdPeekDelayed:        g.Counters.CmdPeekDelayed,
		CmdPeekBuried:         g.Counters.CmdPeekBuried,
		CmdReserve:            g.Counters.CmdReserve,
		CmdReserveWithTimeout: g.Counters.CmdReserveWithTimeout,
		CmdReserveJob:         g.Counters.CmdReserveJob,
		CmdDelete:             g.Counters.CmdDelete,
		CmdRelease:            g.Counters.CmdRelease,
		CmdUse:                g.Counters.CmdUse,
		CmdWatch:              g.Counters.CmdWatch,
		CmdIgnore:             g.Counters.CmdIgnore,
		CmdBury:               g.Counters.CmdBury,
		CmdKick:               g.Counters.CmdKick,
		CmdKickJob:            g.Counters.CmdKickJob,
		CmdTouch:              g.Counters.CmdTouch,
		CmdStats:              g.Counters.CmdStats,
		CmdStatsJob:           g.Counters.CmdStatsJob,
		CmdStatsTube:          g.Counters.CmdStatsTube,
		CmdListTubes:          g.Counters.CmdListTubes,
		CmdListTubeUsed:       g.Counters.CmdListTubeUsed,
		CmdListTubesWatched:   g.Counters.CmdListTubesWatched,
		CmdPauseTube:          g.Counters.CmdPauseTube,
		JobTimeouts:           g.Counters.JobTimeouts,
		TotalJobs:             g.Counters.TotalJobs,
		MaxJobSize:            uint64(g.MaxJobSize),
		CurrentTubes:          g.CurrentTubes,
		CurrentConnections:    g.Counters.CurrentConnections,
		CurrentProducers:      g.Counters.CurrentProducers,
		CurrentWorkers:        g.Counters.CurrentWorkers,
		CurrentWaiting:        g.Counters.CurrentWaiting,
		TotalConnections:      g.Counters.TotalConnections,
		Draining:              g.Draining,
	}
	body, err := stats.EncodeYAML(doc)
	if err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.InternalErr))
		return true
	}
	wire.WriteYAML(c.w, body)
	return true
}

func (c *Conn) cmdStatsTube(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	ts, ok := c.reg.StatsTube(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.NotFound))
		return true
	}
	pause := int64(0)
	if ts.Paused {
		pause = ts.PauseTimeLeftSeconds
	}
	doc := stats.TubeDoc{
		Name:                ts.Name,
		CurrentJobsUrgent:   ts.Breakdown.Urgent,
		CurrentJobsReady:    ts.Breakdown.Ready,
		CurrentJobsReserved: ts.Breakdown.Reserved,
		CurrentJobsDelayed:  ts.Breakdown.Delayed,
		CurrentJobsBuried:   ts.Breakdown.Buried,
		TotalJobs:           ts.TotalJobs,
		CurrentUsing:        ts.CurrentUsing,
		CurrentWaiting:      ts.CurrentWaiting,
		CurrentWatching:     ts.CurrentWatching,
		CmdDelete:           ts.CmdDelete,
		CmdPauseTube:        ts.CmdPauseTube,
		Pause:               pause,
		PauseTimeLeft:       ts.PauseTimeLeftSeconds,
	}
	body, err := stats.EncodeYAML(doc)
	if err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.InternalErr))
		return true
	}
	wire.WriteYAML(c.w, body)
	return true
}

func (c *Conn) cmdStatsJob(args []string) bool {
	if len(args) != 1 {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	id, ok := parseUint(args[0])
	if !ok {
		wire.WriteErr(c.w, protoerr.New(protoerr.BadFormat))
		return true
	}
	js, found := c.reg.StatsJob(id)
	if !found {
		wire.WriteErr(c.w, protoerr.New(protoerr.NotFound))
		return true
	}
	doc := stats.JobDoc{
		ID:       js.ID,
		Tube:     js.Tube,
		State:    js.State.String(),
		Pri:      js.Pri,
		Age:      js.AgeSeconds,
		Delay:    int64(js.Delay.Seconds()),
		TTR:      int64(js.TTR.Seconds()),
		TimeLeft: js.TimeLeftSeconds,
		Reserves: js.Counters.Reserves,
		Timeouts: js.Counters.Timeouts,
		Releases: js.Counters.Releases,
		Buries:   js.Counters.Buries,
		Kicks:    js.Counters.Kicks,
	}
	body, err := stats.EncodeYAML(doc)
	if err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.InternalErr))
		return true
	}
	wire.WriteYAML(c.w, body)
	return true
}

func (c *Conn) cmdListTubes() bool {
	names := c.reg.ListTubes()
	body, err := stats.EncodeYAML(stats.List(names))
	if err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.InternalErr))
		return true
	}
	wire.WriteYAML(c.w, body)
	return true
}

func (c *Conn) cmdListTubeUsed() bool {
	c.reg.CmdListTubeUsed()
	wire.WriteLine(c.w, "USING "+c.using)
	return true
}

func (c *Conn) cmdListTubesWatched() bool {
	c.reg.CmdListTubesWatched()
	body, err := stats.EncodeYAML(stats.List(c.watchList()))
	if err != nil {
		wire.WriteErr(c.w, protoerr.New(protoerr.InternalErr))
		return true
	}
	wire.WriteYAML(c.w, body)
	return true
}
