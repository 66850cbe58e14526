// Package stats encodes the YAML documents the stats, stats-tube, stats-job
// and list-tubes* family of commands reply with (spec.md §4.5). The field
// names and "---\n" document header are grounded on
// compmaniak-go-beanstalk's Stats/TubeStats/JobStats structs and its
// yamlHead constant, which is how that client decodes these same replies.
package stats

import (
	"gopkg.in/yaml.v3"
)

var yamlHead = []byte("---\n")

// EncodeYAML renders v as a YAML document with the leading "---\n" marker
// the protocol's replies carry.
func EncodeYAML(v interface{}) ([]byte, error) {
	body, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, yamlHead...), body...), nil
}

// Global is the `stats` reply body.
type Global struct {
	CurrentJobsUrgent     uint64 `yaml:"current-jobs-urgent"`
	CurrentJobsReady      uint64 `yaml:"current-jobs-ready"`
	CurrentJobsReserved   uint64 `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed    uint64 `yaml:"current-jobs-delayed"`
	CurrentJobsBuried     uint64 `yaml:"current-jobs-buried"`
	CmdPut                uint64 `yaml:"cmd-put"`
	CmdPeek               uint64 `yaml:"cmd-peek"`
	CmdPeekReady          uint64 `yaml:"cmd-peek-ready"`
	CmdPeekDelayed        uint64 `yaml:"cmd-peek-delayed"`
	CmdPeekBuried         uint64 `yaml:"cmd-peek-buried"`
	CmdReserve            uint64 `yaml:"cmd-reserve"`
	CmdReserveWithTimeout uint64 `yaml:"cmd-reserve-with-timeout"`
	CmdReserveJob         uint64 `yaml:"cmd-reserve-job"`
	CmdDelete             uint64 `yaml:"cmd-delete"`
	CmdRelease            uint64 `yaml:"cmd-release"`
	CmdUse                uint64 `yaml:"cmd-use"`
	CmdWatch              uint64 `yaml:"cmd-watch"`
	CmdIgnore             uint64 `yaml:"cmd-ignore"`
	CmdBury               uint64 `yaml:"cmd-bury"`
	CmdKick               uint64 `yaml:"cmd-kick"`
	CmdKickJob            uint64 `yaml:"cmd-kick-job"`
	CmdTouch              uint64 `yaml:"cmd-touch"`
	CmdStats              uint64 `yaml:"cmd-stats"`
	CmdStatsJob           uint64 `yaml:"cmd-stats-job"`
	CmdStatsTube          uint64 `yaml:"cmd-stats-tube"`
	CmdListTubes          uint64 `yaml:"cmd-list-tubes"`
	CmdListTubeUsed       uint64 `yaml:"cmd-list-tube-used"`
	CmdListTubesWatched   uint64 `yaml:"cmd-list-tubes-watched"`
	CmdPauseTube          uint64 `yaml:"cmd-pause-tube"`
	JobTimeouts           uint64 `yaml:"job-timeouts"`
	TotalJobs             uint64 `yaml:"total-jobs"`
	MaxJobSize            uint64 `yaml:"max-job-size"`
	CurrentTubes          uint64 `yaml:"current-tubes"`
	CurrentConnections    uint64 `yaml:"current-connections"`
	CurrentProducers      uint64 `yaml:"current-producers"`
	CurrentWorkers        uint64 `yaml:"current-workers"`
	CurrentWaiting        uint64 `yaml:"current-waiting"`
	TotalConnections      uint64 `yaml:"total-connections"`
	Draining              bool   `yaml:"draining"`
}

// TubeDoc is the `stats-tube` reply body.
type TubeDoc struct {
	Name                string `yaml:"name"`
	CurrentJobsUrgent   uint64 `yaml:"current-jobs-urgent"`
	CurrentJobsReady    uint64 `yaml:"current-jobs-ready"`
	CurrentJobsReserved uint64 `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed  uint64 `yaml:"current-jobs-delayed"`
	CurrentJobsBuried   uint64 `yaml:"current-jobs-buried"`
	TotalJobs           uint64 `yaml:"total-jobs"`
	CurrentUsing        int    `yaml:"current-using"`
	CurrentWaiting      int    `yaml:"current-waiting"`
	CurrentWatching     int    `yaml:"current-watching"`
	CmdDelete           uint64 `yaml:"cmd-delete"`
	CmdPauseTube        uint64 `yaml:"cmd-pause-tube"`
	Pause               int64  `yaml:"pause"`
	PauseTimeLeft       int64  `yaml:"pause-time-left"`
}

// JobDoc is the `stats-job` reply body.
type JobDoc struct {
	ID       uint64 `yaml:"id"`
	Tube     string `yaml:"tube"`
	State    string `yaml:"state"`
	Pri      uint32 `yaml:"pri"`
	Age      int64  `yaml:"age"`
	Delay    int64  `yaml:"delay"`
	TTR      int64  `yaml:"ttr"`
	TimeLeft int64  `yaml:"time-left"`
	File     uint64 `yaml:"file"`
	Reserves uint64 `yaml:"reserves"`
	Timeouts uint64 `yaml:"timeouts"`
	Releases uint64 `yaml:"releases"`
	Buries   uint64 `yaml:"buries"`
	Kicks    uint64 `yaml:"kicks"`
}

// List is the reply body for list-tubes / list-tubes-watched, a bare YAML
// sequence of tube names.
type List []string
