// Package rpc exposes a suite over JSON-RPC 2.0 for editors and other
// front-ends.
//
// Requests are answered immediately; run methods only report whether the
// run was accepted. Progress arrives as notifications: spar/changed names a
// projection to re-read, and spar/runFinished and spar/unitFinished carry
// run reports.
package rpc

import (
	"time"

	"github.com/rlch/spar/model"
)

// Request methods.
const (
	MethodUnits         = "spar/units"
	MethodAddUnit       = "spar/addUnit"
	MethodRemoveUnit    = "spar/removeUnit"
	MethodRunAll        = "spar/runAll"
	MethodRunUnit       = "spar/runUnit"
	MethodTests         = "spar/tests"
	MethodResults       = "spar/results"
	MethodSelect        = "spar/select"
	MethodDescription   = "spar/description"
	MethodToggleVisible = "spar/toggleVisible"
)

// Notification methods.
const (
	NotifyChanged      = "spar/changed"
	NotifyRunFinished  = "spar/runFinished"
	NotifyUnitFinished = "spar/unitFinished"
)

// UnitParams names a unit.
type UnitParams struct {
	Identifier string `json:"identifier"`
}

// TestsParams filters spar/tests. An empty filter returns every test.
type TestsParams struct {
	Filter string `json:"filter,omitempty"`
}

// SelectParams picks a test. An empty unit clears the selection.
type SelectParams struct {
	Unit string `json:"unit,omitempty"`
	Name string `json:"name,omitempty"`
}

// UnitInfo describes a unit.
type UnitInfo struct {
	Identifier     string       `json:"identifier"`
	DisplayName    string       `json:"displayName"`
	Engine         string       `json:"engine"`
	Visible        bool         `json:"visible"`
	Running        bool         `json:"running"`
	Counts         model.Counts `json:"counts"`
	DiscoveryError string       `json:"discoveryError,omitempty"`
}

// ResultInfo is one raw outcome of the current run.
type ResultInfo struct {
	Unit    string    `json:"unit"`
	Test    string    `json:"test"`
	Kind    string    `json:"kind"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// AcceptedResult answers run methods.
type AcceptedResult struct {
	Accepted bool `json:"accepted"`
}

// VisibleResult answers spar/toggleVisible.
type VisibleResult struct {
	Visible bool `json:"visible"`
}

// DescriptionResult answers spar/description.
type DescriptionResult struct {
	Description string `json:"description"`
}

// ChangedParams is sent with spar/changed.
type ChangedParams struct {
	Signal model.Signal `json:"signal"`
}

// UnitReportInfo is a finished unit run.
type UnitReportInfo struct {
	RunID    string  `json:"runId,omitempty"`
	Unit     string  `json:"unit"`
	Results  int     `json:"results"`
	Rejected bool    `json:"rejected,omitempty"`
	Elapsed  float64 `json:"elapsed"`
	Error    string  `json:"error,omitempty"`
}

// RunFinishedParams is sent with spar/runFinished.
type RunFinishedParams struct {
	Ok      bool             `json:"ok"`
	Elapsed float64          `json:"elapsed"`
	Units   []UnitReportInfo `json:"units"`
}

func unitInfo(u *model.Unit) UnitInfo {
	info := UnitInfo{
		Identifier:  u.Identifier(),
		DisplayName: u.DisplayName(),
		Engine:      u.Engine(),
		Visible:     u.Visible(),
		Running:     u.Running(),
		Counts:      u.Counts(),
	}

	if err := u.DiscoveryErr(); err != nil {
		info.DiscoveryError = err.Error()
	}

	return info
}

func unitReportInfo(r model.UnitReport) UnitReportInfo {
	info := UnitReportInfo{
		RunID:    r.RunID,
		Unit:     r.Unit,
		Results:  r.Results,
		Rejected: r.Rejected,
		Elapsed:  r.Elapsed().Seconds(),
	}

	if r.Err != nil {
		info.Error = r.Err.Error()
	}

	return info
}

func runFinishedParams(r model.RunReport) RunFinishedParams {
	p := RunFinishedParams{
		Ok:      r.Ok(),
		Elapsed: r.Finished.Sub(r.Started).Seconds(),
		Units:   make([]UnitReportInfo, len(r.Units)),
	}

	for i, u := range r.Units {
		p.Units[i] = unitReportInfo(u)
	}

	return p
}
