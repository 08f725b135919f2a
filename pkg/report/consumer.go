package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Consumer incrementally reads a report directory.
// It tracks update sequence numbers so callers only re-fetch flow
// details that changed since the last poll.
type Consumer struct {
	reportDir     string
	lastGlobalSeq uint64
	lastFlowSeq   map[string]uint64
}

// NewConsumer creates a Consumer for a report directory.
func NewConsumer(reportDir string) *Consumer {
	return &Consumer{
		reportDir:   reportDir,
		lastFlowSeq: make(map[string]uint64),
	}
}

// Poll reads the index and returns the IDs of flows that changed since
// the previous poll, along with the current index.
func (c *Consumer) Poll() ([]string, *Index, error) {
	index, err := c.ReadIndex()
	if err != nil {
		return nil, nil, err
	}

	if index.UpdateSeq <= c.lastGlobalSeq {
		return nil, index, nil
	}
	c.lastGlobalSeq = index.UpdateSeq

	var changed []string
	for _, f := range index.Flows {
		if f.UpdateSeq > c.lastFlowSeq[f.ID] {
			changed = append(changed, f.ID)
			c.lastFlowSeq[f.ID] = f.UpdateSeq
		}
	}

	return changed, index, nil
}

// ReadIndex reads the current index file.
func (c *Consumer) ReadIndex() (*Index, error) {
	return ReadIndex(filepath.Join(c.reportDir, "report.json"))
}

// ReadFlow reads the detail file for a flow.
func (c *Consumer) ReadFlow(flowID string) (*FlowDetail, error) {
	return readFlowDetail(filepath.Join(c.reportDir, "flows", flowID+".json"))
}

// Reset clears change tracking so the next Poll reports everything.
func (c *Consumer) Reset() {
	c.lastGlobalSeq = 0
	c.lastFlowSeq = make(map[string]uint64)
}

// ReadIndex reads a report index from path.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// readFlowDetail reads a flow detail file.
func readFlowDetail(path string) (*FlowDetail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var detail FlowDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ReadReport reads the index and all flow details from a report directory.
// The returned details align one to one with index.Flows; an unreadable
// detail file yields an empty placeholder so the slices stay zippable.
func ReadReport(reportDir string) (*Index, []FlowDetail, error) {
	index, err := ReadIndex(filepath.Join(reportDir, "report.json"))
	if err != nil {
		return nil, nil, err
	}

	flows := make([]FlowDetail, len(index.Flows))
	for i, entry := range index.Flows {
		detail, err := readFlowDetail(filepath.Join(reportDir, entryDataFile(entry)))
		if err != nil {
			flows[i] = FlowDetail{ID: entry.ID, Name: entry.Name, SourceFile: entry.SourceFile}
			continue
		}
		flows[i] = *detail
	}

	return index, flows, nil
}

// entryDataFile returns the detail path for an entry, deriving it from
// the flow ID when the index predates the DataFile field.
func entryDataFile(entry FlowEntry) string {
	if entry.DataFile != "" {
		return entry.DataFile
	}
	return filepath.Join("flows", entry.ID+".json")
}

// Recover fixes up an index left behind by an interrupted run.
// Non-terminal flows are resolved from their detail files: fully passed
// commands mean the flow passed, anything still in progress means the
// flow was cut short and is marked failed. The index is only rewritten
// when something actually changed.
func Recover(reportDir string) error {
	indexPath := filepath.Join(reportDir, "report.json")
	index, err := ReadIndex(indexPath)
	if err != nil {
		return err
	}

	changed := false
	for i := range index.Flows {
		entry := &index.Flows[i]
		if entry.Status.IsTerminal() {
			continue
		}

		status := StatusFailed
		detail, err := readFlowDetail(filepath.Join(reportDir, entryDataFile(*entry)))
		if err == nil {
			status = inferStatus(detail.Commands)
		}

		if status == StatusRunning {
			status = StatusFailed
		}
		if status == StatusFailed && entry.Error == nil {
			msg := "Flow interrupted"
			entry.Error = &msg
		}
		entry.Status = status
		changed = true
	}

	if !changed {
		return nil
	}

	now := time.Now()
	index.Summary = summarizeFlows(index.Flows)
	index.Status = overallStatus(index.Flows)
	index.LastUpdated = now
	if index.EndTime == nil {
		index.EndTime = &now
	}
	index.UpdateSeq++

	return atomicWriteJSON(indexPath, index)
}

// inferStatus derives a flow status from its command statuses.
// Anything not clearly finished reads as running, which Recover then
// treats as interrupted.
func inferStatus(commands []Command) Status {
	if len(commands) == 0 {
		return StatusFailed
	}

	allPassed := true
	for _, cmd := range commands {
		switch cmd.Status {
		case StatusFailed:
			return StatusFailed
		case StatusPassed:
		default:
			allPassed = false
		}
	}

	if allPassed {
		return StatusPassed
	}
	return StatusRunning
}

// summarizeFlows aggregates flow statuses into a Summary.
func summarizeFlows(flows []FlowEntry) Summary {
	var s Summary
	for _, f := range flows {
		s.Total++
		switch f.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// overallStatus determines the run status from flow statuses.
func overallStatus(flows []FlowEntry) Status {
	hasFailure := false
	allComplete := true

	for _, f := range flows {
		if f.Status == StatusFailed {
			hasFailure = true
		}
		if !f.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		return StatusRunning
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}
