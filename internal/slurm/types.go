package slurm

import (
	"encoding/json"
	"strings"
)

// StateList is a node state tag list. The manager reports state either as a
// single string or as an array of flags, so both wire shapes decode into the
// same type.
type StateList []string

// UnmarshalJSON accepts either "IDLE" or ["IDLE", "DRAIN"].
func (s *StateList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StateList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StateList(many)
	return nil
}

// Has reports whether the state list contains the given tag,
// case-insensitively.
func (s StateList) Has(tag string) bool {
	for _, st := range s {
		if strings.EqualFold(st, tag) {
			return true
		}
	}
	return false
}

func (s StateList) String() string {
	return strings.ToUpper(strings.Join(s, " "))
}

// Node is the live detail record for a single cluster node. Fields the
// manager omits decode to their zero values.
type Node struct {
	Name           string    `json:"name"`
	CPUs           int       `json:"cpus"`
	RealMemory     int64     `json:"real_memory"`
	Sockets        int       `json:"sockets"`
	CoresPerSocket int       `json:"cores_per_socket"`
	ThreadsPerCore int       `json:"threads_per_core"`
	State          StateList `json:"state"`
}

// Idle reports whether the node currently advertises idle capacity. A node
// that is even partly idle counts all of its cpus as idle, matching how the
// manager reports mixed states.
func (n *Node) Idle() bool {
	return n.State.Has("IDLE")
}

// Partition is a named group of nodes with aggregated capacity. The
// aggregates are computed from live node detail at query time and are never
// cached across invocations.
type Partition struct {
	Name        string
	Nodes       []Node
	TotalCPUs   int
	IdleCPUs    int
	TotalMemory int64
}

// JobState is the manager's job state vocabulary. Only a small terminal
// subset matters to the orchestrator; everything else keeps the poll loop
// running.
type JobState string

const (
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
	StateCancelled JobState = "CANCELLED"
	StateTimeout   JobState = "TIMEOUT"

	// StateNotFound means the manager no longer tracks the job. It is a
	// normal terminal outcome, not a lookup failure.
	StateNotFound JobState = "NOT_FOUND"

	// StateUnknown means the manager answered but reported no usable state.
	StateUnknown JobState = "UNKNOWN"
)

// Terminal reports whether no further job progress can occur in this state.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout, StateNotFound:
		return true
	}
	return false
}

// Wire shapes for the manager's JSON responses.

type partitionsResponse struct {
	Partitions []partitionRecord `json:"partitions"`
}

type partitionRecord struct {
	Name  string         `json:"name"`
	Nodes partitionNodes `json:"nodes"`
}

type partitionNodes struct {
	Configured string `json:"configured"`
}

type nodesResponse struct {
	Nodes []Node `json:"nodes"`
}

type jobsResponse struct {
	Jobs []jobRecord `json:"jobs"`
}

type jobRecord struct {
	JobState string `json:"job_state"`
}

type submitResponse struct {
	JobID int64 `json:"job_id"`
}
