// Package slurm is a client for a slurmrestd-compatible resource manager
// reachable over a unix domain socket. It exposes the small surface the
// submission orchestrator needs: partition discovery with live node detail,
// idle-capacity lookup, job submission, and job state polling.
package slurm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/vk/taskgrid/internal/ctxlog"
	"resty.dev/v3"
)

const (
	// DefaultSocketPath is where slurmrestd conventionally listens.
	DefaultSocketPath = "/var/run/slurmrestd/slurmrestd.sock"

	// DefaultAPIPrefix selects the REST API version the client speaks.
	DefaultAPIPrefix = "/slurm/v0.0.40"
)

// Client talks to the resource manager over its unix socket. All queries hit
// the manager fresh; nothing is cached, since cluster state changes
// continuously.
type Client struct {
	rest   *resty.Client
	prefix string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIPrefix overrides the REST API version prefix.
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

// NewClient returns a client dialing the manager's unix socket. The URL host
// is a placeholder; every connection goes through the socket.
func NewClient(socketPath string, opts ...Option) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	rest := resty.New().
		SetBaseURL("http://slurmrestd").
		SetTransport(transport)

	c := &Client{rest: rest, prefix: DefaultAPIPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.rest.Close()
}

// Available reports whether the manager's socket exists on this host.
func Available(socketPath string) bool {
	_, err := os.Stat(socketPath)
	return err == nil
}

// ListPartitions queries all partitions and enriches each configured node
// with live detail. Nodes the manager no longer knows (404) are treated as
// absent, not fatal. Per-partition totals are aggregated from the node
// detail: a node advertising any idle state contributes all of its cpus to
// the idle count.
func (c *Client) ListPartitions(ctx context.Context) ([]Partition, error) {
	logger := ctxlog.FromContext(ctx)

	var body partitionsResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.prefix + "/partitions")
	if err != nil {
		return nil, unreachable(err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("listing partitions: manager returned %s", res.Status())
	}

	partitions := make([]Partition, 0, len(body.Partitions))
	for _, rec := range body.Partitions {
		p := Partition{Name: rec.Name}
		for _, nodeName := range expandNodeList(rec.Nodes.Configured) {
			node, err := c.nodeDetail(ctx, nodeName)
			if err != nil {
				return nil, err
			}
			if node == nil {
				logger.Debug("Node not known to manager, skipping.", "node", nodeName)
				continue
			}
			p.Nodes = append(p.Nodes, *node)
			p.TotalCPUs += node.CPUs
			p.TotalMemory += node.RealMemory
			if node.Idle() {
				p.IdleCPUs += node.CPUs
			}
		}
		partitions = append(partitions, p)
	}
	return partitions, nil
}

// nodeDetail fetches live detail for one node. A 404 yields (nil, nil).
func (c *Client) nodeDetail(ctx context.Context, name string) (*Node, error) {
	var body nodesResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.prefix + "/node/" + name)
	if err != nil {
		return nil, unreachable(err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("fetching node %q: manager returned %s", name, res.Status())
	}
	if len(body.Nodes) == 0 {
		return nil, nil
	}
	node := body.Nodes[0]
	if node.Name == "" {
		node.Name = name
	}
	return &node, nil
}

// IdleCPUs returns the aggregated idle cpu count for a named partition, or
// zero if the partition is unknown.
func (c *Client) IdleCPUs(ctx context.Context, partition string) (int, error) {
	partitions, err := c.ListPartitions(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range partitions {
		if p.Name == partition {
			return p.IdleCPUs, nil
		}
	}
	return 0, nil
}

// JobState returns the job's current state. A job the manager no longer
// tracks reports StateNotFound; an answered query with no usable state
// reports StateUnknown. Transport failures wrap ErrUnreachable.
func (c *Client) JobState(ctx context.Context, jobID int64) (JobState, error) {
	var body jobsResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.prefix + "/job/" + strconv.FormatInt(jobID, 10))
	if err != nil {
		return "", unreachable(err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return StateNotFound, nil
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("fetching job %d: manager returned %s", jobID, res.Status())
	}
	if len(body.Jobs) == 0 || body.Jobs[0].JobState == "" {
		return StateUnknown, nil
	}
	return JobState(body.Jobs[0].JobState), nil
}

// SubmitJob posts a fully parameterized job document and returns the
// manager-assigned job identifier. A response without a job id is a
// rejection and is fatal to the run; the caller never retries.
func (c *Client) SubmitJob(ctx context.Context, payload any) (int64, error) {
	var body submitResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&body).
		Post(c.prefix + "/job/submit")
	if err != nil {
		return 0, unreachable(err)
	}
	if !res.IsSuccess() {
		return 0, fmt.Errorf("job submission rejected: manager returned %s: %s", res.Status(), res.String())
	}
	if body.JobID == 0 {
		return 0, fmt.Errorf("job submission rejected: no job id in response: %s", res.String())
	}
	return body.JobID, nil
}
