package slurm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var bracketRe = regexp.MustCompile(`^(.*)\[(\d+)-(\d+)\](.*)$`)

// expandBrackets expands a bracketed host range like "worker-[1-4]" into
// ["worker-1", ..., "worker-4"]. Names without a bracket expression come back
// unchanged as a single-element slice.
func expandBrackets(name string) []string {
	m := bracketRe.FindStringSubmatch(name)
	if m == nil {
		return []string{name}
	}
	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[3])
	if end < start {
		return []string{name}
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, fmt.Sprintf("%s%d%s", m[1], i, m[4]))
	}
	return out
}

// expandNodeList expands a comma-separated configured-nodes string,
// applying bracket expansion to each token.
func expandNodeList(configured string) []string {
	var out []string
	for _, token := range strings.Split(configured, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		out = append(out, expandBrackets(token)...)
	}
	return out
}
