// SPDX-License-Identifier: MPL-2.0

package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gauntlet-run/gauntlet/internal/dag"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// runSerial executes the plan one environment at a time in selection order,
// streaming output directly. A failed environment skips its selected
// dependents later in the order; fail-fast skips everything after the first
// failure.
func (r *Runner) runSerial(ctx context.Context, suite *envfile.Suite, planned []plannedEnv, opts RunOptions) []EnvResult {
	results := make([]EnvResult, 0, len(planned))
	// blocked maps an environment to the failed environment at the root of
	// its skip chain.
	blocked := make(map[envfile.EnvName]envfile.EnvName)
	var failFastFrom envfile.EnvName

	for _, p := range planned {
		name := p.env.Name
		var res EnvResult
		switch {
		case p.skip != "":
			res = skippedResult(name, p.skip)
		case failFastFrom != "":
			res = skippedResult(name, fmt.Sprintf("fail-fast after %q failed", failFastFrom))
		case ctx.Err() != nil:
			res = skippedResult(name, "run interrupted")
		default:
			if root, ok := blockedBy(p.env, blocked); ok {
				blocked[name] = root
				res = skippedResult(name, fmt.Sprintf("dependency %q failed", root))
			} else {
				res = r.runEnv(ctx, suite, p.env, opts, r.Stdin, r.Stdout, r.Stderr)
			}
		}

		if res.Outcome == OutcomeFailed {
			blocked[name] = name
			if opts.FailFast && failFastFrom == "" {
				failFastFrom = name
			}
		}
		results = append(results, res)
	}
	return results
}

// blockedBy reports the root cause when one of env's selected dependencies
// failed earlier in the run.
func blockedBy(env *envfile.Environment, blocked map[envfile.EnvName]envfile.EnvName) (envfile.EnvName, bool) {
	for _, dep := range env.DependsOn {
		if root, ok := blocked[dep]; ok {
			return root, true
		}
	}
	return "", false
}

func skippedResult(name envfile.EnvName, reason string) EnvResult {
	return EnvResult{Name: name, Outcome: OutcomeSkipped, Reason: reason}
}

type (
	// pnode tracks one runnable environment in the parallel scheduler.
	pnode struct {
		env  *envfile.Environment
		slot int
		// pending counts selected dependencies that have not completed yet.
		// The node enters the ready queue when it reaches zero.
		pending atomic.Int32
		// settled guarantees the node's result is written exactly once,
		// whether by running or by a skip cascade.
		settled sync.Once
	}

	// parallelRun is the shared state of one worker-pool execution.
	parallelRun struct {
		runner  *Runner
		suite   *envfile.Suite
		opts    RunOptions
		graph   *dag.Graph
		nodes   map[string]*pnode
		results []EnvResult
		ready   chan *pnode
		wg      sync.WaitGroup
		cancel  context.CancelFunc

		// outMu serializes replayed output blocks.
		outMu sync.Mutex

		ffMu   sync.Mutex
		ffFrom envfile.EnvName
	}
)

// runParallel executes the plan on a pool of workers honoring depends_on
// edges. Each environment's output is captured and replayed as one block
// when it finishes.
func (r *Runner) runParallel(ctx context.Context, suite *envfile.Suite, planned []plannedEnv, opts RunOptions, workers int) ([]EnvResult, error) {
	p := &parallelRun{
		runner:  r,
		suite:   suite,
		opts:    opts,
		graph:   dag.New(),
		nodes:   make(map[string]*pnode, len(planned)),
		results: make([]EnvResult, len(planned)),
	}

	// Plan-level skips settle immediately; the rest become graph nodes.
	var runnable []*pnode
	for i, pe := range planned {
		if pe.skip != "" {
			p.results[i] = skippedResult(pe.env.Name, pe.skip)
			continue
		}
		n := &pnode{env: pe.env, slot: i}
		p.nodes[pe.env.Name.String()] = n
		p.graph.AddNode(pe.env.Name.String())
		runnable = append(runnable, n)
	}

	// Edges only order environments that are both in the runnable set.
	// Duplicate depends_on entries collapse so the unlock accounting stays
	// one decrement per edge.
	for _, n := range runnable {
		seen := make(map[envfile.EnvName]bool, len(n.env.DependsOn))
		for _, dep := range n.env.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if _, ok := p.nodes[dep.String()]; ok {
				p.graph.AddEdge(dep.String(), n.env.Name.String())
			}
		}
	}
	for _, n := range runnable {
		n.pending.Store(int32(len(p.graph.Dependencies(n.env.Name.String()))))
	}

	// Validation catches cycles before a run normally starts; re-check so a
	// cyclic selection cannot hang the pool.
	if _, err := p.graph.TopologicalSort(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.cancel = cancel

	p.ready = make(chan *pnode, len(runnable))
	p.wg.Add(len(runnable))
	for _, n := range runnable {
		if n.pending.Load() == 0 {
			p.ready <- n
		}
	}

	if workers > len(runnable) {
		workers = len(runnable)
	}
	for i := 0; i < workers; i++ {
		go p.worker(runCtx)
	}

	p.wg.Wait()
	close(p.ready)

	return p.results, nil
}

// worker drains the ready queue until it closes.
func (p *parallelRun) worker(ctx context.Context) {
	for n := range p.ready {
		if ctx.Err() != nil {
			p.skipWithDependents(n, p.cancelReason())
			continue
		}
		p.runNode(ctx, n)
	}
}

// runNode executes one environment, replays its captured output, and either
// unlocks or skips its dependents.
func (p *parallelRun) runNode(ctx context.Context, n *pnode) {
	var buf bytes.Buffer
	res := p.runner.runEnv(ctx, p.suite, n.env, p.opts, strings.NewReader(""), &buf, &buf)
	p.replay(n.env.Name, &buf)

	name := n.env.Name.String()
	switch res.Outcome {
	case OutcomeFailed:
		if p.opts.FailFast {
			p.tripFailFast(n.env.Name)
		}
		reason := fmt.Sprintf("dependency %q failed", n.env.Name)
		if ctx.Err() != nil {
			reason = p.cancelReason()
		}
		for _, dep := range p.graph.TransitiveDependents(name) {
			p.skipNode(p.nodes[dep], reason)
		}
	default:
		// Passed, or failed with allow_failure: dependents may proceed.
		// Unlocks happen before this node settles so every queue send
		// completes before the pool can drain.
		for _, dep := range p.graph.Dependents(name) {
			node := p.nodes[dep]
			if node.pending.Add(-1) == 0 {
				p.ready <- node
			}
		}
	}

	n.settled.Do(func() {
		p.results[n.slot] = res
		p.wg.Done()
	})
}

// skipNode settles a single node as skipped.
func (p *parallelRun) skipNode(n *pnode, reason string) {
	n.settled.Do(func() {
		p.results[n.slot] = skippedResult(n.env.Name, reason)
		p.wg.Done()
	})
}

// skipWithDependents settles the node and everything downstream of it.
func (p *parallelRun) skipWithDependents(n *pnode, reason string) {
	p.skipNode(n, reason)
	for _, dep := range p.graph.TransitiveDependents(n.env.Name.String()) {
		p.skipNode(p.nodes[dep], reason)
	}
}

// tripFailFast records the first failure and cancels everything in flight.
func (p *parallelRun) tripFailFast(name envfile.EnvName) {
	p.ffMu.Lock()
	if p.ffFrom == "" {
		p.ffFrom = name
	}
	p.ffMu.Unlock()
	p.cancel()
}

// cancelReason tells fail-fast skips apart from an interrupted run.
func (p *parallelRun) cancelReason() string {
	p.ffMu.Lock()
	defer p.ffMu.Unlock()
	if p.ffFrom != "" {
		return fmt.Sprintf("fail-fast after %q failed", p.ffFrom)
	}
	return "run interrupted"
}

// replay writes an environment's captured output to the run's stdout as one
// uninterrupted block.
func (p *parallelRun) replay(name envfile.EnvName, buf *bytes.Buffer) {
	if buf.Len() == 0 {
		return
	}
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.runner.Stdout, "\n=== %s\n", name)
	buf.WriteTo(p.runner.Stdout)
}
