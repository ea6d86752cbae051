// Package metrics exposes the engine's Prometheus instrumentation: node
// transitions, tool calls, LLM structured-output retries, and checkpoint
// writes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the engine's metric collectors. Construct one with New
// and register it with a prometheus.Registerer at startup.
type Registry struct {
	NodeTransitions  *prometheus.CounterVec
	ToolCalls        *prometheus.CounterVec
	LLMRetries       prometheus.Counter
	CheckpointWrites *prometheus.CounterVec
}

// New builds a Registry with its collectors created but not yet registered.
func New() *Registry {
	return &Registry{
		NodeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "node_transitions_total",
			Help:      "Number of graph node transitions, labeled by node name.",
		}, []string{"node"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "tool_calls_total",
			Help:      "Number of MCP tool invocations, labeled by server and outcome.",
		}, []string{"server", "outcome"}),
		LLMRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "llm_structured_retries_total",
			Help:      "Number of structured-output retry attempts across all calls.",
		}),
		CheckpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "checkpoint_writes_total",
			Help:      "Number of checkpoint store writes, labeled by outcome.",
		}, []string{"outcome"}),
	}
}

// MustRegister registers every collector in r with reg, panicking on
// duplicate registration as prometheus.MustRegister does.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.NodeTransitions, r.ToolCalls, r.LLMRetries, r.CheckpointWrites)
}
