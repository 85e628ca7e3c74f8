package broadcast

// Event type constants for observer streams.
const (
	EventPipelinePhase = "pipeline.phase"
	EventAgentStatus   = "agent.status"
	EventWorkerOutput  = "worker.output"
)

// PipelinePhaseEvent is broadcast when a pipeline transitions phases.
type PipelinePhaseEvent struct {
	PipelineID string `json:"pipeline_id"`
	Phase      string `json:"phase"`
	ConvoyID   string `json:"convoy_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AgentStatusEvent is broadcast when an agent's status changes.
type AgentStatusEvent struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
	TaskID  string `json:"task_id,omitempty"`
}

// WorkerOutputEvent is broadcast for each line a worker process writes.
type WorkerOutputEvent struct {
	AgentID string `json:"agent_id"`
	Agent   string `json:"agent"`
	Line    string `json:"line"`
	Stream  string `json:"stream"` // "stdout" or "stderr"
}
