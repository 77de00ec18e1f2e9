package domain

// Dashboard: сводка для главного экрана консоли.
type Dashboard struct {
	Agents       AgentStats      `json:"agents"`
	Targets      TargetStats     `json:"targets"`
	Runs         RunStats        `json:"runs"`
	Capabilities CapabilityStats `json:"capabilities"`
}

type AgentStats struct {
	Total              int                 `json:"total"`
	ByStatus           map[AgentStatus]int `json:"by_status"`
	TotalInferences    int64               `json:"total_inferences"`
	AverageSuccessRate float64             `json:"average_success_rate"`
}

type TargetStats struct {
	Total      int                  `json:"total"`
	ByStatus   map[TargetStatus]int `json:"by_status"`
	Deployable int                  `json:"deployable"`
}

type RunStats struct {
	Total    int               `json:"total"`
	ByStatus map[RunStatus]int `json:"by_status"`
}

type CapabilityStats struct {
	Total     int `json:"total"`
	Installed int `json:"installed"`
}
