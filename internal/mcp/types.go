package mcp

// --- Tool Arguments ---

type ParamArgs struct {
	Label     string   `json:"label" jsonschema:"Edge label to follow (e.g. 'knows')"`
	Direction string   `json:"direction,omitempty" jsonschema:"Scan direction: out, in or both. Defaults to the label's configured direction"`
	Limit     int      `json:"limit,omitempty" jsonschema:"Max edges kept per vertex (0 = no limit)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"Drop edges scoring below this value. Omit to keep every score"`
	Where     string   `json:"where,omitempty" jsonschema:"jq boolean expression over {src, tgt, label, direction, weight, ts, props}"`
}

type StepArgs struct {
	Params []ParamArgs `json:"params" jsonschema:"Edge scans run from every frontier vertex in this step"`
	Retain bool        `json:"retain,omitempty" jsonschema:"Keep this step's edges in the result"`
	Dedup  string      `json:"dedup,omitempty" jsonschema:"Duplicate target policy: raw, first, sum or max"`
}

type TraverseArgs struct {
	Start     []string   `json:"start" jsonschema:"Start vertices as service/column/id"`
	Steps     []StepArgs `json:"steps" jsonschema:"Traversal steps, executed in order"`
	TimeoutMs int64      `json:"timeout_ms,omitempty" jsonschema:"Overall timeout in milliseconds"`
}

type NeighborsArgs struct {
	Vertex    string `json:"vertex" jsonschema:"Vertex as service/column/id"`
	Label     string `json:"label" jsonschema:"Edge label to follow"`
	Direction string `json:"direction,omitempty" jsonschema:"out, in or both"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Max number of edges (default 10)"`
}

type ListBackendsArgs struct{}

// --- Tool Results ---

type EdgeView struct {
	Src       string  `json:"src"`
	Tgt       string  `json:"tgt"`
	Label     string  `json:"label"`
	Direction string  `json:"direction"`
	Score     float64 `json:"score"`
	Step      int     `json:"step"`
}

type TraverseResult struct {
	TraversalID    string     `json:"traversal_id"`
	Edges          []EdgeView `json:"edges"`
	FailedRequests int        `json:"failed_requests"`
	Partial        bool       `json:"partial"`
}

type ListBackendsResult struct {
	Backends []string `json:"backends"`
}
