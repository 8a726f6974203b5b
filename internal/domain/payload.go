package domain

import (
	"bytes"
	"encoding/json"
)

// OptionsPayload is the structured content of workflow_option messages and of
// the default offer-of-options reply.
type OptionsPayload struct {
	AIMessage string   `json:"ai_message"`
	Options   []Option `json:"options"`
}

// Option is either a plain suggestion string or a workflow template entry.
type Option struct {
	Text     string
	Workflow *WorkflowOption
}

type WorkflowOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Dir         string `json:"dir"`
	Workflow    string `json:"workflow"`
}

func TextOption(text string) Option {
	return Option{Text: text}
}

func (o Option) MarshalJSON() ([]byte, error) {
	if o.Workflow != nil {
		return json.Marshal(o.Workflow)
	}
	return json.Marshal(o.Text)
}

func (o *Option) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		o.Workflow = nil
		return json.Unmarshal(data, &o.Text)
	}
	var w WorkflowOption
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	o.Text = ""
	o.Workflow = &w
	return nil
}

// NodeInfo describes a graph node, installed or installable.
type NodeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	GithubURL   string `json:"github_url"`
}

// NodeSearchPayload is the structured content of node_search messages.
type NodeSearchPayload struct {
	ExistingNodes    []NodeInfo `json:"existing_nodes"`
	NonExistingNodes []NodeInfo `json:"non_existing_nodes"`
}

// WorkflowTemplate is a named graph document offered as a workflow option.
type WorkflowTemplate struct {
	Name        string
	Description string
	Thumbnail   string
	Dir         string

	// Graph is the raw JSON graph document, passed through untouched.
	Graph string
}
