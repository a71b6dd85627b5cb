// Package roster loads a declared set of agents and registers them through
// any relay backend.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"coralrelay/pkg/facade"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

// File is the on-disk roster shape:
//
//	agents:
//	  - name: agent_x
//	    capabilities: [search]
type File struct {
	Agents []types.Agent `json:"agents" yaml:"agents" validate:"required,min=1,dive"`
}

// Outcome is the registration result for one roster entry.
type Outcome struct {
	Agent   string
	Message string
	Err     error
}

// Load reads a roster file. .yaml and .yml use YAML, anything else JSON.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read roster %s: %w", path, err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes roster bytes according to ext.
func Parse(data []byte, ext string) (File, error) {
	var file File

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return File{}, fmt.Errorf("parse roster yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &file); err != nil {
			return File{}, fmt.Errorf("parse roster json: %w", err)
		}
	}

	if err := relay.NewValidator("validate", relay.CategoryInvalidInput).Struct(file); err != nil {
		return File{}, fmt.Errorf("invalid roster: %w", err)
	}

	return file, nil
}

// Apply registers every agent in order. A failed entry does not stop the rest.
func Apply(ctx context.Context, backend facade.Backend, file File) []Outcome {
	outcomes := make([]Outcome, 0, len(file.Agents))
	for _, agent := range file.Agents {
		response, err := backend.RegisterAgent(ctx, types.RegisterAgentRequest{
			AgentName:    agent.Name,
			Capabilities: agent.Capabilities,
		})
		outcomes = append(outcomes, Outcome{Agent: agent.Name, Message: response.Message, Err: err})
	}

	return outcomes
}

// Failed counts outcomes that carry an error.
func Failed(outcomes []Outcome) int {
	count := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			count++
		}
	}

	return count
}
