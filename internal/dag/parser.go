package dag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Parser handles parsing DAG definitions (the node/edge graph, schedule
// variant, and retry policy) from YAML or JSON authoring files.
type Parser struct {
	validator *Validator
}

// NewParser creates a new DAG parser.
func NewParser() *Parser {
	return &Parser{validator: NewValidator()}
}

type dagFile struct {
	ID          string          `json:"id" yaml:"id"`
	Owner       string          `json:"owner" yaml:"owner"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Nodes       []nodeFile      `json:"nodes" yaml:"nodes"`
	Edges       []edgeFile      `json:"edges" yaml:"edges"`
	Schedule    scheduleFile    `json:"schedule" yaml:"schedule"`
	RetryPolicy retryPolicyFile `json:"retryPolicy" yaml:"retryPolicy"`
	Active      *bool           `json:"active" yaml:"active"`
}

type nodeFile struct {
	ID          string                 `json:"id" yaml:"id"`
	Kind        string                 `json:"kind" yaml:"kind"`
	DisplayName string                 `json:"displayName" yaml:"displayName"`
	Config      map[string]interface{} `json:"config" yaml:"config"`
}

type edgeFile struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

type scheduleFile struct {
	Kind            string `json:"kind" yaml:"kind"`
	CronExpr        string `json:"cronExpr,omitempty" yaml:"cronExpr,omitempty"`
	Timezone        string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	IntervalSeconds int    `json:"intervalSeconds,omitempty" yaml:"intervalSeconds,omitempty"`
	At              string `json:"at,omitempty" yaml:"at,omitempty"`
	StartDate       string `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate         string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Enabled         bool   `json:"enabled" yaml:"enabled"`
}

type retryPolicyFile struct {
	MaxAttempts int    `json:"maxAttempts" yaml:"maxAttempts"`
	BackoffMs   int    `json:"backoffMs" yaml:"backoffMs"`
	Strategy    string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// ParseYAMLFile parses a DAG definition from a YAML file.
func (p *Parser) ParseYAMLFile(path string) (*models.DAG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseYAML(data)
}

// ParseYAML parses a DAG definition from YAML bytes.
func (p *Parser) ParseYAML(data []byte) (*models.DAG, error) {
	var df dagFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return p.convertToDAG(&df)
}

// ParseJSONFile parses a DAG definition from a JSON file.
func (p *Parser) ParseJSONFile(path string) (*models.DAG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseJSON(data)
}

// ParseJSON parses a DAG definition from JSON bytes.
func (p *Parser) ParseJSON(data []byte) (*models.DAG, error) {
	var df dagFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return p.convertToDAG(&df)
}

// LoadDirectory parses every .yaml/.yml/.json file directly under dir,
// the on-disk authoring format an operator without access to a DAG-CRUD
// API (spec §1, non-goal) uses to register DAGs at process startup.
// It returns as many successfully parsed DAGs as it can; a single bad
// file is reported but does not abort the rest of the directory.
func (p *Parser) LoadDirectory(dir string) ([]*models.DAG, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dag definitions dir: %w", err)
	}

	var dags []*models.DAG
	var errsFound []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		var d *models.DAG
		var parseErr error
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			d, parseErr = p.ParseYAMLFile(path)
		case ".json":
			d, parseErr = p.ParseJSONFile(path)
		default:
			continue
		}
		if parseErr != nil {
			errsFound = append(errsFound, fmt.Sprintf("%s: %v", entry.Name(), parseErr))
			continue
		}
		dags = append(dags, d)
	}

	if len(errsFound) > 0 {
		return dags, fmt.Errorf("failed to parse %d definition(s): %s", len(errsFound), strings.Join(errsFound, "; "))
	}
	return dags, nil
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (p *Parser) convertToDAG(df *dagFile) (*models.DAG, error) {
	now := time.Now()

	nodes := make([]models.Node, 0, len(df.Nodes))
	for _, nf := range df.Nodes {
		kind, err := parseNodeKind(nf.Kind)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nf.ID, err)
		}
		cfg := nf.Config
		if cfg == nil {
			cfg = map[string]interface{}{}
		}
		nodes = append(nodes, models.Node{ID: nf.ID, Kind: kind, DisplayName: nf.DisplayName, Config: cfg})
	}

	edges := make([]models.Edge, 0, len(df.Edges))
	for _, ef := range df.Edges {
		edges = append(edges, models.Edge{Source: ef.Source, Target: ef.Target})
	}

	schedule, err := convertSchedule(df.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	retryPolicy := models.DefaultRetryPolicy()
	if df.RetryPolicy.MaxAttempts > 0 {
		retryPolicy.MaxAttempts = df.RetryPolicy.MaxAttempts
		if df.RetryPolicy.BackoffMs > 0 {
			retryPolicy.Backoff = time.Duration(df.RetryPolicy.BackoffMs) * time.Millisecond
		}
		if df.RetryPolicy.Strategy != "" {
			retryPolicy.Strategy = df.RetryPolicy.Strategy
		}
	}

	active := true
	if df.Active != nil {
		active = *df.Active
	}

	d := &models.DAG{
		ID:          df.ID,
		Owner:       df.Owner,
		Name:        df.Name,
		Description: df.Description,
		Graph:       models.Graph{Nodes: nodes, Edges: edges},
		Schedule:    schedule,
		RetryPolicy: retryPolicy,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.validator.Validate(d); err != nil {
		return nil, fmt.Errorf("DAG validation failed: %w", err)
	}

	return d, nil
}

func convertSchedule(sf scheduleFile) (models.Schedule, error) {
	s := models.Schedule{Enabled: sf.Enabled}

	switch sf.Kind {
	case "", "manual":
		s.Kind = models.ScheduleManual
	case "cron":
		if sf.CronExpr == "" {
			return s, fmt.Errorf("cron schedule requires cronExpr")
		}
		s.Kind = models.ScheduleCron
		s.CronExpr = sf.CronExpr
		s.Timezone = sf.Timezone
		if s.Timezone == "" {
			s.Timezone = "UTC"
		}
	case "interval":
		if sf.IntervalSeconds <= 0 {
			return s, fmt.Errorf("interval schedule requires intervalSeconds > 0")
		}
		s.Kind = models.ScheduleInterval
		s.IntervalSeconds = sf.IntervalSeconds
	case "once":
		if sf.At == "" {
			return s, fmt.Errorf("once schedule requires at")
		}
		at, err := parseFlexibleTime(sf.At)
		if err != nil {
			return s, fmt.Errorf("invalid at: %w", err)
		}
		s.Kind = models.ScheduleOnce
		s.At = &at
	default:
		return s, fmt.Errorf("unknown schedule kind: %s", sf.Kind)
	}

	if sf.StartDate != "" {
		t, err := parseFlexibleTime(sf.StartDate)
		if err != nil {
			return s, fmt.Errorf("invalid startDate: %w", err)
		}
		s.StartDate = &t
	}
	if sf.EndDate != "" {
		t, err := parseFlexibleTime(sf.EndDate)
		if err != nil {
			return s, fmt.Errorf("invalid endDate: %w", err)
		}
		s.EndDate = &t
	}

	return s, nil
}

func parseNodeKind(kindStr string) (models.NodeKind, error) {
	switch models.NodeKind(kindStr) {
	case models.NodeKindHTTP, models.NodeKindEmail, models.NodeKindDatabase,
		models.NodeKindScript, models.NodeKindFile, models.NodeKindWebhook,
		models.NodeKindDelay, models.NodeKindNotification, models.NodeKindTransform:
		return models.NodeKind(kindStr), nil
	default:
		return "", fmt.Errorf("unknown node kind: %s", kindStr)
	}
}
