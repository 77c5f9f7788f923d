package dag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const sampleYAML = `
owner: ops
name: nightly-report
nodes:
  - id: fetch
    kind: http
    config:
      url: https://example.com/report
  - id: notify
    kind: notification
    config:
      message: done
edges:
  - source: fetch
    target: notify
schedule:
  kind: cron
  cronExpr: "0 2 * * *"
  enabled: true
`

func TestParser_ParseYAML(t *testing.T) {
	p := NewParser()
	d, err := p.ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML() error: %v", err)
	}
	if d.Name != "nightly-report" || len(d.Graph.Nodes) != 2 || len(d.Graph.Edges) != 1 {
		t.Fatalf("parsed dag = %+v", d)
	}
	if d.Schedule.Kind != models.ScheduleCron || d.Schedule.CronExpr != "0 2 * * *" {
		t.Errorf("schedule = %+v, want cron 0 2 * * *", d.Schedule)
	}
}

func TestParser_ParseYAML_UnknownNodeKindRejected(t *testing.T) {
	p := NewParser()
	_, err := p.ParseYAML([]byte(`
owner: ops
name: bad
nodes:
  - id: a
    kind: carrier-pigeon
`))
	if err == nil {
		t.Fatal("expected error for unknown node kind")
	}
}

func TestParser_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "nightly.yaml"), []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a dag"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	dags, err := p.LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory() error: %v", err)
	}
	if len(dags) != 1 {
		t.Fatalf("len(dags) = %d, want 1 (README.md should be skipped)", len(dags))
	}
}

func TestParser_LoadDirectory_ReportsBadFileWithoutAbortingRest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{not valid json`), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	dags, err := p.LoadDirectory(dir)
	if err == nil {
		t.Fatal("expected error describing the bad file")
	}
	if len(dags) != 1 {
		t.Fatalf("len(dags) = %d, want 1 good dag despite the bad file", len(dags))
	}
}
