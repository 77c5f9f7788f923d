package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// FileExecutor is the "file" node kind (spec §4.2): read/write/append/
// delete/copy/exists against the local filesystem.
type FileExecutor struct{}

// NewFileExecutor creates a new file executor.
func NewFileExecutor() *FileExecutor {
	return &FileExecutor{}
}

func (e *FileExecutor) Kind() models.NodeKind { return models.NodeKindFile }

func (e *FileExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	op, _ := config["operation"].(string)
	path, _ := config["path"].(string)
	if path == "" {
		return nil, errs.New(errs.KindValidation, "file task requires a path", nil)
	}

	switch op {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to read file: %v", err), err)
		}
		return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"content": string(data)}}, nil

	case "write", "append":
		content, _ := config["content"].(string)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to create parent directories: %v", err), err)
		}
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if op == "append" {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to open file: %v", err), err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to write file: %v", err), err)
		}
		return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"bytesWritten": len(content)}}, nil

	case "delete":
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to delete file: %v", err), err)
		}
		return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"deleted": true}}, nil

	case "copy":
		dest, _ := config["destination"].(string)
		if dest == "" {
			return nil, errs.New(errs.KindValidation, "file copy requires a destination", nil)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to create parent directories: %v", err), err)
		}
		if err := copyFile(path, dest); err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to copy file: %v", err), err)
		}
		return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"destination": dest}}, nil

	case "exists":
		_, err := os.Stat(path)
		return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"exists": err == nil}}, nil

	default:
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("unsupported file operation %q", op), nil)
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
