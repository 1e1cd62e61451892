package subtitle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"wordsync/internal/fileutil"
)

// ReadProjectFile parses a project JSON document.
func ReadProjectFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("parse project file %s: %w", path, err)
	}
	if strings.TrimSpace(project.ID) == "" {
		return nil, fmt.Errorf("project file %s: missing id", path)
	}
	seen := make(map[string]struct{}, len(project.Subtitles))
	for i, sub := range project.Subtitles {
		if strings.TrimSpace(sub.ID) == "" {
			return nil, fmt.Errorf("project file %s: subtitle %d has no id", path, i)
		}
		if _, dup := seen[sub.ID]; dup {
			return nil, fmt.Errorf("project file %s: duplicate subtitle id %q", path, sub.ID)
		}
		seen[sub.ID] = struct{}{}
	}
	return &project, nil
}

// ReadChangesFile parses a change list. Both a bare JSON array and an object
// with a "changes" field are accepted. Only explicitly accepted changes are
// reconciled: a missing status reads as pending and unknown values are
// rejected.
func ReadChangesFile(path string) ([]Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read changes file: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("changes file is empty")
	}

	var changes []Change
	if trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &changes)
	} else {
		var wrapper struct {
			Changes []Change `json:"changes"`
		}
		err = json.Unmarshal(trimmed, &wrapper)
		changes = wrapper.Changes
	}
	if err != nil {
		return nil, fmt.Errorf("parse changes file %s: %w", path, err)
	}
	for i := range changes {
		status := ChangeStatus(strings.ToLower(strings.TrimSpace(string(changes[i].Status))))
		switch status {
		case "":
			status = ChangePending
		case ChangePending, ChangeAccepted, ChangeRejected:
		default:
			return nil, fmt.Errorf("parse changes file %s: change %d: unknown status %q", path, i+1, changes[i].Status)
		}
		changes[i].Status = status
	}
	return changes, nil
}

// WriteProjectFile writes project as indented JSON, atomically.
func WriteProjectFile(path string, project *Project) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	return nil
}
