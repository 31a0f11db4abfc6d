package api

import (
	"github.com/bytedance/sonic"

	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/domain"
)

const (
	ruleInvalid  = "invalid"
	ruleNotFound = "not-found"
)

// clampProgress bounds progress input to [0,100] before it reaches the store.
func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func validStatus(s domain.Status) bool {
	if s == domain.StatusOnTrack {
		return true
	}
	for _, known := range domain.Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// applyCommand runs one command against store. It returns the edit to
// reconcile when the command changed the task.
func applyCommand(store *board.Store, cmd domain.Command) (commandResult, *domain.Edit) {
	res := commandResult{IdempotencyKey: cmd.IdempotencyKey, TaskID: cmd.TaskID, Type: cmd.Type}
	reject := func(rule, reason string) (commandResult, *domain.Edit) {
		res.Rule = rule
		res.Reason = reason
		return res, nil
	}
	edit := &domain.Edit{CommandID: cmd.ID, TaskID: cmd.TaskID, Type: cmd.Type, Timestamp: cmd.Timestamp}

	var applied bool
	switch cmd.Type {
	case domain.CommandSetStatus:
		var data domain.StatusData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil || data.Status == "" {
			return reject(ruleInvalid, "invalid status payload")
		}
		status := domain.NormalizeStatus(string(data.Status))
		if !validStatus(status) {
			return reject(ruleInvalid, "unknown status \""+string(data.Status)+"\"")
		}
		applied = store.SetStatus(cmd.TaskID, status)
		edit.Status = status
	case domain.CommandSetProgress:
		var data domain.ProgressData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
			return reject(ruleInvalid, "invalid progress payload")
		}
		edit.Progress = clampProgress(data.Progress)
		applied = store.SetProgress(cmd.TaskID, edit.Progress)
	case domain.CommandAppendNote:
		var data domain.NoteData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
			return reject(ruleInvalid, "invalid note payload")
		}
		var note domain.Note
		note, applied = store.AppendNote(cmd.TaskID, data.Text)
		if !applied {
			if _, ok := store.Get(cmd.TaskID); ok {
				return reject(ruleInvalid, "note is empty")
			}
		}
		edit.Note = &note
	case domain.CommandAddAttachment:
		var data domain.Attachment
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil || data.Name == "" {
			return reject(ruleInvalid, "invalid attachment payload")
		}
		ok, err := store.AddAttachment(cmd.TaskID, data)
		if ve, isValidation := err.(*board.ValidationError); isValidation {
			return reject(ve.Rule, ve.Reason)
		}
		applied = ok
		edit.Attachment = &data
	case domain.CommandRemoveAttachment:
		var data domain.RemoveAttachmentData
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil || data.Name == "" {
			return reject(ruleInvalid, "invalid attachment payload")
		}
		if _, ok := store.Get(cmd.TaskID); ok {
			if !store.RemoveAttachment(cmd.TaskID, data.Name) {
				return reject(ruleNotFound, "File \""+data.Name+"\" is not attached")
			}
			applied = true
		}
		edit.Attachment = &domain.Attachment{Name: data.Name}
	default:
		return reject(ruleInvalid, "unsupported command type \""+cmd.Type+"\"")
	}

	if !applied {
		return reject(ruleNotFound, "task not found")
	}
	if task, ok := store.Get(cmd.TaskID); ok {
		edit.Status = task.Status
		edit.Progress = task.Progress
	}
	res.Applied = true
	return res, edit
}
