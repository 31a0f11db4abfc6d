package api

import (
	"testing"

	"github.com/bytedance/sonic"

	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/domain"
)

func commandStore() *board.Store {
	s := board.NewStore(board.DefaultNoteLimit)
	s.Load([]domain.Task{
		{ID: "ATL-001", Title: "Kickoff", Status: domain.StatusInProgress, Progress: 40},
		{ID: "ATL-002", Title: "Pricing", Status: domain.StatusAtRisk, Progress: 20,
			Attachments: []domain.Attachment{{Name: "model.xlsx", Size: 2048}}},
	})
	return s
}

func command(taskID, typ, data string) domain.Command {
	cmd := domain.Command{ID: "k", IdempotencyKey: "k", TaskID: taskID, Type: typ, Timestamp: 42}
	if data != "" {
		cmd.Data = sonic.NoCopyRawMessage(data)
	}
	return cmd
}

func TestApplyCommandRejections(t *testing.T) {
	testCases := map[string]struct {
		cmd        domain.Command
		wantRule   string
		wantReason string
	}{
		"unknown_type":      {cmd: command("ATL-001", "delete-task", `{}`), wantRule: ruleInvalid, wantReason: `unsupported command type "delete-task"`},
		"missing_task":      {cmd: command("ATL-404", domain.CommandSetProgress, `{"progress":5}`), wantRule: ruleNotFound, wantReason: "task not found"},
		"bad_status":        {cmd: command("ATL-001", domain.CommandSetStatus, `{"status":"paused"}`), wantRule: ruleInvalid, wantReason: `unknown status "paused"`},
		"empty_status":      {cmd: command("ATL-001", domain.CommandSetStatus, `{}`), wantRule: ruleInvalid, wantReason: "invalid status payload"},
		"bad_progress":      {cmd: command("ATL-001", domain.CommandSetProgress, `{"progress":"half"}`), wantRule: ruleInvalid, wantReason: "invalid progress payload"},
		"blank_note":        {cmd: command("ATL-001", domain.CommandAppendNote, `{"text":"   "}`), wantRule: ruleInvalid, wantReason: "note is empty"},
		"duplicate_file":    {cmd: command("ATL-002", domain.CommandAddAttachment, `{"name":"model.xlsx","size":10}`), wantRule: board.RuleDuplicate, wantReason: `File "model.xlsx" already added`},
		"unattached_remove": {cmd: command("ATL-002", domain.CommandRemoveAttachment, `{"name":"other.pdf"}`), wantRule: ruleNotFound, wantReason: `File "other.pdf" is not attached`},
		"nameless_file":     {cmd: command("ATL-002", domain.CommandAddAttachment, `{"size":10}`), wantRule: ruleInvalid, wantReason: "invalid attachment payload"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			store := commandStore()
			res, edit := applyCommand(store, tc.cmd)
			if edit != nil || res.Applied {
				t.Fatalf("expected rejection, got %#v %#v", res, edit)
			}
			if res.Rule != tc.wantRule || res.Reason != tc.wantReason {
				t.Fatalf("got %q/%q, want %q/%q", res.Rule, res.Reason, tc.wantRule, tc.wantReason)
			}
		})
	}
}

func TestApplyCommandSetStatusNormalizes(t *testing.T) {
	store := commandStore()
	res, edit := applyCommand(store, command("ATL-001", domain.CommandSetStatus, `{"status":"Completed"}`))
	if !res.Applied || edit == nil {
		t.Fatalf("expected applied command: %#v", res)
	}
	if edit.Status != domain.StatusCompleted || edit.Progress != 100 {
		t.Fatalf("unexpected edit: %#v", edit)
	}
	if edit.CommandID != "k" || edit.Timestamp != 42 {
		t.Fatalf("edit must carry command identity: %#v", edit)
	}
	task, _ := store.Get("ATL-001")
	if task.Status != domain.StatusCompleted || task.Progress != 100 {
		t.Fatalf("store not updated: %#v", task)
	}
}

func TestApplyCommandClampsProgress(t *testing.T) {
	for in, want := range map[string]int{`{"progress":-5}`: 0, `{"progress":250}`: 100, `{"progress":55}`: 55} {
		store := commandStore()
		_, edit := applyCommand(store, command("ATL-001", domain.CommandSetProgress, in))
		if edit == nil || edit.Progress != want {
			t.Fatalf("%s: expected progress %d, got %#v", in, want, edit)
		}
		if task, _ := store.Get("ATL-001"); task.Progress != want || task.Status != domain.StatusInProgress {
			t.Fatalf("%s: unexpected task %#v", in, task)
		}
	}
}

func TestApplyCommandNotesAndAttachments(t *testing.T) {
	store := commandStore()

	_, edit := applyCommand(store, command("ATL-001", domain.CommandAppendNote, `{"text":" Kickoff held "}`))
	if edit == nil || edit.Note == nil || edit.Note.Text != "Kickoff held" || edit.Note.Date == "" {
		t.Fatalf("unexpected note edit: %#v", edit)
	}

	_, edit = applyCommand(store, command("ATL-001", domain.CommandAddAttachment, `{"name":"Agenda.PDF","size":5120,"type":"application/pdf"}`))
	if edit == nil || edit.Attachment == nil || edit.Attachment.Name != "Agenda.PDF" {
		t.Fatalf("unexpected attachment edit: %#v", edit)
	}

	_, edit = applyCommand(store, command("ATL-002", domain.CommandRemoveAttachment, `{"name":"model.xlsx"}`))
	if edit == nil || edit.Attachment == nil || edit.Attachment.Name != "model.xlsx" {
		t.Fatalf("unexpected removal edit: %#v", edit)
	}

	first, _ := store.Get("ATL-001")
	second, _ := store.Get("ATL-002")
	if len(first.Notes) != 1 || len(first.Attachments) != 1 || len(second.Attachments) != 0 {
		t.Fatalf("unexpected store state: %#v %#v", first, second)
	}
}
