package transcript

import "testing"

func TestStage_CanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to Stage
		want     bool
	}{
		{StageIntroduction, StageAnnouncement, true},
		{StageIntroduction, StageRoleplay, true},
		{StageAnnouncement, StageRoleplay, true},
		{StageAnnouncement, StageIntroduction, false},
		{StageRoleplay, StageAnnouncement, false},
		{StageRoleplay, StageRoleplay, false},
		{StageIntroduction, StageIntroduction, false},
	}
	for _, c := range cases {
		if got := c.from.CanAdvanceTo(c.to); got != c.want {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTranscript_EntriesReturnsCopy(t *testing.T) {
	var tr Transcript
	tr.Append(Utterance{Role: RoleAgent, Text: "salam"})
	entries := tr.Entries()
	entries[0].Text = "mutated"
	if tr.Entries()[0].Text != "salam" {
		t.Fatal("Entries must return a copy")
	}
}

func TestTranscript_AgentTurns(t *testing.T) {
	var tr Transcript
	tr.Append(Utterance{Role: RoleCustomer, Text: "a"})
	tr.Append(Utterance{Role: RoleAgent, Text: "b"})
	tr.Append(Utterance{Role: RoleAgent, Text: "c"})
	if got := tr.AgentTurns(); got != 2 {
		t.Fatalf("AgentTurns = %d, want 2", got)
	}
	if got := tr.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
}
