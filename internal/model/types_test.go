package model

import (
	"encoding/json"
	"testing"
)

func TestKeys_PodIsolation(t *testing.T) {
	a := ChannelKey("pod-a", "1")
	b := ChannelKey("pod-ab", "1")

	if a == b {
		t.Fatal("keys for different pods must differ")
	}
	if !a.BelongsTo("pod-a") {
		t.Error("ChannelKey(pod-a) should belong to pod-a")
	}
	if b.BelongsTo("pod-a") {
		t.Error("pod-ab key must not belong to pod-a even though pod-a is a string prefix")
	}
}

func TestKeys_KindsDoNotCollide(t *testing.T) {
	keys := []Key{
		ChannelKey("p", "42"),
		MessageKey("p", "42"),
		UserKey("p", "42"),
		CommunityKey("p", "42"),
	}

	seen := make(map[Key]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"9", "10", -1},
		{"100", "99", 1},
		{"123", "123", 0},
		{"1099511627776", "1099511627775", 1},
	}

	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortMessages(t *testing.T) {
	msgs := []Message{{ID: "10"}, {ID: "2"}, {ID: "33"}, {ID: "9"}}
	SortMessages(msgs)

	want := []string{"2", "9", "10", "33"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("msgs[%d].ID = %q, want %q", i, msgs[i].ID, id)
		}
	}
}

func TestSortChannels(t *testing.T) {
	chs := []Channel{
		{ID: "3", Position: 2},
		{ID: "1", Position: 0},
		{ID: "5", Position: 1},
		{ID: "2", Position: 1},
	}
	SortChannels(chs)

	want := []string{"1", "2", "5", "3"}
	for i, id := range want {
		if chs[i].ID != id {
			t.Errorf("chs[%d].ID = %q, want %q", i, chs[i].ID, id)
		}
	}
}

func TestCommunityPatch_Apply(t *testing.T) {
	c := Community{ID: "c1", Name: "old", Description: "keep", MemberCount: 4}

	var p CommunityPatch
	if err := json.Unmarshal([]byte(`{"id":"c1","name":"new","member_count":-3}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p.Apply(&c)

	if c.Name != "new" {
		t.Errorf("Name = %q, want %q", c.Name, "new")
	}
	if c.Description != "keep" {
		t.Errorf("Description = %q, want %q", c.Description, "keep")
	}
	if c.MemberCount != 0 {
		t.Errorf("MemberCount = %d, want 0 (clamped)", c.MemberCount)
	}
}

func TestReady_Unmarshal(t *testing.T) {
	raw := `{
		"session_id": "s1",
		"user": {"id": "u1", "username": "me"},
		"heartbeat_interval": 41250,
		"communities": [{
			"id": "c1", "name": "General Chat", "member_count": 3,
			"channels": [{"id": "10", "community_id": "c1", "name": "general", "type": "text", "position": 0}],
			"roles": [{"id": "r1", "community_id": "c1", "name": "admin", "position": 1, "permissions": "8"}]
		}]
	}`

	var r Ready
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if r.HeartbeatInterval != 41250 {
		t.Errorf("HeartbeatInterval = %d, want 41250", r.HeartbeatInterval)
	}
	if len(r.Communities) != 1 {
		t.Fatalf("len(Communities) = %d, want 1", len(r.Communities))
	}
	c := r.Communities[0]
	if c.Name != "General Chat" || c.MemberCount != 3 {
		t.Errorf("community = %+v", c.Community)
	}
	if len(c.Channels) != 1 || c.Channels[0].Name != "general" {
		t.Errorf("channels = %+v", c.Channels)
	}
	if len(c.Roles) != 1 || c.Roles[0].Permissions != 8 {
		t.Errorf("roles = %+v", c.Roles)
	}
}
