package media

import "testing"

func TestGetMediaCapsUnionsAcrossResources(t *testing.T) {
	r := NewRegistry()
	r.SetResourceCaps("friend@example.com", "laptop", CapsAudio)
	r.SetResourceCaps("friend@example.com", "phone", CapsVideo)

	caps := r.GetMediaCaps("friend@example.com")
	if caps&CapsAudio == 0 || caps&CapsVideo == 0 {
		t.Fatalf("expected union of both resources' caps, got %v", caps)
	}
}

func TestUIMaskRestrictsReportedCaps(t *testing.T) {
	r := NewRegistry()
	r.SetResourceCaps("friend@example.com", "laptop", CapsAudio|CapsVideo)
	r.SetUIMask(CapsAudio)

	caps := r.GetMediaCaps("friend@example.com")
	if caps&CapsVideo != 0 {
		t.Fatal("expected UI mask to suppress video capability")
	}
	if caps&CapsAudio == 0 {
		t.Fatal("expected UI mask to still allow audio capability")
	}
}

func TestRemoveResourceDropsItsCaps(t *testing.T) {
	r := NewRegistry()
	r.SetResourceCaps("friend@example.com", "laptop", CapsAudio)
	r.SetResourceCaps("friend@example.com", "phone", CapsVideo)
	r.RemoveResource("friend@example.com", "laptop")

	caps := r.GetMediaCaps("friend@example.com")
	if caps&CapsAudio != 0 {
		t.Fatal("expected removed resource's caps dropped from union")
	}
	if caps&CapsVideo == 0 {
		t.Fatal("expected remaining resource's caps preserved")
	}
}

func TestCanInitiateRequiresMatchingCaps(t *testing.T) {
	if CanInitiate(CapsVideo, SessionAudio) {
		t.Fatal("expected audio session to require audio caps")
	}
	if !CanInitiate(CapsAudio|CapsVideo, SessionAudioVideo) {
		t.Fatal("expected audio+video caps to satisfy an audio-video session")
	}
}
