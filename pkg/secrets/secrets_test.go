package secrets

import (
	"context"
	"testing"
)

func TestResourceName(t *testing.T) {
	got := ResourceName("my-project", "GITHUB_WEBHOOK_SECRET")
	want := "projects/my-project/secrets/GITHUB_WEBHOOK_SECRET/versions/latest"
	if got != want {
		t.Errorf("ResourceName() = %q, want %q", got, want)
	}
}

func TestNewRequiresProject(t *testing.T) {
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Error("New() without project succeeded")
	}
}

func TestCloseWithoutClient(t *testing.T) {
	if err := (&Manager{}).Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
