package patching

import (
	"testing"
	"time"

	"github.com/archmachina/winpatch/internal/wua"
)

func TestFilterByAgeNegativeThresholdEqualsPositive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	updates := []wua.Update{
		{ID: "old", LastDeploymentChangeTime: now.AddDate(0, 0, -30)},
		{ID: "recent", LastDeploymentChangeTime: now.AddDate(0, 0, -7)},
		{ID: "new", LastDeploymentChangeTime: now.AddDate(0, 0, -1)},
	}

	pos := FilterByAge(updates, 14, now)
	neg := FilterByAge(updates, -14, now)

	if len(pos) != 1 || pos[0].ID != "old" {
		t.Fatalf("unexpected positive-threshold result: %+v", pos)
	}
	if len(neg) != len(pos) || neg[0].ID != pos[0].ID {
		t.Fatalf("negative threshold diverged: %+v vs %+v", neg, pos)
	}
}

func TestFilterByAgeBoundaryIsExcluded(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -14)

	updates := []wua.Update{
		{ID: "exact", LastDeploymentChangeTime: cutoff},
		{ID: "just-older", LastDeploymentChangeTime: cutoff.Add(-time.Second)},
		{ID: "just-newer", LastDeploymentChangeTime: cutoff.Add(time.Second)},
	}

	filtered := FilterByAge(updates, 14, now)
	if len(filtered) != 1 || filtered[0].ID != "just-older" {
		t.Fatalf("expected only just-older, got %+v", filtered)
	}
}

func TestFilterByAgeZeroThreshold(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	updates := []wua.Update{
		{ID: "yesterday", LastDeploymentChangeTime: now.AddDate(0, 0, -1)},
		{ID: "tomorrow", LastDeploymentChangeTime: now.AddDate(0, 0, 1)},
		{ID: "now", LastDeploymentChangeTime: now},
	}

	filtered := FilterByAge(updates, 0, now)
	if len(filtered) != 1 || filtered[0].ID != "yesterday" {
		t.Fatalf("expected only yesterday, got %+v", filtered)
	}
}

func TestFilterByAgeEmptyInput(t *testing.T) {
	if filtered := FilterByAge(nil, 14, time.Now()); len(filtered) != 0 {
		t.Fatalf("expected empty result, got %+v", filtered)
	}
}
