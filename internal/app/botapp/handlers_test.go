package botapp

import (
	"errors"
	"testing"
)

func TestParseModerationCallback(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		action  string
		imageID int64
		wantErr error
	}{
		{name: "approve", data: "moderate_approve_42", action: "approve", imageID: 42},
		{name: "reject", data: "moderate_reject_1", action: "reject", imageID: 1},
		{name: "block", data: "moderate_block_900", action: "block", imageID: 900},
		{name: "details", data: "moderate_details_7", action: "details", imageID: 7},
		{name: "wrong prefix", data: "schedule_daily_12", wantErr: errBadCallback},
		{name: "missing id", data: "moderate_approve_", wantErr: errBadCallback},
		{name: "missing action", data: "moderate_42", wantErr: errBadCallback},
		{name: "non-numeric id", data: "moderate_approve_abc", wantErr: errBadImageID},
		{name: "negative id", data: "moderate_approve_-5", wantErr: errBadImageID},
		{name: "empty", data: "", wantErr: errBadCallback},
		{name: "processed marker", data: "processed", wantErr: errBadCallback},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action, imageID, err := parseModerationCallback(tc.data)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.data, err)
			}
			if action != tc.action || imageID != tc.imageID {
				t.Fatalf("parse %q: got action=%q id=%d", tc.data, action, imageID)
			}
		})
	}
}
