package jobqueue

import "testing"

func TestQueueForToolOverrides(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tool string
		want string
	}{
		{"spin_up_new_backend_project", "spin-up-project"},
		{"modifyProject", "modify-code"},
	}
	for _, tc := range cases {
		if got := QueueForTool(tc.tool); got != tc.want {
			t.Fatalf("QueueForTool(%q) mismatch: got=%q want=%q", tc.tool, got, tc.want)
		}
	}
}

func TestQueueForToolConvention(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tool string
		want string
	}{
		{"deployPreview", "deploy-preview"},
		{"run_migrations", "run-migrations"},
		{"Audit", "audit"},
		{"unknown_tool", "unknown-tool"},
	}
	for _, tc := range cases {
		if got := QueueForTool(tc.tool); got != tc.want {
			t.Fatalf("QueueForTool(%q) mismatch: got=%q want=%q", tc.tool, got, tc.want)
		}
	}
}
