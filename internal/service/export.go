package service

import (
	"fmt"
	"strings"

	"github.com/sillogic-labs/sillogic/internal/domain"
)

const exportSeparator = "========================================\n\n"

// ExportTranscript renders a session as a markdown report: cluster messages
// get one section per model, plain messages a single block.
func ExportTranscript(s *domain.Session) string {
	blocks := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		ts := m.CreatedAt.Format("15:04:05")
		if m.IsCluster() {
			var b strings.Builder
			fmt.Fprintf(&b, "[MODEL CLUSTER] %s\n", ts)
			for _, r := range m.Responses {
				fmt.Fprintf(&b, "\n--- %s ---\n%s\n", r.DisplayName, r.Text)
			}
			blocks = append(blocks, b.String())
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[%s] %s\n%s\n\n", strings.ToUpper(string(m.Role)), ts, m.Content))
	}
	return strings.Join(blocks, exportSeparator)
}
