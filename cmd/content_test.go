package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/content"
)

func TestPrintCatalogListsUnreachableAchievements(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	catalog, err := content.Default(content.WithLogger(logger))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	var out bytes.Buffer
	printCatalog(&out, catalog)

	got := out.String()
	for _, want := range []string{"ok: 4 dialects, 8 lessons", "unreachable with this content: dedicated_learner, knowledge_seeker"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}
