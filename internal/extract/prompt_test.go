package extract

import (
	"strings"
	"testing"

	"github.com/agilizei/irorganiza/internal/domain"
)

func TestReceiptPromptEnumeratesAllCategories(t *testing.T) {
	for _, c := range domain.Categories() {
		if !strings.Contains(receiptPrompt, `"`+string(c)+`"`) {
			t.Errorf("prompt is missing category %q", c)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(receiptPrompt), `Output must begin with "{" and end with "}".`) {
		t.Error("prompt lost its raw-JSON closing instruction")
	}
}
