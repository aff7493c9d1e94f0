package extract

import (
	"fmt"
	"strings"

	"github.com/agilizei/irorganiza/internal/domain"
)

// receiptPrompt instructs the model to pull the fiscally relevant fields out
// of a Brazilian medical or educational receipt. The category enumeration is
// built from the domain labels so the prompt cannot drift from what
// CoerceCategory accepts.
var receiptPrompt = "You are a document parser for Brazilian income-tax deductible receipts " +
	"(recibos, notas fiscais, boletos de medicina, odontologia, educacao e previdencia).\n\n" +
	"Task:\n" +
	"- Read the attached document and extract the fields below.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a single JSON object.\n\n" +
	"The object must have these fields:\n" +
	"- \"payee_name\": string or null (razao social or provider name)\n" +
	"- \"tax_id\": string or null (CNPJ or CPF of the payee, digits may include punctuation)\n" +
	"- \"amount\": number or null (total value paid, in BRL)\n" +
	"- \"date\": string or null, ISO format \"YYYY-MM-DD\"\n" +
	fmt.Sprintf("- \"category\": string, one of %s\n", categoryList()) +
	"- \"description\": string or null (short summary of the service)\n\n" +
	"Rules:\n" +
	"- If a field cannot be determined, set it to null.\n" +
	fmt.Sprintf("- Use %q when no category clearly applies.\n", string(domain.CategoryOther)) +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

func categoryList() string {
	cats := domain.Categories()
	quoted := make([]string, len(cats))
	for i, c := range cats {
		quoted[i] = fmt.Sprintf("%q", string(c))
	}
	return strings.Join(quoted, ", ")
}
