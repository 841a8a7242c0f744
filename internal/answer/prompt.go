package answer

import (
	"fmt"
	"strings"

	"github.com/finsight/finsight/internal/tenant"
)

// NotAvailableSentence is the exact wording the model is instructed to
// use when the retrieved context cannot answer the question.
const NotAvailableSentence = "This information is not available in the provided 10-K filing."

const promptHeader = `You are a financial analyst examining SEC 10-K filings. You must provide detailed, well-cited answers.

CONTEXT INFORMATION:
Below are relevant excerpts from the 10-K filing. Each excerpt is numbered as [Source X].
---------------------
`

const promptInstructions = `---------------------

CITATION REQUIREMENTS (CRITICAL - YOU MUST FOLLOW THESE):
1. EVERY factual claim, number, or statement MUST include a citation
2. Use the format [Source X] immediately after each fact
3. If combining information from multiple sources, cite all: [Source 1, Source 2]
4. Direct quotes MUST be in quotation marks with citation: "exact text" [Source X]
5. NEVER make claims without citing the source
6. If information is not in the context, explicitly state: '` + NotAvailableSentence + `'

ANSWER QUALITY REQUIREMENTS:
- Be specific: include exact numbers, percentages, and dates
- Be comprehensive: address all parts of the question
- Be accurate: only use information from the provided context
- Be clear: write in complete sentences with proper structure

EXAMPLE FORMAT:
Apple's total net sales were $383.3 billion for fiscal year 2023 [Source 1], representing a 3% decrease from $394.3 billion in fiscal 2022 [Source 2]. The decline was primarily attributed to lower iPhone sales in international markets [Source 1].

Question: `

// BuildPrompt renders the citation-enforcing prompt for a question and
// its retrieved sources. Pure and deterministic: source N in the context
// block is sources[N-1], so [Source N] markers in the model's answer map
// back to the same slice.
func BuildPrompt(question string, sources []tenant.Source) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	for i, src := range sources {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Source %d] (%s 10-K", i+1, src.Ticker)
		if src.FiscalYear > 0 {
			fmt.Fprintf(&b, ", FY%d", src.FiscalYear)
		}
		b.WriteString("):\n")
		b.WriteString(src.Text)
		b.WriteString("\n")
	}

	b.WriteString(promptInstructions)
	b.WriteString(question)
	b.WriteString("\n\nProvide a detailed, well-structured answer with complete citations:")
	return b.String()
}
